// Package handshake implements the Handshake Protocol (C7): the client-side
// construction and server-side validation of the encrypted Credential blob
// exchanged by the ExchangeKey RPC.
package handshake

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/beyondnet/beyond/internal/berr"
)

const component = "handshake"

// UUIDFieldLen is the fixed wire width of the uuid field: 36 ASCII
// characters plus a terminator byte.
const UUIDFieldLen = 37

// Credential is the §3 wire structure sealed under RSA-OAEP and sent as the
// ExchangeKey RPC payload.
type Credential struct {
	Nonce            uint64 `msgpack:"nonce"`
	SessionKeyLength int32  `msgpack:"session_key_length"`
	UUID             string `msgpack:"uuid"`
	Payload          []byte `msgpack:"payload"`
}

// Encode serialises the Credential with msgpack ahead of RSA-OAEP sealing.
func (c Credential) Encode() ([]byte, error) {
	if len(c.UUID) > UUIDFieldLen-1 {
		return nil, berr.New(berr.InvalidArgument, component, "Encode")
	}
	out, err := msgpack.Marshal(c)
	if err != nil {
		return nil, berr.Wrap(berr.InvalidArgument, component, "Encode", err)
	}
	return out, nil
}

// DecodeCredential reverses Encode.
func DecodeCredential(data []byte) (Credential, error) {
	var c Credential
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return Credential{}, berr.Wrap(berr.InvalidArgument, component, "DecodeCredential", err)
	}
	return c, nil
}

// insecureLiteral is sent verbatim, unencrypted, when neither side has any
// authenticator configured at all — the spec's degenerate compatibility
// path. No usable session can be derived from it; see DESIGN.md.
const insecureLiteral = "insecure"
