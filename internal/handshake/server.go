package handshake

import (
	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/credential"
)

// ServerResult carries what the Edge learns from a successful ExchangeKey:
// the client's chosen nonce and the session key whose first 30 bytes become
// the SRTP master key.
type ServerResult struct {
	Nonce      uint64
	SessionKey []byte
}

// HandleExchangeKeyRequest runs the server side of §4.7. engine is nil only
// when the Edge itself has no authenticator configured, in which case any
// payload (including the literal "insecure") is accepted without
// decryption or uuid validation — the spec's degenerate compatibility path,
// which cannot establish a working session (see DESIGN.md).
func HandleExchangeKeyRequest(engine *credential.Engine, edgeUUID string, ciphertext []byte) (*ServerResult, error) {
	if engine == nil {
		return nil, berr.New(berr.NotReady, component, "HandleExchangeKeyRequest")
	}

	// The client seals with the raw RSA-OAEP primitive, not Engine.Encrypt
	// (it has no engine bound to the Edge's public key), so open it the
	// same way here rather than through engine.Decrypt, which would run
	// the ciphertext through the base64 codec first.
	priv, err := engine.KeyMaterial().PrivateKey()
	if err != nil {
		return nil, err
	}
	plaintext, err := credential.DecryptRSA(priv, ciphertext)
	if err != nil {
		return nil, err
	}

	cred, err := DecodeCredential(plaintext)
	if err != nil {
		return nil, err
	}

	if cred.UUID != edgeUUID {
		return nil, berr.New(berr.InvalidArgument, component, "HandleExchangeKeyRequest")
	}

	return &ServerResult{Nonce: cred.Nonce, SessionKey: cred.Payload}, nil
}
