package handshake

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/credential"
)

// ClientResult carries the values the Device side must remember after a
// successful ExchangeKey round trip: the nonce it chose and the session key
// it offered. The Edge replies only with a peer_id and keeps both values in
// the session it records under that peer_id.
type ClientResult struct {
	Ciphertext []byte
	Nonce      uint64
	SessionKey []byte
}

// BuildExchangeKeyRequest runs the client side of §4.7: draw a nonce,
// obtain (generating on first use) the session secret key, seal a
// Credential under serverPub. serverPub is nil only in the fully
// unauthenticated compatibility path, in which case the literal "insecure"
// is sent and no real session can be derived from this round trip.
func BuildExchangeKeyRequest(engine *credential.Engine, uuid string, serverPub *rsa.PublicKey) (*ClientResult, error) {
	if serverPub == nil {
		return &ClientResult{Ciphertext: []byte(insecureLiteral)}, nil
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	// Read the raw symmetric key straight from the Key Material Store, not
	// via Engine.GetKey(SecretKey) — that returns the base64-wrapped text
	// whenever the engine's base64 mode is enabled (the default), and the
	// Credential Payload / SRTP master key both need the raw bytes.
	sessionKey, err := engine.KeyMaterial().GetSymmetricKey(false)
	if err != nil {
		if genErr := engine.Prepare(); genErr != nil {
			return nil, genErr
		}
		sessionKey, err = engine.KeyMaterial().GetSymmetricKey(false)
		if err != nil {
			return nil, err
		}
	}

	cred := Credential{
		Nonce:            nonce,
		SessionKeyLength: int32(len(sessionKey)),
		UUID:             uuid,
		Payload:          sessionKey,
	}

	encoded, err := cred.Encode()
	if err != nil {
		return nil, err
	}
	if len(encoded) > credential.MaxPlaintextLen(serverPub) {
		return nil, berr.New(berr.InvalidArgument, component, "BuildExchangeKeyRequest")
	}

	ciphertext, err := credential.EncryptRSA(serverPub, encoded)
	if err != nil {
		return nil, err
	}

	return &ClientResult{Ciphertext: ciphertext, Nonce: nonce, SessionKey: sessionKey}, nil
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, berr.Wrap(berr.CryptoFault, component, "randomNonce", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
