package credential

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/beyondnet/beyond/internal/berr"
)

// Passphrase-protected private keys use a self-contained wire format:
// salt(16) || nonce(12) || ciphertext, where ciphertext is the PEM text
// sealed under ChaCha20-Poly1305 with an Argon2id-derived key. This is the
// engine's own wrapping (not OpenSSL's legacy PEM encryption headers), kept
// deliberately simple since the only producer and consumer are this module.
const (
	passphraseSaltLen = 16
	argon2Time        = 1
	argon2Memory      = 64 * 1024
	argon2Threads     = 4
	argon2KeyLen      = 32
)

// WrapPassphraseProtectedKey seals a private key PEM under a passphrase for
// storage in the "ssl.private_key" JSON field.
func WrapPassphraseProtectedKey(pemBytes []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, passphraseSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, berr.Wrap(berr.CryptoFault, facadeComponent, "WrapPassphraseProtectedKey", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, facadeComponent, "WrapPassphraseProtectedKey", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, berr.Wrap(berr.CryptoFault, facadeComponent, "WrapPassphraseProtectedKey", err)
	}

	sealed := aead.Seal(nil, nonce, pemBytes, nil)

	out := make([]byte, 0, passphraseSaltLen+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// unwrapPassphraseProtectedKey reverses WrapPassphraseProtectedKey.
func unwrapPassphraseProtectedKey(wrapped []byte, passphrase string) ([]byte, error) {
	aeadProbe, err := chacha20poly1305.New(make([]byte, argon2KeyLen))
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, facadeComponent, "unwrapPassphraseProtectedKey", err)
	}
	nonceSize := aeadProbe.NonceSize()

	if len(wrapped) < passphraseSaltLen+nonceSize {
		return nil, berr.New(berr.InvalidArgument, facadeComponent, "unwrapPassphraseProtectedKey")
	}

	salt := wrapped[:passphraseSaltLen]
	nonce := wrapped[passphraseSaltLen : passphraseSaltLen+nonceSize]
	ciphertext := wrapped[passphraseSaltLen+nonceSize:]

	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, facadeComponent, "unwrapPassphraseProtectedKey", err)
	}

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, berr.Wrap(berr.AuthFault, facadeComponent, "unwrapPassphraseProtectedKey", err)
	}
	return plain, nil
}
