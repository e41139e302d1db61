package credential

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/beyondnet/beyond/internal/berr"
)

const asymmetricComponent = "asymmetric"

// oaepOverhead is the RSA-OAEP-SHA256 overhead in bytes: 2*hashLen + 2.
const oaepOverhead = 2*sha256.Size + 2

// MaxPlaintextLen returns the largest plaintext RSA-OAEP can seal under the
// given public key, i.e. modulus length minus OAEP overhead.
func MaxPlaintextLen(pub *rsa.PublicKey) int {
	return pub.Size() - oaepOverhead
}

// EncryptRSA seals data under pub using RSA-OAEP-SHA256. Input longer than
// MaxPlaintextLen(pub) is rejected with InvalidArgument.
func EncryptRSA(pub *rsa.PublicKey, data []byte) ([]byte, error) {
	if len(data) > MaxPlaintextLen(pub) {
		return nil, berr.New(berr.InvalidArgument, asymmetricComponent, "Encrypt")
	}

	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, asymmetricComponent, "Encrypt", err)
	}
	return out, nil
}

// DecryptRSA opens ciphertext sealed by EncryptRSA using priv.
func DecryptRSA(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	out, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, asymmetricComponent, "Decrypt", err)
	}
	return out, nil
}

// Sign computes an RSA-SHA256 signature over data using priv.
func Sign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, asymmetricComponent, "Sign", err)
	}
	return sig, nil
}

// Verify checks an RSA-SHA256 signature over data against pub. A malformed
// signature or a mismatch both report authentic=false, not an error: the
// caller is asking a yes/no question, not performing a fallible operation.
func Verify(pub *rsa.PublicKey, signature, data []byte) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil
}

// KeyID names which half of the Key Material Store an asymmetric or
// symmetric operation should draw its key from.
type KeyID int

const (
	// PrivateKey is the RSA private half of the keypair.
	PrivateKey KeyID = iota
	// PublicKey is the RSA public half of the keypair (or, absent a
	// keypair, the public key embedded in the stored certificate).
	PublicKey
	// Certificate is an alias of PublicKey: the public key is sourced from
	// the X.509 certificate rather than the raw keypair.
	Certificate
	// SecretKey is the stored symmetric key.
	SecretKey
)

func (id KeyID) String() string {
	switch id {
	case PrivateKey:
		return "PRIVATE_KEY"
	case PublicKey:
		return "PUBLIC_KEY"
	case Certificate:
		return "CERTIFICATE"
	case SecretKey:
		return "SECRET_KEY"
	default:
		return "UNKNOWN"
	}
}

// resolvePublicKey returns the RSA public key named by id, trying the
// keypair first and falling back to the certificate's embedded key.
func resolvePublicKey(k *KeyMaterial, id KeyID) (*rsa.PublicKey, error) {
	if id == Certificate {
		return k.PublicKeyFromCertificate()
	}

	if pemBytes, err := k.GetPublicKey(); err == nil {
		if block, _ := pem.Decode(pemBytes); block != nil {
			if pub, parseErr := x509.ParsePKIXPublicKey(block.Bytes); parseErr == nil {
				if rsaPub, ok := pub.(*rsa.PublicKey); ok {
					return rsaPub, nil
				}
			}
		}
	}
	return k.PublicKeyFromCertificate()
}
