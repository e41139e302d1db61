// Package credential implements the Credential Engine: the Key Material
// Store, Asymmetric and Symmetric Crypto primitives, the Certificate
// Factory, and the synchronous/asynchronous Facade that binds them together.
package credential

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/codec"
)

const keyMaterialComponent = "keymaterial"

// DefaultRSABits is the default RSA modulus size when none is supplied.
const DefaultRSABits = 4096

// DefaultSymmetricKeyBits is the default symmetric key size in bits.
const DefaultSymmetricKeyBits = 256

// KeyMaterial owns exactly one RSA keypair, one X.509 certificate, and one
// symmetric key. Its lifecycle is uninitialised -> loaded -> active; getters
// on an unset field return NotReady.
type KeyMaterial struct {
	mu sync.RWMutex

	privateKey *rsa.PrivateKey
	privatePEM []byte

	certificate *x509.Certificate
	certPEM     []byte

	symmetricKey []byte
}

// NewKeyMaterial returns an empty, uninitialised KeyMaterial.
func NewKeyMaterial() *KeyMaterial {
	return &KeyMaterial{}
}

// SetPrivateKey parses and stores a PEM-encoded RSA private key, replacing
// and dropping any prior value.
func (k *KeyMaterial) SetPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return berr.New(berr.InvalidArgument, keyMaterialComponent, "SetPrivateKey")
	}

	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return berr.Wrap(berr.InvalidArgument, keyMaterialComponent, "SetPrivateKey", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.privateKey = key
	k.privatePEM = append([]byte(nil), pemBytes...)
	return nil
}

// SetCertificate parses and stores a PEM-encoded X.509 certificate.
func (k *KeyMaterial) SetCertificate(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return berr.New(berr.InvalidArgument, keyMaterialComponent, "SetCertificate")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return berr.Wrap(berr.InvalidArgument, keyMaterialComponent, "SetCertificate", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.certificate = cert
	k.certPEM = append([]byte(nil), pemBytes...)
	return nil
}

// SetSymmetricKey stores raw symmetric key bytes. bits must be a multiple of
// 8 and agree with len(key)*8.
func (k *KeyMaterial) SetSymmetricKey(key []byte, bits int) error {
	if bits%8 != 0 || bits <= 0 || len(key)*8 != bits {
		return berr.New(berr.InvalidArgument, keyMaterialComponent, "SetSymmetricKey")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.symmetricKey = append([]byte(nil), key...)
	return nil
}

// GenerateKeypair creates a fresh RSA keypair of the given bit size using
// the platform CSPRNG. bits<=0 defaults to DefaultRSABits.
func (k *KeyMaterial) GenerateKeypair(bits int) error {
	if bits <= 0 {
		bits = DefaultRSABits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return berr.Wrap(berr.CryptoFault, keyMaterialComponent, "GenerateKeypair", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	k.mu.Lock()
	defer k.mu.Unlock()
	k.privateKey = key
	k.privatePEM = pemBytes
	return nil
}

// GenerateSymmetricKey creates a fresh random symmetric key of the given bit
// size using the platform CSPRNG. bits<=0 defaults to DefaultSymmetricKeyBits.
func (k *KeyMaterial) GenerateSymmetricKey(bits int) error {
	if bits <= 0 {
		bits = DefaultSymmetricKeyBits
	}
	if bits%8 != 0 {
		return berr.New(berr.InvalidArgument, keyMaterialComponent, "GenerateSymmetricKey")
	}

	buf := make([]byte, bits/8)
	if _, err := rand.Read(buf); err != nil {
		return berr.Wrap(berr.CryptoFault, keyMaterialComponent, "GenerateSymmetricKey", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.symmetricKey = buf
	return nil
}

// GetPrivateKey returns the stored private key PEM.
func (k *KeyMaterial) GetPrivateKey() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.privatePEM == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "GetPrivateKey")
	}
	return append([]byte(nil), k.privatePEM...), nil
}

// GetPublicKey returns the RSA public half of the stored private key,
// PEM-encoded as PKIX.
func (k *KeyMaterial) GetPublicKey() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.privateKey == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "GetPublicKey")
	}

	der, err := x509.MarshalPKIXPublicKey(&k.privateKey.PublicKey)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, keyMaterialComponent, "GetPublicKey", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// GetCertificate returns the stored certificate PEM.
func (k *KeyMaterial) GetCertificate() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.certPEM == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "GetCertificate")
	}
	return append([]byte(nil), k.certPEM...), nil
}

// GetSymmetricKey returns the stored raw symmetric key. When base64Wrap is
// true the returned bytes are the Base64 text representation instead of raw
// bytes.
func (k *KeyMaterial) GetSymmetricKey(base64Wrap bool) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.symmetricKey == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "GetSymmetricKey")
	}

	if base64Wrap {
		return []byte(codec.Encode(k.symmetricKey)), nil
	}
	return append([]byte(nil), k.symmetricKey...), nil
}

// PublicKeyFromCertificate returns the RSA public key embedded in the
// stored certificate, independent of whether a private key is loaded. This
// is how a peer's own certificate acts as a public-key source in
// "insecured-but-encrypted" handshake mode.
func (k *KeyMaterial) PublicKeyFromCertificate() (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.certificate == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "PublicKeyFromCertificate")
	}

	pub, ok := k.certificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, berr.New(berr.InvalidArgument, keyMaterialComponent, "PublicKeyFromCertificate")
	}
	return pub, nil
}

// PrivateKey returns the parsed RSA private key for internal crypto use.
func (k *KeyMaterial) PrivateKey() (*rsa.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.privateKey == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "PrivateKey")
	}
	return k.privateKey, nil
}

// Certificate returns the parsed X.509 certificate for internal use (e.g.
// validating that a loaded cert's public key matches the keypair).
func (k *KeyMaterial) Certificate() (*x509.Certificate, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.certificate == nil {
		return nil, berr.New(berr.NotReady, keyMaterialComponent, "Certificate")
	}
	return k.certificate, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, berr.New(berr.InvalidArgument, keyMaterialComponent, "parseRSAPrivateKey")
	}
	return key, nil
}
