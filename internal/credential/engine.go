package credential

import (
	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/codec"
)

const facadeComponent = "credential_engine"

// State is the Credential Engine Facade's own small lifecycle, distinct
// from (and nested inside) the Peer Session state machine in §4.9.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateActivated
	StateDeactivated
)

// ConfigureKind names which configuration surface a Configure call targets.
type ConfigureKind int

const (
	ConfigureSSLPEM ConfigureKind = iota
	ConfigureJSON
	ConfigureSecretKey
	ConfigureBindAuthenticator
)

// SSLPEMBlob is the Configure payload for ConfigureSSLPEM.
type SSLPEMBlob struct {
	PrivateKeyPEM  []byte
	CertificatePEM []byte
}

// SecretKeyBlob is the Configure payload for ConfigureSecretKey.
type SecretKeyBlob struct {
	Key  []byte
	Bits int
}

// Engine is the Credential Engine Facade (C6): it exposes the synchronous
// surface over the Key Material Store, Asymmetric/Symmetric Crypto, and the
// Certificate Factory. Async mode, when enabled, wraps this same facade
// behind a cooperative worker (see async.go).
type Engine struct {
	state State
	km    *KeyMaterial

	boundAuthenticator *Engine // set via ConfigureBindAuthenticator
	base64             bool    // enable_base64, default true

	certReq CertRequest // accumulated ssl.* fields for a future Prepare-time generation
	haveCertReq bool

	result []byte
	logger zerolog.Logger
}

// NewEngine returns a freshly constructed, unconfigured Engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		state:  StateCreated,
		km:     NewKeyMaterial(),
		base64: true,
		logger: logger.With().Str("component", facadeComponent).Logger(),
	}
}

// KeyMaterial exposes the engine's underlying Key Material Store, e.g. for
// the Handshake Protocol to read certificates/keys directly.
func (e *Engine) KeyMaterial() *KeyMaterial {
	return e.km
}

// Configure applies SSL/JSON/secret-key/authenticator-binding configuration.
// It does not check the engine's state, so it is accepted in any state; the
// owning Peer Session's Idle/Activated check lives one layer up.
func (e *Engine) Configure(kind ConfigureKind, blob any) error {
	switch kind {
	case ConfigureSSLPEM:
		b, ok := blob.(SSLPEMBlob)
		if !ok {
			return berr.New(berr.InvalidArgument, facadeComponent, "Configure")
		}
		if len(b.PrivateKeyPEM) > 0 {
			if err := e.km.SetPrivateKey(b.PrivateKeyPEM); err != nil {
				return err
			}
		}
		if len(b.CertificatePEM) > 0 {
			if err := e.km.SetCertificate(b.CertificatePEM); err != nil {
				return err
			}
		}

	case ConfigureJSON:
		raw, ok := blob.([]byte)
		if !ok {
			return berr.New(berr.InvalidArgument, facadeComponent, "Configure")
		}
		cfg, err := ParseJSONConfig(raw)
		if err != nil {
			return err
		}
		if err := e.applyJSONConfig(cfg); err != nil {
			return err
		}

	case ConfigureSecretKey:
		b, ok := blob.(SecretKeyBlob)
		if !ok {
			return berr.New(berr.InvalidArgument, facadeComponent, "Configure")
		}
		if err := e.km.SetSymmetricKey(b.Key, b.Bits); err != nil {
			return err
		}

	case ConfigureBindAuthenticator:
		auth, ok := blob.(*Engine)
		if !ok {
			return berr.New(berr.InvalidArgument, facadeComponent, "Configure")
		}
		e.boundAuthenticator = auth

	default:
		return berr.New(berr.InvalidArgument, facadeComponent, "Configure")
	}

	if e.state == StateCreated {
		e.state = StateConfigured
	}
	return nil
}

func (e *Engine) applyJSONConfig(cfg *JSONConfig) error {
	if cfg.SSL != nil {
		e.certReq = CertRequest{
			Bits:            optInt(cfg.SSL.Bits, defaultBits),
			Serial:          optInt64(cfg.SSL.Serial, defaultSerial),
			Days:            optInt(cfg.SSL.Days, defaultDays),
			IsCA:            optBool(cfg.SSL.IsCA, true),
			AlternativeName: optString(cfg.SSL.AlternativeName),
			EnableBase64:    optBool(cfg.SSL.EnableBase64, true),
		}
		e.haveCertReq = true
		e.base64 = e.certReq.EnableBase64.resolve(true)

		if cfg.SSL.PrivateKey != nil {
			keyPEM := []byte(*cfg.SSL.PrivateKey)
			if cfg.SSL.Passphrase != nil && *cfg.SSL.Passphrase != "" {
				wrapped, err := codec.Decode(*cfg.SSL.PrivateKey)
				if err != nil {
					return err
				}
				decrypted, err := unwrapPassphraseProtectedKey(wrapped, *cfg.SSL.Passphrase)
				if err != nil {
					return err
				}
				keyPEM = decrypted
			}
			if err := e.km.SetPrivateKey(keyPEM); err != nil {
				return err
			}
		}
		if cfg.SSL.Certificate != nil {
			if err := e.km.SetCertificate([]byte(*cfg.SSL.Certificate)); err != nil {
				return err
			}
		}
	}

	if cfg.SecretKey != nil {
		bits := optInt(cfg.SecretKey.KeyBits, DefaultSymmetricKeyBits)
		if cfg.SecretKey.Key != nil {
			raw, err := codec.Decode(*cfg.SecretKey.Key)
			if err != nil {
				return err
			}
			if err := e.km.SetSymmetricKey(raw, bits); err != nil {
				return err
			}
		}
	}

	return nil
}

// Activate moves the engine past its configuration stage. Calling Activate
// twice, or any operation other than Configure/Activate before the first
// Activate, is a SequenceError.
func (e *Engine) Activate() error {
	if e.state == StateActivated {
		return berr.New(berr.SequenceError, facadeComponent, "Activate")
	}
	e.state = StateActivated
	return nil
}

// Prepare asks the Key Material Store to generate whatever it is still
// missing: keypair, certificate, and symmetric key. Per the Open Question
// decision in DESIGN.md, Prepare succeeds only when all three generation
// steps succeed (no "last write wins" masking of an earlier failure).
func (e *Engine) Prepare() error {
	if err := e.requireActivated("Prepare"); err != nil {
		return err
	}
	e.logger.Debug().Msg("preparing key material")

	if _, err := e.km.PrivateKey(); err != nil {
		if err := e.km.GenerateKeypair(e.certReqBits()); err != nil {
			return err
		}
	}

	if _, certErr := e.km.Certificate(); certErr != nil {
		req := e.certReq
		if !e.haveCertReq {
			req = CertRequest{}
		}
		priv, err := e.km.PrivateKey()
		if err != nil {
			return berr.Wrap(berr.CryptoFault, facadeComponent, "Prepare", err)
		}
		certPEM, err := generateCertificateForExistingKey(priv, req)
		if err != nil {
			return err
		}
		if err := e.km.SetCertificate(certPEM); err != nil {
			return err
		}
	}

	if _, err := e.km.GetSymmetricKey(false); err != nil {
		if err := e.km.GenerateSymmetricKey(DefaultSymmetricKeyBits); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) certReqBits() int {
	if e.haveCertReq && e.certReq.Bits > 0 {
		return e.certReq.Bits
	}
	return DefaultRSABits
}

// Encrypt performs the operation named by id and stashes the result for a
// later GetResult call, per §4.6's fire-and-fetch surface.
func (e *Engine) Encrypt(id KeyID, data, iv []byte) error {
	if err := e.requireActivated("Encrypt"); err != nil {
		return err
	}

	switch id {
	case PrivateKey:
		return berr.New(berr.InvalidArgument, facadeComponent, "Encrypt")

	case SecretKey:
		if len(iv) != aesIVSize {
			return berr.New(berr.InvalidArgument, facadeComponent, "Encrypt")
		}
		key, err := e.km.GetSymmetricKey(false)
		if err != nil {
			return err
		}
		ct, err := EncryptAESCBC(key, iv, data)
		if err != nil {
			return err
		}
		e.result = e.maybeBase64Encode(ct)
		return nil

	case PublicKey, Certificate:
		pub, err := resolvePublicKey(e.km, id)
		if err != nil {
			return err
		}
		ct, err := EncryptRSA(pub, data)
		if err != nil {
			return err
		}
		e.result = e.maybeBase64Encode(ct)
		return nil

	default:
		return berr.New(berr.InvalidArgument, facadeComponent, "Encrypt")
	}
}

// Decrypt mirrors Encrypt for the decrypt direction.
func (e *Engine) Decrypt(id KeyID, data, iv []byte) error {
	if err := e.requireActivated("Decrypt"); err != nil {
		return err
	}

	input, err := e.maybeBase64Decode(data)
	if err != nil {
		return err
	}

	switch id {
	case PublicKey, Certificate:
		return berr.New(berr.InvalidArgument, facadeComponent, "Decrypt")

	case SecretKey:
		if len(iv) != aesIVSize {
			return berr.New(berr.InvalidArgument, facadeComponent, "Decrypt")
		}
		key, err := e.km.GetSymmetricKey(false)
		if err != nil {
			return err
		}
		pt, err := DecryptAESCBC(key, iv, input)
		if err != nil {
			return err
		}
		e.result = pt
		return nil

	case PrivateKey:
		priv, err := e.km.PrivateKey()
		if err != nil {
			return err
		}
		pt, err := DecryptRSA(priv, input)
		if err != nil {
			return err
		}
		e.result = pt
		return nil

	default:
		return berr.New(berr.InvalidArgument, facadeComponent, "Decrypt")
	}
}

// GetResult returns the byte slice produced by the most recent
// Encrypt/Decrypt call.
func (e *Engine) GetResult() ([]byte, error) {
	if e.result == nil {
		return nil, berr.New(berr.NotReady, facadeComponent, "GetResult")
	}
	return e.result, nil
}

// GetKey returns the material named by id. SecretKey is returned
// base64-encoded when the engine's base64 mode is enabled; the other keys
// are returned as stored.
func (e *Engine) GetKey(id KeyID) ([]byte, error) {
	switch id {
	case PrivateKey:
		return e.km.GetPrivateKey()
	case PublicKey:
		return e.km.GetPublicKey()
	case Certificate:
		return e.km.GetCertificate()
	case SecretKey:
		return e.km.GetSymmetricKey(e.base64)
	default:
		return nil, berr.New(berr.InvalidArgument, facadeComponent, "GetKey")
	}
}

// Sign computes an RSA-SHA256 signature over data with the stored private
// key.
func (e *Engine) Sign(data []byte) ([]byte, error) {
	if err := e.requireActivated("Sign"); err != nil {
		return nil, err
	}
	priv, err := e.km.PrivateKey()
	if err != nil {
		return nil, err
	}
	return Sign(priv, data)
}

// Verify reports whether signature is a valid RSA-SHA256 signature over
// data under the stored certificate's public key, or under the key pair's
// public key when no certificate is stored.
func (e *Engine) Verify(signature, data []byte) (bool, error) {
	if err := e.requireActivated("Verify"); err != nil {
		return false, err
	}
	pub, err := resolvePublicKey(e.km, Certificate)
	if err != nil {
		pub, err = resolvePublicKey(e.km, PublicKey)
		if err != nil {
			return false, err
		}
	}
	return Verify(pub, signature, data), nil
}

// Deactivate tears the engine back down. Calling it before Activate is a
// SequenceError.
func (e *Engine) Deactivate() error {
	if e.state != StateActivated {
		return berr.New(berr.SequenceError, facadeComponent, "Deactivate")
	}
	e.state = StateDeactivated
	return nil
}

func (e *Engine) requireActivated(op string) error {
	if e.state != StateActivated {
		return berr.New(berr.SequenceError, facadeComponent, op)
	}
	return nil
}

func (e *Engine) maybeBase64Encode(data []byte) []byte {
	if !e.base64 {
		return data
	}
	return []byte(codec.Encode(data))
}

func (e *Engine) maybeBase64Decode(data []byte) ([]byte, error) {
	if !e.base64 {
		return data, nil
	}
	return codec.Decode(string(data))
}

