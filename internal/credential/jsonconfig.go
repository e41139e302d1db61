package credential

import (
	"encoding/json"

	"github.com/beyondnet/beyond/internal/berr"
)

// JSONConfig is the top-level Credential Engine JSON configuration object
// (§4.6). A missing "ssl" or "secret_key" sub-object leaves the engine's
// current values untouched; a missing field within a present sub-object
// substitutes the Certificate Factory default.
type JSONConfig struct {
	SSL       *SSLSection       `json:"ssl,omitempty"`
	SecretKey *SecretKeySection `json:"secret_key,omitempty"`
}

// SSLSection configures the keypair/certificate half of the engine.
type SSLSection struct {
	Passphrase      *string `json:"passphrase,omitempty"`
	PrivateKey      *string `json:"private_key,omitempty"` // PEM text
	Certificate     *string `json:"certificate,omitempty"` // PEM text
	AlternativeName *string `json:"alternative_name,omitempty"`
	Bits            *int    `json:"bits,omitempty"`
	Serial          *int64  `json:"serial,omitempty"`
	Days            *int    `json:"days,omitempty"`
	IsCA            *bool   `json:"is_ca,omitempty"`
	EnableBase64    *bool   `json:"enable_base64,omitempty"`
}

// SecretKeySection configures the symmetric-key half of the engine.
type SecretKeySection struct {
	Key     *string `json:"key,omitempty"` // Base64 text
	KeyBits *int    `json:"key_bits,omitempty"`
}

// ParseJSONConfig parses the raw bytes of a Credential Engine JSON
// configuration document.
func ParseJSONConfig(data []byte) (*JSONConfig, error) {
	var cfg JSONConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, berr.Wrap(berr.InvalidArgument, facadeComponent, "ParseJSONConfig", err)
	}
	return &cfg, nil
}

func optBool(b *bool, def bool) OptionalBool {
	if b == nil {
		if def {
			return True
		}
		return False
	}
	if *b {
		return True
	}
	return False
}

func optInt(i *int, def int) int {
	if i == nil || *i <= 0 {
		return def
	}
	return *i
}

func optInt64(i *int64, def int64) int64 {
	if i == nil || *i <= 0 {
		return def
	}
	return *i
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
