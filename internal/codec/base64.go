// Package codec implements the Base64 Codec component: RFC 4648 encode and
// decode without embedded line breaks, padded to a 4-character boundary.
package codec

import (
	"encoding/base64"
	"strings"

	"github.com/beyondnet/beyond/internal/berr"
)

const component = "codec"

// Encode converts raw bytes to padded standard Base64 text with no CR/LF.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode. It is strict: any character outside the Base64
// alphabet (beyond trailing '=' padding) is rejected with InvalidArgument.
func Decode(text string) ([]byte, error) {
	trimmed := strings.TrimRight(text, "=")
	for _, r := range trimmed {
		if !isBase64Alphabet(r) {
			return nil, berr.New(berr.InvalidArgument, component, "Decode")
		}
	}

	out, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, berr.Wrap(berr.InvalidArgument, component, "Decode", err)
	}
	return out, nil
}

func isBase64Alphabet(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '+' || r == '/':
		return true
	default:
		return false
	}
}
