package credential

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/beyondnet/beyond/internal/berr"
)

const symmetricComponent = "symmetric"

// aesIVSize is the AES block size and therefore the required IV length.
const aesIVSize = aes.BlockSize

// EncryptAESCBC encrypts data under key using AES-256-CBC with PKCS7
// padding. iv must be exactly 16 bytes.
func EncryptAESCBC(key, iv, data []byte) ([]byte, error) {
	if len(iv) != aesIVSize {
		return nil, berr.New(berr.InvalidArgument, symmetricComponent, "Encrypt")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, symmetricComponent, "Encrypt", err)
	}

	padded := pkcs7Pad(data, aesIVSize)
	out := make([]byte, len(padded))

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, padded)
	return out, nil
}

// DecryptAESCBC reverses EncryptAESCBC. iv must be exactly 16 bytes and
// match the IV used to encrypt, or the recovered plaintext will differ from
// the original (a wrong IV corrupts only the first block; when that block
// also holds the PKCS7 padding, as with a single-block ciphertext, the
// unpad check fails and an error is returned).
func DecryptAESCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != aesIVSize {
		return nil, berr.New(berr.InvalidArgument, symmetricComponent, "Decrypt")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aesIVSize != 0 {
		return nil, berr.New(berr.InvalidArgument, symmetricComponent, "Decrypt")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, symmetricComponent, "Decrypt", err)
	}

	out := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, ciphertext)

	unpadded, err := pkcs7Unpad(out, aesIVSize)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, symmetricComponent, "Decrypt", err)
	}
	return unpadded, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, berr.New(berr.InvalidArgument, symmetricComponent, "pkcs7Unpad")
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, berr.New(berr.InvalidArgument, symmetricComponent, "pkcs7Unpad")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, berr.New(berr.InvalidArgument, symmetricComponent, "pkcs7Unpad")
		}
	}
	return data[:len(data)-padLen], nil
}
