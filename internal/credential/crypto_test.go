package credential

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestRSAOAEPRoundTrip(t *testing.T) {
	priv := testKeypair(t)
	cases := [][]byte{
		[]byte(""),
		[]byte("hello world\x00"),
		bytes.Repeat([]byte{0xAB}, MaxPlaintextLen(&priv.PublicKey)),
	}

	for _, b := range cases {
		ct, err := EncryptRSA(&priv.PublicKey, b)
		require.NoError(t, err)

		pt, err := DecryptRSA(priv, ct)
		require.NoError(t, err)
		assert.Equal(t, b, pt)
	}
}

func TestRSAOAEPRejectsOversizedInput(t *testing.T) {
	priv := testKeypair(t)
	tooBig := bytes.Repeat([]byte{0x01}, MaxPlaintextLen(&priv.PublicKey)+1)

	_, err := EncryptRSA(&priv.PublicKey, tooBig)
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	priv := testKeypair(t)
	data := []byte("sign me")

	sig, err := Sign(priv, data)
	require.NoError(t, err)

	assert.True(t, Verify(&priv.PublicKey, sig, data))
	assert.False(t, Verify(&priv.PublicKey, sig, []byte("sign me not")))
}

func TestAESCBCRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, 32)
	iv := make([]byte, 16)

	for _, b := range [][]byte{[]byte(""), []byte("hello world"), bytes.Repeat([]byte{0x7f}, 100)} {
		ct, err := EncryptAESCBC(key, iv, b)
		require.NoError(t, err)
		assert.Equal(t, 0, len(ct)%16)
		assert.GreaterOrEqual(t, len(ct), len(b)+1)

		pt, err := DecryptAESCBC(key, iv, ct)
		require.NoError(t, err)
		assert.Equal(t, b, pt)
	}
}

func TestAESCBCRequiresIV(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, 32)
	_, err := EncryptAESCBC(key, nil, []byte("hello world"))
	require.Error(t, err)

	_, err = EncryptAESCBC(key, []byte("short"), []byte("hello world"))
	require.Error(t, err)
}

func TestAESCBCWrongIVCorruptsPlaintext(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, 32)
	iv := make([]byte, 16)
	other := bytes.Repeat([]byte{0x01}, 16)

	ct, err := EncryptAESCBC(key, iv, []byte("hello world"))
	require.NoError(t, err)

	pt, err := DecryptAESCBC(key, other, ct)
	if err == nil {
		assert.NotEqual(t, []byte("hello world"), pt)
	}
}
