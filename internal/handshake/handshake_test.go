package handshake

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondnet/beyond/internal/credential"
)

func newPreparedEngine(t *testing.T) *credential.Engine {
	t.Helper()
	e := credential.NewEngine(zerolog.Nop())
	require.NoError(t, e.Activate())
	require.NoError(t, e.Prepare())
	return e
}

func TestExchangeKeyHandshakeSuccess(t *testing.T) {
	edgeEngine := newPreparedEngine(t)
	deviceEngine := newPreparedEngine(t)

	edgeCertPEM, err := edgeEngine.GetKey(credential.Certificate)
	require.NoError(t, err)
	require.NoError(t, deviceEngine.KeyMaterial().SetCertificate(edgeCertPEM))
	edgePub, err := deviceEngine.KeyMaterial().PublicKeyFromCertificate()
	require.NoError(t, err)

	req, err := BuildExchangeKeyRequest(deviceEngine, "11111111-1111-1111-1111-111111111111", edgePub)
	require.NoError(t, err)
	require.NotEmpty(t, req.Ciphertext)

	res, err := HandleExchangeKeyRequest(edgeEngine, "11111111-1111-1111-1111-111111111111", req.Ciphertext)
	require.NoError(t, err)

	assert.Equal(t, req.Nonce, res.Nonce)
	assert.Equal(t, req.SessionKey, res.SessionKey)
}

func TestExchangeKeyHandshakeUUIDMismatch(t *testing.T) {
	edgeEngine := newPreparedEngine(t)
	deviceEngine := newPreparedEngine(t)

	edgeCertPEM, err := edgeEngine.GetKey(credential.Certificate)
	require.NoError(t, err)
	require.NoError(t, deviceEngine.KeyMaterial().SetCertificate(edgeCertPEM))
	edgePub, err := deviceEngine.KeyMaterial().PublicKeyFromCertificate()
	require.NoError(t, err)

	req, err := BuildExchangeKeyRequest(deviceEngine, "22222222-2222-2222-2222-222222222222", edgePub)
	require.NoError(t, err)

	_, err = HandleExchangeKeyRequest(edgeEngine, "11111111-1111-1111-1111-111111111111", req.Ciphertext)
	require.Error(t, err)
}
