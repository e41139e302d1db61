package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCertificateSelfSignedCA(t *testing.T) {
	certPEM, keyPEM, cert, err := GenerateCertificate(CertRequest{Bits: 2048})
	require.NoError(t, err)
	assert.NotEmpty(t, certPEM)
	assert.NotEmpty(t, keyPEM)
	assert.True(t, cert.IsCA)
	assert.Equal(t, caCommonName, cert.Subject.CommonName)
}

func TestGenerateCertificateEndEntitySignedByIssuer(t *testing.T) {
	_, rootKeyPEM, rootCert, err := GenerateCertificate(CertRequest{Bits: 2048})
	require.NoError(t, err)

	km := NewKeyMaterial()
	require.NoError(t, km.SetPrivateKey(rootKeyPEM))
	rootKey, err := km.PrivateKey()
	require.NoError(t, err)

	eeCertPEM, _, eeCert, err := GenerateCertificate(CertRequest{
		Bits: 2048,
		IsCA: False,
		Issuer: &Issuer{PrivateKey: rootKey, Certificate: rootCert},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, eeCertPEM)
	assert.False(t, eeCert.IsCA)
	assert.Equal(t, eeCommonName, eeCert.Subject.CommonName)
	assert.Equal(t, rootCert.Subject.CommonName, eeCert.Issuer.CommonName)
}

func TestGenerateCertificateAlternativeNameSAN(t *testing.T) {
	_, _, cert, err := GenerateCertificate(CertRequest{Bits: 2048, AlternativeName: "10.0.0.5"})
	require.NoError(t, err)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "10.0.0.5", cert.IPAddresses[0].String())
}
