package credential

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"time"

	"github.com/beyondnet/beyond/internal/berr"
)

const certFactoryComponent = "certfactory"

const (
	defaultDays  = 365
	defaultBits  = 4096
	defaultSerial = 1

	caCommonName = "beyond.net"
	eeCommonName = "edge.beyond.net"
	eeOrgUnit    = "Inference"
)

// CertRequest describes a certificate to be minted by the Certificate
// Factory. A zero value for Bits/Serial/Days/IsCA/EnableBase64 takes the
// documented default rather than the Go zero value, per §4.5's tie-breaks.
type CertRequest struct {
	Bits             int
	Serial           int64
	Days             int
	IsCA             OptionalBool
	AlternativeName  string // IP address for the SAN, optional
	SubjectCN        string // overrides the default CN when non-empty
	EnableBase64     OptionalBool

	// Issuer, when non-nil, turns this request into a signed subordinate
	// certificate instead of a self-signed one.
	Issuer *Issuer
}

// Issuer carries the signing authority's private key and certificate for
// minting a subordinate certificate.
type Issuer struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// OptionalBool distinguishes "not set, use default" from an explicit
// true/false, mirroring the C `< 0` tri-state convention from §4.5.
type OptionalBool int

const (
	// Unset means "apply the component default."
	Unset OptionalBool = iota
	True
	False
)

func (o OptionalBool) resolve(def bool) bool {
	switch o {
	case True:
		return true
	case False:
		return false
	default:
		return def
	}
}

// buildTemplate constructs the x509.Certificate template shared by a fresh
// self-signed certificate and one minted for an already-existing keypair:
// serial/validity window, CA-vs-end-entity subject and key usage, and the
// optional SAN/issuer fields.
func buildTemplate(req CertRequest) *x509.Certificate {
	serial := req.Serial
	if serial <= 0 {
		serial = defaultSerial
	}
	days := req.Days
	if days <= 0 {
		days = defaultDays
	}
	isCA := req.IsCA.resolve(true)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Duration(days) * 24 * time.Hour),
		BasicConstraintsValid: true,
	}

	subjectCN := req.SubjectCN
	if isCA {
		if subjectCN == "" {
			subjectCN = caCommonName
		}
		template.Subject = pkix.Name{Country: []string{"KR"}, Organization: []string{"BeyonD"}, CommonName: subjectCN}
		template.IsCA = true
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageKeyEncipherment
		template.MaxPathLen = 0
		template.MaxPathLenZero = true
	} else {
		if subjectCN == "" {
			subjectCN = eeCommonName
		}
		template.Subject = pkix.Name{
			Country:            []string{"KR"},
			Organization:       []string{"BeyonD"},
			OrganizationalUnit: []string{eeOrgUnit},
			CommonName:         subjectCN,
		}
		template.IsCA = false
		template.KeyUsage = x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	}

	if req.AlternativeName != "" {
		if ip := net.ParseIP(req.AlternativeName); ip != nil {
			template.IPAddresses = []net.IP{ip}
		}
	}

	return template
}

// GenerateCertificate mints a new RSA keypair and an X.509 certificate per
// req, returning the certificate PEM, the private key PEM, and the parsed
// certificate for immediate use (e.g. as a future Issuer).
func GenerateCertificate(req CertRequest) (certPEM, keyPEM []byte, cert *x509.Certificate, err error) {
	bits := req.Bits
	if bits <= 0 {
		bits = defaultBits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, nil, berr.Wrap(berr.CryptoFault, certFactoryComponent, "GenerateCertificate", err)
	}

	template := buildTemplate(req)

	signerKey := key
	parent := template
	if req.Issuer != nil {
		signerKey = req.Issuer.PrivateKey
		parent = req.Issuer.Certificate
		template.AuthorityKeyId = req.Issuer.Certificate.SubjectKeyId
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signerKey)
	if err != nil {
		return nil, nil, nil, berr.Wrap(berr.CryptoFault, certFactoryComponent, "GenerateCertificate", err)
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, nil, berr.Wrap(berr.CryptoFault, certFactoryComponent, "GenerateCertificate", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, parsed, nil
}

// generateCertificateForExistingKey mints a certificate for a keypair the
// caller already owns (Prepare generates the keypair and certificate as two
// independent steps, so the certificate must bind the key that already
// exists rather than a freshly minted one).
func generateCertificateForExistingKey(priv *rsa.PrivateKey, req CertRequest) ([]byte, error) {
	req.Bits = priv.N.BitLen()
	template := buildTemplate(req)

	signerKey := priv
	parent := template
	if req.Issuer != nil {
		signerKey = req.Issuer.PrivateKey
		parent = req.Issuer.Certificate
		template.AuthorityKeyId = req.Issuer.Certificate.SubjectKeyId
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &priv.PublicKey, signerKey)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, certFactoryComponent, "Prepare", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}
