// Package certificate loads signing credentials from PKCS#12 bundles.
// Key material is returned to the caller and not retained; callers
// that sign in bursts can opt into the short-lived Cache.
package certificate

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/rezonia/nfe-engine/internal/model"
)

// Credential is a private key with its matching certificate
type Credential struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// GetKeyPair returns the key and DER certificate. Satisfies the
// goxmldsig X509KeyStore contract.
func (c *Credential) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	return c.Key, c.Cert.Raw, nil
}

// Fingerprint identifies the credential for cache keying
func (c *Credential) Fingerprint() string {
	sum := sha256.Sum256(c.Cert.Raw)
	return hex.EncodeToString(sum[:])
}

// Expired reports whether the certificate is outside its validity
// window at the given instant
func (c *Credential) Expired(now time.Time) bool {
	return now.Before(c.Cert.NotBefore) || now.After(c.Cert.NotAfter)
}

// Load extracts exactly one key/certificate pair from a PKCS#12
// bundle. A wrong passphrase, a malformed bundle, or a bundle without
// an RSA key all fail with a CertificateError.
func Load(bundle []byte, passphrase string) (*Credential, error) {
	if len(bundle) == 0 {
		return nil, model.NewCertificateError("empty credential bundle", nil)
	}
	key, cert, err := pkcs12.Decode(bundle, passphrase)
	if err != nil {
		return nil, model.NewCertificateError("cannot decode credential bundle", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, model.NewCertificateError("bundle does not hold an RSA private key", nil)
	}
	if cert == nil {
		return nil, model.NewCertificateError("bundle holds no certificate", nil)
	}
	return &Credential{Key: rsaKey, Cert: cert}, nil
}
