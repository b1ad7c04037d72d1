package tls

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// pubKeyAlgorithm mirrors the cached SubjectPublicKeyInfo algorithm tag
// ell/ell/cert.c keeps alongside every certificate object.
type pubKeyAlgorithm int

const (
	pubKeyUnknown pubKeyAlgorithm = iota
	pubKeyRSA
)

// Certificate is an opaque DER blob plus the cached public-key algorithm tag
// and the doubly-linked issuer/issued pointers spec.md §3 describes. The DER
// bytes are immutable once the certificate is created.
type Certificate struct {
	der []byte
	x   *x509.Certificate
	alg pubKeyAlgorithm

	issuer *Certificate // toward the CA
	issued *Certificate // toward the leaf
}

var errBadCertFormat = errors.New("tls: bad certificate format")

// CertificateFromDER validates that buf is a well-formed DER certificate
// (outermost SEQUENCE spans the buffer, content parses up through the
// SubjectPublicKeyInfo AlgorithmIdentifier) and returns an opaque Certificate
// wrapping it. The DER/ASN.1 parsing itself is delegated to crypto/x509,
// treated as the external collaborator spec.md §1 names.
func CertificateFromDER(buf []byte) (*Certificate, error) {
	if len(buf) < 64 {
		return nil, errBadCertFormat
	}
	x, err := x509.ParseCertificate(buf)
	if err != nil {
		return nil, errBadCertFormat
	}

	alg := pubKeyUnknown
	if _, ok := x.PublicKey.(*rsa.PublicKey); ok {
		alg = pubKeyRSA
	}

	return &Certificate{der: buf, x: x, alg: alg}, nil
}

// DERData returns the original, immutable DER bytes the certificate was
// created from.
func (c *Certificate) DERData() []byte {
	return c.der
}

// DN returns the DER-encoded Subject Distinguished Name.
func (c *Certificate) DN() []byte {
	return c.x.RawSubject
}

// Subject returns the parsed Subject, used to populate the ready callback's
// peer-identity string (spec.md §4.4's "ready(peer_identity, ...)").
func (c *Certificate) Subject() pkix.Name {
	return c.x.Subject
}

// PeerIdentity renders the conventional "org from the leaf DN" string spec.md
// §8 scenario 1/2 expects the ready callback to receive.
func (c *Certificate) PeerIdentity() string {
	if len(c.x.Subject.Organization) > 0 {
		return fixLegacyDNString(c.x.Subject.Organization[0])
	}
	if c.x.Subject.CommonName != "" {
		return fixLegacyDNString(c.x.Subject.CommonName)
	}
	return c.x.Subject.String()
}

// fixLegacyDNString repairs RDN values from older CAs that tag a field
// T61String but fill it with ISO-8859-1 bytes rather than the T.61 charset
// Go's x509 decoder assumes, which otherwise surfaces as the UTF-8
// replacement character in CommonName/Organization. Detected by the
// presence of U+FFFD and re-decoded via the external collaborator
// golang.org/x/text's Latin-1 codec.
func fixLegacyDNString(s string) string {
	if !strings.ContainsRune(s, utf8.RuneError) {
		return s
	}
	fixed, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return fixed
}

// PublicKeyAlgorithm reports the cached SubjectPublicKeyInfo tag.
func (c *Certificate) PublicKeyAlgorithm() pubKeyAlgorithm {
	return c.alg
}

// PublicKey materialises an RSA key from the cached DER when the algorithm
// tag is pubKeyRSA; otherwise it returns nil (spec.md §4.1,
// certificate_public_key).
func (c *Certificate) PublicKey() *rsa.PublicKey {
	if c.alg != pubKeyRSA {
		return nil
	}
	k, _ := c.x.PublicKey.(*rsa.PublicKey)
	return k
}

// equalRaw reports whether two certificates are byte-identical, used by
// chain verification's self-signed-without-AKID workaround (spec.md §4.1).
func (c *Certificate) equalRaw(other *Certificate) bool {
	if c == nil || other == nil {
		return false
	}
	if len(c.der) != len(other.der) {
		return false
	}
	for i := range c.der {
		if c.der[i] != other.der[i] {
			return false
		}
	}
	return true
}

// checkSignedBy verifies that c's signature was produced by issuer's RSA key,
// under the ASYM_CHAIN restriction of spec.md §4.1 (RSA-PKCS1-v1_5 only —
// matches this module's RSA-only key-transport scope).
func (c *Certificate) checkSignedBy(issuer *rsa.PublicKey) error {
	if issuer == nil {
		return errBadCertFormat
	}
	return c.x.CheckSignatureFrom(&x509.Certificate{
		PublicKey:          issuer,
		PublicKeyAlgorithm: x509.RSA,
	})
}
