package tls

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	errNoPEMCertificate  = errors.New("tls: no CERTIFICATE block found in PEM data")
	errNoPEMKey          = errors.New("tls: no RSA PRIVATE KEY block found in PEM data")
	errEncryptedPEMNoKey = errors.New("tls: PEM key is encrypted but no passphrase was supplied")
)

// CertificatesFromPEM decodes every CERTIFICATE block in buf, in file order,
// into Certificates via CertificateFromDER. Used by the cmd/ demo binaries to
// turn a -ca or -cert file into the Certificate values CACertificates and
// ChainFromCerts expect.
func CertificatesFromPEM(buf []byte) ([]*Certificate, error) {
	var out []*Certificate
	for {
		var block *pem.Block
		block, buf = pem.Decode(buf)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := CertificateFromDER(block.Bytes)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if len(out) == 0 {
		return nil, errNoPEMCertificate
	}
	return out, nil
}

// ChainFromPEM decodes buf's CERTIFICATE blocks, leaf first, into a Chain via
// ChainFromCerts.
func ChainFromPEM(buf []byte) (*Chain, error) {
	certs, err := CertificatesFromPEM(buf)
	if err != nil {
		return nil, err
	}
	return ChainFromCerts(certs)
}

// RSAKeyFromPEM decodes buf's first private-key block (PKCS#1 "RSA PRIVATE
// KEY" or PKCS#8 "PRIVATE KEY") into an RSA private key. passphrase decrypts
// a block carrying legacy PEM encryption (RFC 1423's DEK-Info header, the
// form "openssl genrsa -aes256" and similar tools produce); it may be empty
// for an unencrypted key, matching spec.md §6's
// set_auth_data(cert_path, key_path, passphrase).
func RSAKeyFromPEM(buf []byte, passphrase string) (*rsa.PrivateKey, error) {
	for {
		var block *pem.Block
		block, buf = pem.Decode(buf)
		if block == nil {
			return nil, errNoPEMKey
		}
		der := block.Bytes
		if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy PEM encryption is the only form this module needs to interoperate with
			if passphrase == "" {
				return nil, errEncryptedPEMNoKey
			}
			decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck
			if err != nil {
				return nil, fmt.Errorf("tls: decrypting PEM key: %w", err)
			}
			der = decrypted
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(der)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(der)
			if err != nil {
				return nil, err
			}
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, errors.New("tls: PEM private key is not RSA")
			}
			return rsaKey, nil
		}
	}
}
