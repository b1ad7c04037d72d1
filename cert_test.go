package tls

import (
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateFromDERRoundTrip(t *testing.T) {
	block, _ := pem.Decode([]byte(testServerCertPEM))
	require.NotNil(t, block, "test fixture must decode")

	cert, err := CertificateFromDER(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, block.Bytes, cert.DERData(), "certificate_der_data(certificate_from_der(b)) must equal b")
}

func TestCertificateFromDERRejectsGarbage(t *testing.T) {
	_, err := CertificateFromDER([]byte("not a certificate"))
	assert.Error(t, err)
}

func TestCertificatePublicKeyAlgorithmAndKey(t *testing.T) {
	block, _ := pem.Decode([]byte(testServerCertPEM))
	require.NotNil(t, block)
	cert, err := CertificateFromDER(block.Bytes)
	require.NoError(t, err)

	assert.Equal(t, pubKeyRSA, cert.PublicKeyAlgorithm())
	require.NotNil(t, cert.PublicKey())
	assert.Equal(t, 2048, cert.PublicKey().N.BitLen())
}

func TestCertificatePeerIdentityPrefersOrganization(t *testing.T) {
	cases := []struct {
		name    string
		certPEM string
		want    string
	}{
		{"server leaf has an Organization", testServerCertPEM, "ExampleServer Inc"},
		{"client leaf has an Organization", testClientCertPEM, "ExampleClient LLC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			block, _ := pem.Decode([]byte(tc.certPEM))
			require.NotNil(t, block)
			cert, err := CertificateFromDER(block.Bytes)
			require.NoError(t, err)
			assert.Equal(t, tc.want, cert.PeerIdentity())
		})
	}
}

func TestCertificateDN(t *testing.T) {
	block, _ := pem.Decode([]byte(testCACertPEM))
	require.NotNil(t, block)
	ca, err := CertificateFromDER(block.Bytes)
	require.NoError(t, err)
	assert.NotEmpty(t, ca.DN(), "DN() must return the raw Subject bytes")
	assert.Equal(t, "TestCorp Root CA", ca.Subject().CommonName)
}

func TestFixLegacyDNStringLeavesCleanStringsAlone(t *testing.T) {
	assert.Equal(t, "ExampleServer Inc", fixLegacyDNString("ExampleServer Inc"))
}

func TestFixLegacyDNStringRepairsLatin1MisdecodedAsUTF8(t *testing.T) {
	// "Café" mis-decoded byte-for-byte as UTF-8 when it was really ISO-8859-1
	// surfaces the 0xe9 ("é") as the UTF-8 replacement character.
	mis := "Caf\xe9"
	got := fixLegacyDNString(mis)
	assert.NotContains(t, got, "�")
}

func TestCertificatesFromPEMDecodesEveryBlockInOrder(t *testing.T) {
	certs, err := CertificatesFromPEM([]byte(testServerCertPEM + testCACertPEM))
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "localhost", certs[0].Subject().CommonName)
	assert.Equal(t, "TestCorp Root CA", certs[1].Subject().CommonName)
}

func TestCertificatesFromPEMRejectsEmptyInput(t *testing.T) {
	_, err := CertificatesFromPEM([]byte("not pem at all"))
	assert.ErrorIs(t, err, errNoPEMCertificate)
}

func TestRSAKeyFromPEMUnencrypted(t *testing.T) {
	key, err := RSAKeyFromPEM([]byte(testServerKeyPEM), "")
	require.NoError(t, err)
	assert.Equal(t, 2048, key.N.BitLen())
}

func TestRSAKeyFromPEMEncryptedRequiresPassphrase(t *testing.T) {
	_, err := RSAKeyFromPEM([]byte(testEncryptedClientKeyPEM), "")
	assert.ErrorIs(t, err, errEncryptedPEMNoKey)
}

func TestRSAKeyFromPEMEncryptedWithCorrectPassphrase(t *testing.T) {
	key, err := RSAKeyFromPEM([]byte(testEncryptedClientKeyPEM), testEncryptedClientKeyPassphrase)
	require.NoError(t, err)
	assert.Equal(t, 2048, key.N.BitLen())
}

func TestRSAKeyFromPEMEncryptedWithWrongPassphraseFails(t *testing.T) {
	_, err := RSAKeyFromPEM([]byte(testEncryptedClientKeyPEM), "definitely-wrong")
	assert.Error(t, err)
}
