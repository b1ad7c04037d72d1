package tls

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPHashIsAPrefixAsOutputGrows(t *testing.T) {
	secret := []byte("a fairly ordinary pre-master secret")
	seed := []byte("client random || server random")

	short := make([]byte, 16)
	pHash(sha256.New, secret, seed, short)

	for _, extra := range []int{1, 17, 48} {
		longer := make([]byte, len(short)+extra)
		pHash(sha256.New, secret, seed, longer)
		assert.True(t, bytes.HasPrefix(longer, short), "P_hash(%d) must prefix P_hash(%d)", len(short), len(longer))
	}
}

func TestPRF12IsPrefixStableAcrossOutputLengths(t *testing.T) {
	prf := prf12(sha256.New)
	secret := []byte("master secret bytes, 48 of them, padded out here")
	label := []byte("key expansion")
	seed := []byte("server random || client random")

	base := make([]byte, 32)
	prf(secret, label, seed, base)

	extended := make([]byte, 96)
	prf(secret, label, seed, extended)

	assert.Equal(t, base, extended[:len(base)], "prf(secret,label,seed,n) must be a prefix of prf(secret,label,seed,n+k)")
}

func TestPRF10IsXORofMD5AndSHA1Halves(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789a") // odd length: halves overlap by one byte
	label := []byte("master secret")
	seed := []byte("some seed bytes")
	out := make([]byte, 48)
	prf10(secret, label, seed, out)

	half := (len(secret) + 1) / 2
	s1, s2 := secret[:half], secret[len(secret)-half:]
	labelAndSeed := append(append([]byte(nil), label...), seed...)

	md5Out := make([]byte, len(out))
	pHash(md5.New, s1, labelAndSeed, md5Out)
	sha1Out := make([]byte, len(out))
	pHash(sha1.New, s2, labelAndSeed, sha1Out)

	want := make([]byte, len(out))
	for i := range want {
		want[i] = md5Out[i] ^ sha1Out[i]
	}
	assert.Equal(t, want, out)
}

func TestMasterSecretFromPreMasterIsDeterministic(t *testing.T) {
	suite := cipherSuiteByID(TLS_RSA_WITH_AES_128_CBC_SHA)
	require.NotNil(t, suite)

	preMaster := bytes.Repeat([]byte{0x42}, masterSecretLength)
	clientRandom := bytes.Repeat([]byte{0x01}, 32)
	serverRandom := bytes.Repeat([]byte{0x02}, 32)

	a := masterSecretFromPreMaster(VersionTLS12, suite, preMaster, clientRandom, serverRandom)
	b := masterSecretFromPreMaster(VersionTLS12, suite, preMaster, clientRandom, serverRandom)
	assert.Equal(t, a, b)
	assert.Len(t, a, masterSecretLength)

	// Swapping client/server random (as key-block derivation does relative
	// to master-secret derivation) must change the output.
	swapped := masterSecretFromPreMaster(VersionTLS12, suite, preMaster, serverRandom, clientRandom)
	assert.NotEqual(t, a, swapped)
}
