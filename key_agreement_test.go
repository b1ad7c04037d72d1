package tls

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandleClientKeyExchangeOverridesRecordedVersion is spec.md §8 scenario
// 3 at the function level: whatever client_version is embedded in a
// successfully decrypted pre-master, handleClientKeyExchange always
// overwrites it with the version the server actually recorded from
// ClientHello, so a pre-master claiming a lower version than was negotiated
// never survives into the master secret derivation.
func TestHandleClientKeyExchangeOverridesRecordedVersion(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	preMaster, encrypted, err := generateClientKeyExchange(&priv.PublicKey, VersionTLS10)
	require.NoError(t, err)
	assert.Equal(t, byte(VersionTLS10>>8), preMaster[0])
	assert.Equal(t, byte(VersionTLS10), preMaster[1])

	got := handleClientKeyExchange(priv, encrypted, VersionTLS12)
	assert.Equal(t, byte(VersionTLS12>>8), got[0], "recorded client_version must win over the decrypted one")
	assert.Equal(t, byte(VersionTLS12), got[1])
	assert.Equal(t, preMaster[2:], got[2:], "everything but the version prefix is untouched")
}

// TestHandleClientKeyExchangeBlindsGarbageCiphertext is spec.md §8 scenario
// 5, the Bleichenbacher countermeasure: a ciphertext that fails PKCS#1
// decryption (or decrypts to the wrong length) never panics or reports
// failure to the caller — it silently yields a random pre-master of the
// right length, so a timing/error oracle has nothing to distinguish.
func TestHandleClientKeyExchangeBlindsGarbageCiphertext(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	garbage := []byte("this is not a valid rsa pkcs1 ciphertext at all, just junk bytes")
	got := handleClientKeyExchange(priv, garbage, VersionTLS12)

	require.Len(t, got, masterSecretLength)
	assert.Equal(t, byte(VersionTLS12>>8), got[0])
	assert.Equal(t, byte(VersionTLS12), got[1])
}

func TestHandleClientKeyExchangeBlindsWrongLengthPlaintext(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	short, err := rsa.EncryptPKCS1v15(rand.Reader, &priv.PublicKey, []byte("too short"))
	require.NoError(t, err)

	got := handleClientKeyExchange(priv, short, VersionTLS12)
	require.Len(t, got, masterSecretLength)
}

// TestServerBlindsBleichenbacherThenRejectsBogusFinished is spec.md §8
// scenario 5 end to end: a malformed ClientKeyExchange produces no alert by
// itself (the server keeps going, blind to whether decryption succeeded);
// only once a Finished message fails to verify against the resulting
// (effectively random) master secret does the server emit decrypt_error.
func TestServerBlindsBleichenbacherThenRejectsBogusFinished(t *testing.T) {
	serverChain, serverKey := testServerChainAndKey(t)

	var disconnected bool
	var wire alertDescription
	cfg := &Config{
		LocalChain: serverChain,
		LocalKey:   serverKey,
		Tx:         func(contentType, []byte) {},
		Disconnect: func(w alertDescription, local string) { disconnected = true; wire = w },
	}
	server := NewConn(RoleServer, cfg, nil)

	ch := &clientHelloMsg{
		vers:               VersionTLS12,
		cipherSuites:       []uint16{TLS_RSA_WITH_AES_128_CBC_SHA},
		compressionMethods: []uint8{0},
	}
	require.NoError(t, server.Rx(recordTypeHandshake, ch.marshal()))
	require.Equal(t, stateWaitKeyExchange, server.state)

	cke := &clientKeyExchangeMsg{ciphertext: []byte("garbage, not a valid rsa ciphertext, wrong padding")}
	require.NoError(t, server.Rx(recordTypeHandshake, cke.marshal()))
	assert.False(t, disconnected, "a malformed ClientKeyExchange must not itself raise an alert")
	assert.Equal(t, stateWaitChangeCipherSpec, server.state)

	require.NoError(t, server.Rx(recordTypeChangeCipherSpec, []byte{0x01}))
	require.Equal(t, stateWaitFinished, server.state)

	fin := &finishedMsg{verifyData: make([]byte, 12)}
	err := server.Rx(recordTypeHandshake, fin.marshal())
	require.Error(t, err)
	assert.True(t, disconnected)
	assert.Equal(t, alertDecryptError, wire)
}
