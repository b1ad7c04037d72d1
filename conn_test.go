package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairHarness wires a client Conn and a server Conn directly through their
// Tx callbacks: every handshake/CCS/alert fragment one side emits is handed
// straight to the other's Rx, synchronously, with no record-layer framing or
// encryption (that's the sibling record package's job, exercised separately
// by the cmd/ binaries). installCipher is left nil on both sides, which the
// handshake core already treats as "no cipher installed" — exactly what a
// plaintext in-memory wiring needs.
type pairHarness struct {
	t              *testing.T
	client, server *Conn

	clientIdentity, serverIdentity   string
	clientReady, serverReady         bool
	clientWire, serverWire           alertDescription
	clientDisconnected, serverDisconnected bool
	serverRxApp                      [][]byte

	// tamperClientHello, when set, rewrites a ClientHello's raw wire bytes
	// before the server ever sees them.
	tamperClientHello func(msg []byte) []byte
	// tamperClientKeyExchange, when set, rewrites a ClientKeyExchange's raw
	// wire bytes before the server ever sees them.
	tamperClientKeyExchange func(msg []byte) []byte
}

func newPairHarness(t *testing.T, clientCfg, serverCfg *Config) *pairHarness {
	h := &pairHarness{t: t}

	clientCfg.Ready = func(identity string) { h.clientReady = true; h.clientIdentity = identity }
	clientCfg.Disconnect = func(wire alertDescription, local string) { h.clientDisconnected = true; h.clientWire = wire }
	clientCfg.Tx = func(ct contentType, payload []byte) { h.deliver(true, ct, payload) }

	serverCfg.Ready = func(identity string) { h.serverReady = true; h.serverIdentity = identity }
	serverCfg.Disconnect = func(wire alertDescription, local string) { h.serverDisconnected = true; h.serverWire = wire }
	serverCfg.Rx = func(data []byte) { h.serverRxApp = append(h.serverRxApp, append([]byte(nil), data...)) }
	serverCfg.Tx = func(ct contentType, payload []byte) { h.deliver(false, ct, payload) }

	h.client = NewConn(RoleClient, clientCfg, nil)
	h.server = NewConn(RoleServer, serverCfg, nil)
	return h
}

func (h *pairHarness) deliver(fromClient bool, ct contentType, payload []byte) {
	to := h.client
	if fromClient {
		to = h.server
	}
	if fromClient && ct == recordTypeHandshake && len(payload) > 0 {
		switch handshakeType(payload[0]) {
		case typeClientHello:
			if h.tamperClientHello != nil {
				payload = h.tamperClientHello(payload)
			}
		case typeClientKeyExchange:
			if h.tamperClientKeyExchange != nil {
				payload = h.tamperClientKeyExchange(payload)
			}
		}
	}
	_ = to.Rx(ct, payload)
}

func (h *pairHarness) start(t *testing.T) {
	require.NoError(t, h.client.StartClient())
}

// TestClientFullHandshake is spec.md §8 scenario 1: a server with an RSA-2048
// leaf+CA chain completes a handshake (on the client's first offered suite,
// TLS_RSA_WITH_AES_128_GCM_SHA256) against a client that trusts its CA, and application data
// written by the client arrives at the server byte-for-byte.
func TestClientFullHandshake(t *testing.T) {
	serverChain, serverKey := testServerChainAndKey(t)
	ca := testCA(t)

	clientCfg := &Config{CACertificates: []*Certificate{ca}}
	serverCfg := &Config{LocalChain: serverChain, LocalKey: serverKey}

	h := newPairHarness(t, clientCfg, serverCfg)
	h.start(t)

	require.True(t, h.clientReady)
	require.True(t, h.serverReady)
	assert.Equal(t, "ExampleServer Inc", h.clientIdentity)
	assert.Equal(t, stateDone, h.client.state)
	assert.Equal(t, stateDone, h.server.state)

	require.NoError(t, h.client.Write([]byte("GET / HTTP/1.0\r\n\r\n")))
	require.Len(t, h.serverRxApp, 1)
	assert.Equal(t, "GET / HTTP/1.0\r\n\r\n", string(h.serverRxApp[0]))
}

// TestServerFullHandshakeWithClientAuth is spec.md §8 scenario 2: a server
// configured with a CA set that covers the client's issuer requests a client
// certificate; after CertificateVerify the server's ready callback receives
// the client's organization and peer_authenticated is true.
func TestServerFullHandshakeWithClientAuth(t *testing.T) {
	serverChain, serverKey := testServerChainAndKey(t)
	clientChain, clientKey := testClientChainAndKey(t)
	ca := testCA(t)

	clientCfg := &Config{
		CACertificates: []*Certificate{ca},
		LocalChain:     clientChain,
		LocalKey:       clientKey,
	}
	serverCfg := &Config{
		LocalChain:     serverChain,
		LocalKey:       serverKey,
		CACertificates: []*Certificate{ca},
	}

	h := newPairHarness(t, clientCfg, serverCfg)
	h.start(t)

	require.True(t, h.serverReady)
	assert.Equal(t, "ExampleClient LLC", h.serverIdentity)
	assert.True(t, h.server.peerAuthenticated)
	assert.True(t, h.client.peerAuthenticated)
}

// TestEmptyClientCertificateLeavesPeerUnauthenticated is spec.md §8 scenario
// 6: a client with no certificate configured sends an empty Certificate
// message; the server, configured with a CA set (so it requests one),
// accepts the handshake to completion anyway, but peer_authenticated stays
// false since no CertificateVerify ever followed.
func TestEmptyClientCertificateLeavesPeerUnauthenticated(t *testing.T) {
	serverChain, serverKey := testServerChainAndKey(t)
	ca := testCA(t)

	clientCfg := &Config{} // no LocalChain/LocalKey: Certificate will be empty
	serverCfg := &Config{
		LocalChain:     serverChain,
		LocalKey:       serverKey,
		CACertificates: []*Certificate{ca},
	}

	h := newPairHarness(t, clientCfg, serverCfg)
	h.start(t)

	require.True(t, h.serverReady)
	assert.Equal(t, stateDone, h.server.state)
	assert.False(t, h.server.peerAuthenticated)
	assert.Equal(t, "", h.serverIdentity)
}

// TestDowngradedClientHelloVersionBreaksTheHandshake is spec.md §8 scenario
// 3: an on-path tamper of the client_version the server records (here, by
// rewriting the wire ClientHello) diverges from the client_version the
// genuine client embedded in its own ClientKeyExchange pre-master at send
// time. handleClientKeyExchange's override (spec.md §4.4) then makes the
// server derive its master secret from a different pre-master than the
// client did, so Finished verification fails and the server emits
// decrypt_error — the handshake never silently downgrades.
func TestDowngradedClientHelloVersionBreaksTheHandshake(t *testing.T) {
	serverChain, serverKey := testServerChainAndKey(t)
	ca := testCA(t)

	clientCfg := &Config{CACertificates: []*Certificate{ca}}
	serverCfg := &Config{LocalChain: serverChain, LocalKey: serverKey}

	h := newPairHarness(t, clientCfg, serverCfg)
	h.tamperClientHello = func(msg []byte) []byte {
		tampered := append([]byte(nil), msg...)
		// ClientHello body starts at byte 4 (type+length header); the first
		// two body bytes are client_version. Roll TLS 1.2 back to TLS 1.0.
		require.Equal(t, byte(VersionTLS12>>8), tampered[4])
		require.Equal(t, byte(VersionTLS12), tampered[5])
		tampered[4], tampered[5] = byte(VersionTLS10>>8), byte(VersionTLS10)
		return tampered
	}
	h.start(t)

	require.True(t, h.serverDisconnected, "tampered downgrade must not be accepted silently")
	assert.Equal(t, alertDecryptError, h.serverWire)
	assert.False(t, h.serverReady)
}
