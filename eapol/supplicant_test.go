package eapol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	sent            [][]byte
	installedTKs    [][16]byte
	installedGTK    []byte
	installGTKCalls int
}

func (f *fakeLink) tx(frame []byte)       { f.sent = append(f.sent, frame) }
func (f *fakeLink) installTK(tk [16]byte) { f.installedTKs = append(f.installedTKs, tk) }
func (f *fakeLink) installGTK(g []byte, _ int) {
	f.installedGTK = append([]byte(nil), g...)
	f.installGTKCalls++
}

func testConfig(link *fakeLink) Config {
	rsne := []byte{0x30, 0x14, 0x01, 0x00}
	return Config{
		AA:                [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		SPA:               [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		PMK:               make([]byte, 32),
		SupplicantRSNE:    rsne,
		AuthenticatorRSNE: rsne,
		Tx:                link.tx,
		InstallTK:         link.installTK,
		InstallGTK:        link.installGTK,
	}
}

// m1Frame builds an unauthenticated M1 frame with the given ANonce/counter.
func m1Frame(aNonce [32]byte, counter uint64) []byte {
	d := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyType | keyInfoKeyAck,
		ReplayCounter:   counter,
		Nonce:           aNonce,
	}
	return d.Marshal()
}

// m3Frame builds a MIC-valid M3 carrying the AuthenticatorRSNE wrapped
// under the supplicant's derived KEK, as recovered from s after M1/M2.
func m3Frame(t *testing.T, s *Supplicant, counter uint64, rsne []byte) []byte {
	t.Helper()
	padded := append([]byte(nil), rsne...)
	for len(padded)%8 != 0 {
		padded = append(padded, 0)
	}
	wrapped, err := KeyWrap(s.ptk.KEK[:], padded)
	require.NoError(t, err)

	d := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyType | keyInfoKeyMIC | keyInfoInstall | keyInfoKeyAck | keyInfoSecure,
		ReplayCounter:   counter,
		Nonce:           s.aNonce,
		KeyData:         wrapped,
	}
	mic := MIC(s.ptk.KCK[:], d.MICInput())
	d.MIC = mic
	return d.Marshal()
}

func TestFourWayHandshakeHappyPath(t *testing.T) {
	link := &fakeLink{}
	s := New(testConfig(link))

	var aNonce [32]byte
	aNonce[0] = 0x01
	require.NoError(t, s.RxFrame(m1Frame(aNonce, 1)))
	require.Len(t, link.sent, 1, "M2 should have been sent")
	require.True(t, s.haveANonce)

	frame := m3Frame(t, s, 2, s.cfg.AuthenticatorRSNE)
	require.NoError(t, s.RxFrame(frame))

	assert.Len(t, link.installedTKs, 1)
	assert.Len(t, link.sent, 2, "M4 should have been sent")
	assert.True(t, s.installedTK)
	assert.Equal(t, uint64(2), s.lastAcceptedReplay)
}

// TestM3RetransmissionDoesNotReinstallTK is the KRACK-resistance contract of
// spec.md §4.5 step 4: a retransmitted M3 with a bumped replay counter gets
// a fresh M4 but must not trigger a second install_tk for the same PTK.
func TestM3RetransmissionDoesNotReinstallTK(t *testing.T) {
	link := &fakeLink{}
	s := New(testConfig(link))

	var aNonce [32]byte
	aNonce[0] = 0x02
	require.NoError(t, s.RxFrame(m1Frame(aNonce, 1)))

	require.NoError(t, s.RxFrame(m3Frame(t, s, 2, s.cfg.AuthenticatorRSNE)))
	require.Len(t, link.installedTKs, 1)
	require.Len(t, link.sent, 2)

	// Same M3 content, retransmitted by a KRACK-style adversary with an
	// incremented replay counter.
	require.NoError(t, s.RxFrame(m3Frame(t, s, 3, s.cfg.AuthenticatorRSNE)))

	assert.Len(t, link.installedTKs, 1, "install_tk must not fire twice for one PTK")
	assert.Len(t, link.sent, 3, "a fresh M4 is still expected")
	assert.Equal(t, uint64(3), s.lastAcceptedReplay)
}

// TestM3StaleReplayCounterIsDropped covers the plain non-monotonic case: a
// duplicate or older M3 gets no reply at all.
func TestM3StaleReplayCounterIsDropped(t *testing.T) {
	link := &fakeLink{}
	s := New(testConfig(link))

	var aNonce [32]byte
	aNonce[0] = 0x03
	require.NoError(t, s.RxFrame(m1Frame(aNonce, 5)))
	require.NoError(t, s.RxFrame(m3Frame(t, s, 6, s.cfg.AuthenticatorRSNE)))
	require.Len(t, link.sent, 2)

	require.NoError(t, s.RxFrame(m3Frame(t, s, 6, s.cfg.AuthenticatorRSNE)))
	assert.Len(t, link.sent, 2, "identical counter must not produce another M4")
	assert.Len(t, link.installedTKs, 1)
}

func TestM3BadMICIsDropped(t *testing.T) {
	link := &fakeLink{}
	s := New(testConfig(link))

	var aNonce [32]byte
	aNonce[0] = 0x04
	require.NoError(t, s.RxFrame(m1Frame(aNonce, 1)))

	frame := m3Frame(t, s, 2, s.cfg.AuthenticatorRSNE)
	frame[len(frame)-1] ^= 0xff // corrupt key data, MIC no longer matches
	require.NoError(t, s.RxFrame(frame))

	assert.Empty(t, link.installedTKs)
	assert.Len(t, link.sent, 1, "only M2 should have gone out")
}

func TestGroupKeyHandshakeRequiresPriorTK(t *testing.T) {
	link := &fakeLink{}
	s := New(testConfig(link))

	gd := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyMIC | keyInfoSecure | keyInfoInstall,
		ReplayCounter:   1,
	}
	require.NoError(t, s.RxFrame(gd.Marshal()))
	assert.Empty(t, link.sent, "group handshake before a completed 4-way handshake must be ignored")
}

func TestGroupKeyHandshakeInstallsOnce(t *testing.T) {
	link := &fakeLink{}
	s := New(testConfig(link))

	var aNonce [32]byte
	aNonce[0] = 0x05
	require.NoError(t, s.RxFrame(m1Frame(aNonce, 1)))
	require.NoError(t, s.RxFrame(m3Frame(t, s, 2, s.cfg.AuthenticatorRSNE)))
	require.True(t, s.installedTK)

	gtk := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wrapped, err := KeyWrap(s.ptk.KEK[:], gtk)
	require.NoError(t, err)
	gd := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyMIC | keyInfoSecure | keyInfoInstall,
		ReplayCounter:   3,
		KeyData:         wrapped,
	}
	gd.MIC = MIC(s.ptk.KCK[:], gd.MICInput())

	require.NoError(t, s.RxFrame(gd.Marshal()))
	assert.Equal(t, gtk, link.installedGTK)
	assert.Equal(t, 1, link.installGTKCalls)

	// Retransmitted Group-M1 with a bumped counter: fresh Group-M2, no
	// second install_gtk.
	gd.ReplayCounter = 4
	gd.MIC = MIC(s.ptk.KCK[:], gd.MICInput())
	require.NoError(t, s.RxFrame(gd.Marshal()))
	assert.Equal(t, 1, link.installGTKCalls, "install_gtk must not fire twice for one GTK")
}
