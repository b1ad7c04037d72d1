package eapol

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
)

// Frame-header constants this supplicant emits: EAPOL protocol version
// 802.1X-2001, packet type EAPOL-Key, and the RSN key descriptor type. The
// key_info descriptor-version bits of outgoing frames are left at zero.
const (
	protocolVersion2001 = 1
	packetTypeKey       = 3
	descriptorTypeRSN   = 2
)

// Config is everything a Supplicant needs to run one BSS association's 4-Way
// and Group-Key handshakes (spec.md §3's EAPoL handshake state attributes).
type Config struct {
	AA  [6]byte // authenticator (AP) MAC address
	SPA [6]byte // this station's MAC address
	PMK []byte  // 32 bytes, from DerivePMKFromPassphrase or 802.1X

	// SupplicantRSNE is this station's own RSNE, sent back in M2's key data.
	SupplicantRSNE []byte
	// AuthenticatorRSNE is the RSNE observed in the AP's beacon/probe
	// response, checked against the one M3 carries (spec.md §4.5 step 2).
	AuthenticatorRSNE []byte

	// Tx sends a fully marshaled EAPoL-Key frame to the authenticator.
	Tx func(frame []byte)
	// InstallTK installs the pairwise temporal key into the data-plane
	// cipher. Called at most once per derived PTK.
	InstallTK func(tk [16]byte)
	// InstallGTK installs a group temporal key at the given key ID. Called
	// at most once per derived GTK.
	InstallGTK func(gtk []byte, keyID int)
}

// Supplicant drives one station's 4-Way Handshake and Group-Key Handshake
// against a single authenticator, with the KRACK-resistant install
// discipline of spec.md §4.5 as its central invariant: a retransmitted M3 or
// Group-M1 (even with a bumped replay counter) gets a fresh reply but never
// a second install_tk/install_gtk call for the same derived key.
type Supplicant struct {
	cfg Config

	haveANonce bool
	aNonce     [32]byte
	sNonce     [32]byte
	ptk        PTK

	installedTK  bool
	installedGTK bool

	haveLastAccepted   bool
	lastAcceptedReplay uint64
}

// New creates a Supplicant bound to one association's config. cfg.PMK must
// already be derived (via DerivePMKFromPassphrase or supplied by 802.1X).
func New(cfg Config) *Supplicant {
	return &Supplicant{cfg: cfg}
}

// RxFrame processes one inbound EAPoL-Key frame. Any parse failure, MIC
// failure, stale replay counter, or key-data decrypt/validation failure is
// dropped silently: per spec.md §4.5, no reply and no state change.
func (s *Supplicant) RxFrame(buf []byte) error {
	d, err := ParseDescriptor(buf)
	if err != nil {
		return nil
	}
	switch {
	case d.IsPairwise() && !d.HasMIC():
		return s.handleM1(d)
	case d.IsPairwise() && d.HasMIC():
		return s.handleM3(d)
	case !d.IsPairwise() && d.HasMIC():
		return s.handleGroupM1(d)
	default:
		return nil
	}
}

// handleM1 accepts M1 when no handshake has yet completed, or when its
// replay counter strictly exceeds the last MIC-authenticated counter
// (spec.md §4.5 step 1): M1 itself carries no MIC, so it cannot move that
// counter forward on its own.
func (s *Supplicant) handleM1(d *Descriptor) error {
	if s.installedTK && d.ReplayCounter <= s.lastAcceptedReplay {
		return nil
	}

	var sNonce [32]byte
	if _, err := rand.Read(sNonce[:]); err != nil {
		return nil
	}

	s.aNonce = d.Nonce
	s.haveANonce = true
	s.sNonce = sNonce
	s.ptk = DerivePTK(s.cfg.PMK, s.cfg.AA, s.cfg.SPA, s.aNonce, s.sNonce)
	// A fresh M1 always starts a fresh PTK: whatever was installed under
	// the previous PTK must not be reused for this one's M3.
	s.installedTK = false

	s.sendM2(d.ReplayCounter)
	return nil
}

// handleM3 implements spec.md §4.5 step 2 and the KRACK-resistance contract
// of step 4: the replay-counter check alone decides whether to reply at
// all; install_tk is separately guarded so a legitimately higher-numbered
// retransmission still gets an M4 without ever installing the same TK twice.
func (s *Supplicant) handleM3(d *Descriptor) error {
	if !s.haveANonce {
		return nil
	}
	if !bytes.Equal(d.Nonce[:], s.aNonce[:]) {
		return nil
	}
	if !s.verifyMIC(d) {
		return nil
	}
	if s.haveLastAccepted && d.ReplayCounter <= s.lastAcceptedReplay {
		return nil
	}

	rsne, err := KeyUnwrap(s.ptk.KEK[:], d.KeyData)
	if err != nil {
		return nil
	}
	if !bytes.Equal(rsne, s.cfg.AuthenticatorRSNE) {
		return nil
	}

	if !s.installedTK {
		s.cfg.InstallTK(s.ptk.TK)
		s.installedTK = true
	}
	s.lastAcceptedReplay = d.ReplayCounter
	s.haveLastAccepted = true

	s.sendM4(d.ReplayCounter)
	return nil
}

// handleGroupM1 implements spec.md §4.5 step 3, with the same
// install-exactly-once discipline as handleM3: the Group-Key Handshake
// shares the single replay-counter field the 4-Way Handshake advanced, per
// spec.md §3's data model.
func (s *Supplicant) handleGroupM1(d *Descriptor) error {
	if !s.installedTK {
		return nil
	}
	if !s.verifyMIC(d) {
		return nil
	}
	if s.haveLastAccepted && d.ReplayCounter <= s.lastAcceptedReplay {
		return nil
	}

	gtk, err := KeyUnwrap(s.ptk.KEK[:], d.KeyData)
	if err != nil {
		return nil
	}

	if !s.installedGTK {
		s.cfg.InstallGTK(gtk, d.KeyID())
		s.installedGTK = true
	}
	s.lastAcceptedReplay = d.ReplayCounter
	s.haveLastAccepted = true

	s.sendGroupM2(d.ReplayCounter)
	return nil
}

func (s *Supplicant) verifyMIC(d *Descriptor) bool {
	got := MIC(s.ptk.KCK[:], d.MICInput())
	return subtle.ConstantTimeCompare(got[:], d.MIC[:]) == 1
}

func (s *Supplicant) sendM2(replayCounter uint64) {
	d := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyType | keyInfoKeyMIC,
		ReplayCounter:   replayCounter,
		Nonce:           s.sNonce,
		KeyData:         append([]byte(nil), s.cfg.SupplicantRSNE...),
	}
	s.sign(d)
	s.cfg.Tx(d.Marshal())
}

func (s *Supplicant) sendM4(replayCounter uint64) {
	d := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyType | keyInfoKeyMIC | keyInfoSecure,
		ReplayCounter:   replayCounter,
	}
	s.sign(d)
	s.cfg.Tx(d.Marshal())
}

func (s *Supplicant) sendGroupM2(replayCounter uint64) {
	d := &Descriptor{
		ProtocolVersion: protocolVersion2001,
		PacketType:      packetTypeKey,
		DescriptorType:  descriptorTypeRSN,
		KeyInfo:         keyInfoKeyMIC | keyInfoSecure,
		ReplayCounter:   replayCounter,
	}
	s.sign(d)
	s.cfg.Tx(d.Marshal())
}

func (s *Supplicant) sign(d *Descriptor) {
	mic := MIC(s.ptk.KCK[:], d.MICInput())
	d.MIC = mic
}
