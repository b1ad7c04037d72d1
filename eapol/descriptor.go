// Package eapol implements the WPA/WPA2 EAPoL-Key 4-Way and Group-Key
// handshake supplicant side: descriptor parsing, PTK/GTK derivation, and the
// KRACK-resistant install discipline (spec.md §4.5). Grounded on
// iwd-gm/unit/test-eapol.c and test-eapol_gtk.c for wire layout and ordering
// semantics — no Go EAPoL example exists in the retrieved pack.
package eapol

import (
	"encoding/binary"
	"errors"
)

// Key info bits, spec.md §6's key_info(2) field.
const (
	keyInfoKeyDescVersionMask = 0x0007
	keyInfoKeyType            = 1 << 3
	keyInfoInstall            = 1 << 6
	keyInfoKeyAck              = 1 << 7
	keyInfoKeyMIC             = 1 << 8
	keyInfoSecure             = 1 << 9
	keyInfoError              = 1 << 10
	keyInfoRequest            = 1 << 11
	keyInfoEncryptedKeyData   = 1 << 12
)

const (
	descriptorHeaderLen = 1 + 1 + 2 + 1 + 2 + 2 + 8 + 32 + 16 + 8 + 8 + 16 + 2
	nonceLen            = 32
	micLen              = 16
	rscLen              = 8
	ivLen               = 16
)

// Descriptor is the fixed-layout EAPoL-Key frame spec.md §6 specifies,
// network byte order throughout.
type Descriptor struct {
	ProtocolVersion uint8
	PacketType      uint8 // always 0x03 (Key)
	DescriptorType  uint8
	KeyInfo         uint16
	KeyLength       uint16
	ReplayCounter   uint64
	Nonce           [nonceLen]byte
	IV              [ivLen]byte
	RSC             [rscLen]byte
	MIC             [micLen]byte
	KeyData         []byte
}

var errMalformed = errors.New("eapol: malformed key descriptor")

// ParseDescriptor decodes a full EAPoL-Key frame, spec.md §6's byte layout.
func ParseDescriptor(buf []byte) (*Descriptor, error) {
	if len(buf) < descriptorHeaderLen {
		return nil, errMalformed
	}
	d := &Descriptor{}
	d.ProtocolVersion = buf[0]
	d.PacketType = buf[1]
	packetLen := binary.BigEndian.Uint16(buf[2:4])
	d.DescriptorType = buf[4]
	d.KeyInfo = binary.BigEndian.Uint16(buf[5:7])
	d.KeyLength = binary.BigEndian.Uint16(buf[7:9])
	d.ReplayCounter = binary.BigEndian.Uint64(buf[9:17])
	copy(d.Nonce[:], buf[17:17+nonceLen])
	off := 17 + nonceLen
	copy(d.IV[:], buf[off:off+ivLen])
	off += ivLen
	copy(d.RSC[:], buf[off:off+rscLen])
	off += rscLen
	off += 8 // reserved
	copy(d.MIC[:], buf[off:off+micLen])
	off += micLen
	keyDataLen := binary.BigEndian.Uint16(buf[off : off+2])
	off += 2

	if int(packetLen) > len(buf)-4 {
		return nil, errMalformed
	}
	if off+int(keyDataLen) > len(buf) {
		return nil, errMalformed
	}
	d.KeyData = append([]byte(nil), buf[off:off+int(keyDataLen)]...)
	return d, nil
}

// Marshal re-encodes the descriptor, recomputing packet_len from the current
// KeyData length. Used to build outbound M2/M4/Group-M2 frames.
func (d *Descriptor) Marshal() []byte {
	body := descriptorHeaderLen - 4 + len(d.KeyData)
	out := make([]byte, 4+body)
	out[0] = d.ProtocolVersion
	out[1] = d.PacketType
	binary.BigEndian.PutUint16(out[2:4], uint16(body))
	out[4] = d.DescriptorType
	binary.BigEndian.PutUint16(out[5:7], d.KeyInfo)
	binary.BigEndian.PutUint16(out[7:9], d.KeyLength)
	binary.BigEndian.PutUint64(out[9:17], d.ReplayCounter)
	copy(out[17:17+nonceLen], d.Nonce[:])
	off := 17 + nonceLen
	copy(out[off:off+ivLen], d.IV[:])
	off += ivLen
	copy(out[off:off+rscLen], d.RSC[:])
	off += rscLen
	off += 8 // reserved, left zero
	copy(out[off:off+micLen], d.MIC[:])
	off += micLen
	binary.BigEndian.PutUint16(out[off:off+2], uint16(len(d.KeyData)))
	off += 2
	copy(out[off:], d.KeyData)
	return out
}

// IsPairwise reports the key_info Key Type bit (pairwise vs group).
func (d *Descriptor) IsPairwise() bool { return d.KeyInfo&keyInfoKeyType != 0 }

// HasMIC reports whether the MIC bit is set (clear on the unauthenticated
// M1; set on M3 and Group-M1).
func (d *Descriptor) HasMIC() bool { return d.KeyInfo&keyInfoKeyMIC != 0 }

func (d *Descriptor) HasInstall() bool { return d.KeyInfo&keyInfoInstall != 0 }
func (d *Descriptor) HasAck() bool     { return d.KeyInfo&keyInfoKeyAck != 0 }
func (d *Descriptor) HasSecure() bool  { return d.KeyInfo&keyInfoSecure != 0 }

// KeyID returns the key_info Key ID bits (2 bits, spec.md §6), used by the
// Group-Key Handshake to select which of up to 4 GTK slots to install.
func (d *Descriptor) KeyID() int { return int(d.KeyInfo>>4) & 0x3 }

// zeroedMIC returns a copy of the frame with the MIC field zeroed, the form
// the MIC itself is computed over (spec.md §6).
func (d *Descriptor) zeroedMIC() *Descriptor {
	cp := *d
	cp.MIC = [micLen]byte{}
	return &cp
}

// MICInput returns the wire bytes the MIC is computed over: the whole
// descriptor with its MIC field zeroed.
func (d *Descriptor) MICInput() []byte { return d.zeroedMIC().Marshal() }
