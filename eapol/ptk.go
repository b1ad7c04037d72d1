package eapol

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
)

const (
	kckLen = 16
	kekLen = 16
	tkLen  = 16
	ptkLen = kckLen + kekLen + tkLen
)

// PTK holds the three keys a 4-Way Handshake derives from the PMK
// (spec.md §3's "derived PTK (KCK, KEK, TK)").
type PTK struct {
	KCK [kckLen]byte
	KEK [kekLen]byte
	TK  [tkLen]byte
}

// prfBits is the IEEE 802.11 key-derivation PRF: an HMAC-SHA1 counter-mode
// expansion structurally the same shape as TLS's P_hash (spec.md §4.2's
// sibling construction) — iterate HMAC(key, label||0x00||data||counter) for
// successive counter bytes until enough output is produced.
func prfBits(key, label, data []byte, bits int) []byte {
	out := make([]byte, 0, (bits+7)/8+sha1.Size)
	var counter byte
	for len(out)*8 < bits {
		h := hmac.New(sha1.New, key)
		h.Write(label)
		h.Write([]byte{0x00})
		h.Write(data)
		h.Write([]byte{counter})
		out = h.Sum(out)
		counter++
	}
	return out[:bits/8]
}

var pairwiseKeyExpansionLabel = []byte("Pairwise key expansion")

// DerivePTK implements the 4-Way Handshake's PTK derivation (spec.md §4.5,
// step 1): PTK = PRF-X(PMK, "Pairwise key expansion", Min(AA,SPA) ||
// Max(AA,SPA) || Min(ANonce,SNonce) || Max(ANonce,SNonce)).
func DerivePTK(pmk []byte, aa, spa [6]byte, aNonce, sNonce [32]byte) PTK {
	data := make([]byte, 0, 12+64)
	if bytes.Compare(aa[:], spa[:]) <= 0 {
		data = append(data, aa[:]...)
		data = append(data, spa[:]...)
	} else {
		data = append(data, spa[:]...)
		data = append(data, aa[:]...)
	}
	if bytes.Compare(aNonce[:], sNonce[:]) <= 0 {
		data = append(data, aNonce[:]...)
		data = append(data, sNonce[:]...)
	} else {
		data = append(data, sNonce[:]...)
		data = append(data, aNonce[:]...)
	}

	raw := prfBits(pmk, pairwiseKeyExpansionLabel, data, ptkLen*8)

	var ptk PTK
	copy(ptk.KCK[:], raw[0:kckLen])
	copy(ptk.KEK[:], raw[kckLen:kckLen+kekLen])
	copy(ptk.TK[:], raw[kckLen+kekLen:kckLen+kekLen+tkLen])
	return ptk
}

// MIC computes the key-confirmation MIC over a descriptor whose MIC field is
// currently zeroed (spec.md §6's mic(16) field), under KCK via HMAC-SHA1,
// truncated to 16 bytes (the WPA/TKIP and WPA2/CCMP key-descriptor-version 1
// and 2 MIC construction both truncate HMAC-SHA1 this way for the suites
// this module targets).
func MIC(kck []byte, frameWithZeroMIC []byte) [16]byte {
	h := hmac.New(sha1.New, kck)
	h.Write(frameWithZeroMIC)
	sum := h.Sum(nil)
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}
