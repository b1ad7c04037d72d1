package eapol

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
)

// NIST AES Key Wrap, RFC 3394, over the KEK: spec.md §4.5 step 2 ("Decrypt
// key-data with the KEK under NIST-AES-key-wrap"). No example repo or
// other_examples/ file in the retrieval pack implements AES-KW, and it is
// absent from the Go standard library (crypto/cipher has no wrap mode), so
// this is hand-written against the RFC rather than grounded on a pack
// source — the one place this module falls back to first-principles crypto
// instead of imitating an example (see DESIGN.md).

var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

var errKeyWrapIntegrity = errors.New("eapol: AES key unwrap integrity check failed")
var errKeyWrapLength = errors.New("eapol: key wrap input is not a multiple of 8 bytes, or too short")

// KeyUnwrap reverses KeyWrap: kek must be 16 bytes (AES-128, the only TK/GTK
// size this module's suites use); wrapped must be a multiple of 8 bytes and
// at least 16.
func KeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 16 {
		return nil, errKeyWrapLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], wrapped[8+i*8:16+i*8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			xorBytes(a[:], tb[:])

			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			dec := make([]byte, 16)
			block.Decrypt(dec, buf)

			copy(a[:], dec[:8])
			copy(r[i-1][:], dec[8:])
		}
	}

	for i := range a {
		if a[i] != defaultIV[i] {
			return nil, errKeyWrapIntegrity
		}
	}

	out := make([]byte, n*8)
	for i := 0; i < n; i++ {
		copy(out[i*8:], r[i][:])
	}
	return out, nil
}

// KeyWrap is KeyUnwrap's peer, used when building test fixtures and the
// (rarely exercised) authenticator-side message construction.
func KeyWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) == 0 {
		return nil, errKeyWrapLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(plaintext) / 8
	a := defaultIV
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], plaintext[i*8:(i+1)*8])
	}

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			enc := make([]byte, 16)
			block.Encrypt(enc, buf)

			copy(a[:], enc[:8])
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			xorBytes(a[:], tb[:])

			copy(r[i-1][:], enc[8:])
		}
	}

	out := make([]byte, 8+n*8)
	copy(out[:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8+i*8:], r[i][:])
	}
	return out, nil
}

func xorBytes(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
