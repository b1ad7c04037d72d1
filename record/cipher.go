// Package record is the record layer spec.md treats as an external
// collaborator (§1, §6): framing, per-record sequence numbers, compression,
// and the AEAD/CBC/stream encryption the tls package's handshake core never
// touches directly. It is driven by tls.Conn's Tx/Rx/InstallCipherFunc
// callbacks.
package record

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"gitlab.com/yawning/bsaes.git"

	tls "github.com/klb-systems/tlscore"
)

// ConstantTimeAES selects the bsaes bitsliced, constant-time AES
// implementation in place of crypto/aes for AES-CBC suites; GCM suites
// always use crypto/aes, whatever this is set to. crypto/aes
// has had timing-channel concerns on platforms without AES-NI/hardware
// support (the embedded-software targets spec.md §1's purpose statement
// names); bsaes trades throughput for a cache/branch-independent
// implementation there. Off by default; crypto/aes is faster when hardware
// acceleration is available.
var ConstantTimeAES = false

// direction holds one read or write half's live cipher state: the
// sequence number TLS's MAC/AEAD additional-data construction needs
// (spec.md §4.2), and the keyed cipher/MAC pair record.Conn installs from a
// tls.KeyMaterial.
type direction struct {
	km       tls.KeyMaterial
	seq      uint64
	aead     cipher.AEAD
	block    cipher.Block
	stream   cipher.Stream
	mac      tls.MAC
	cbcIV    []byte // TLS 1.0 CBC only: chained IV carried across records
	explicit bool   // TLS 1.1+/CBC: fresh explicit IV per record
}

func newDirection(km tls.KeyMaterial) (*direction, error) {
	d := &direction{km: km, mac: km.NewMAC()}
	switch km.Kind() {
	case tls.KindAEAD:
		d.aead = km.NewAEAD()
	case tls.KindBlock:
		block, err := blockFor(km)
		if err != nil {
			return nil, err
		}
		d.block = block
		d.explicit = km.ExplicitIV()
		if !d.explicit {
			d.cbcIV = append([]byte(nil), km.IV...)
		}
	case tls.KindStream:
		d.stream = km.NewStream()
	}
	return d, nil
}

func blockFor(km tls.KeyMaterial) (cipher.Block, error) {
	if ConstantTimeAES && km.SuiteID() != tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA {
		return bsaes.NewCipher(km.Key)
	}
	return km.NewBlock(), nil
}

// seqBytes renders the current sequence number as the 8-byte big-endian
// counter TLS's MAC and AEAD additional data both start with, then
// increments it. Sequence numbers reset to zero whenever a fresh cipher is
// installed (spec.md §4.2) and are never reused within one installed
// cipher's lifetime, so a plain counter is sufficient.
func (d *direction) seqBytes() [8]byte {
	var b [8]byte
	s := d.seq
	for i := 7; i >= 0; i-- {
		b[i] = byte(s)
		s >>= 8
	}
	d.seq++
	return b
}

func header(ct byte, version uint16, length int) []byte {
	return []byte{
		ct,
		byte(version >> 8), byte(version),
		byte(length >> 8), byte(length),
	}
}

var errBadRecordMAC = errors.New("record: bad record MAC")

// seal encrypts one record's plaintext payload for contentType ct under the
// write direction's installed cipher, returning wire-ready ciphertext.
func (d *direction) seal(ct byte, version uint16, plaintext []byte) []byte {
	seq := d.seqBytes()

	switch {
	case d.aead != nil:
		nonce := seq[:]
		aad := append(append([]byte(nil), seq[:]...), header(ct, version, len(plaintext))...)
		out := d.aead.Seal(nil, nonce, plaintext, aad)
		return append(append([]byte(nil), nonce...), out...)

	case d.block != nil:
		tag := d.mac.MAC(seq[:], header(ct, version, len(plaintext)), plaintext)

		padded := append(append([]byte(nil), plaintext...), tag...)
		blockSize := d.block.BlockSize()
		padLen := blockSize - (len(padded)+1)%blockSize
		for i := 0; i <= padLen; i++ {
			padded = append(padded, byte(padLen))
		}

		iv := d.cbcIV
		if d.explicit {
			iv = make([]byte, blockSize)
			if _, err := rand.Read(iv); err != nil {
				panic("record: system randomness unavailable for explicit CBC IV")
			}
		}
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(d.block, iv).CryptBlocks(out, padded)

		if d.explicit {
			return append(append([]byte(nil), iv...), out...)
		}
		d.cbcIV = out[len(out)-blockSize:]
		return out

	default: // stream
		tag := d.mac.MAC(seq[:], header(ct, version, len(plaintext)), plaintext)
		out := append(append([]byte(nil), plaintext...), tag...)
		d.stream.XORKeyStream(out, out)
		return out
	}
}

// open decrypts and authenticates one record's ciphertext, returning the
// recovered plaintext. MAC/padding failures return errBadRecordMAC without
// distinguishing which check failed or why, a constant-time discipline
// against CBC padding-oracle attacks (spec.md §4.2's record-layer contract
// implies this; Vaudenay's attack is the reason no distinct error is ever
// surfaced here).
func (d *direction) open(ct byte, version uint16, ciphertext []byte) ([]byte, error) {
	seq := d.seqBytes()

	switch {
	case d.aead != nil:
		nonceLen := d.aead.NonceSize()
		if len(ciphertext) < nonceLen {
			return nil, errBadRecordMAC
		}
		nonce, body := ciphertext[:nonceLen], ciphertext[nonceLen:]
		aad := append(append([]byte(nil), seq[:]...), header(ct, version, len(body)-d.aead.Overhead())...)
		out, err := d.aead.Open(nil, nonce, body, aad)
		if err != nil {
			return nil, errBadRecordMAC
		}
		return out, nil

	case d.block != nil:
		blockSize := d.block.BlockSize()
		var iv []byte
		if d.explicit {
			if len(ciphertext) < blockSize {
				return nil, errBadRecordMAC
			}
			iv, ciphertext = ciphertext[:blockSize], ciphertext[blockSize:]
		} else {
			iv = d.cbcIV
		}
		if len(ciphertext) == 0 || len(ciphertext)%blockSize != 0 {
			return nil, errBadRecordMAC
		}
		plain := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(d.block, iv).CryptBlocks(plain, ciphertext)
		if !d.explicit {
			d.cbcIV = append([]byte(nil), ciphertext[len(ciphertext)-blockSize:]...)
		}

		padLen := int(plain[len(plain)-1])
		if padLen+1 > len(plain) {
			return nil, errBadRecordMAC
		}
		good := 1
		for i := 0; i <= padLen; i++ {
			good &= subtle.ConstantTimeByteEq(plain[len(plain)-1-i], byte(padLen))
		}
		macLen := d.mac.Size()
		if len(plain)-padLen-1 < macLen {
			good = 0
		}
		dataEnd := len(plain) - padLen - 1 - macLen
		if dataEnd < 0 {
			dataEnd = 0
			good = 0
		}
		data := plain[:dataEnd]
		gotTag := plain[dataEnd : dataEnd+min(macLen, len(plain)-dataEnd)]
		wantTag := d.mac.MAC(seq[:], header(ct, version, len(data)), data)
		if subtle.ConstantTimeCompare(gotTag, wantTag) != 1 || good != 1 {
			return nil, errBadRecordMAC
		}
		return data, nil

	default: // stream
		plain := make([]byte, len(ciphertext))
		d.stream.XORKeyStream(plain, ciphertext)
		macLen := d.mac.Size()
		if len(plain) < macLen {
			return nil, errBadRecordMAC
		}
		data, gotTag := plain[:len(plain)-macLen], plain[len(plain)-macLen:]
		wantTag := d.mac.MAC(seq[:], header(ct, version, len(data)), data)
		if subtle.ConstantTimeCompare(gotTag, wantTag) != 1 {
			return nil, errBadRecordMAC
		}
		return data, nil
	}
}

