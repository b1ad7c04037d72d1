package tls

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// transcript maintains the four running handshake-message digests spec.md
// §4.4.3 requires, plus the "snapshot immediately before this message"
// discipline CertificateVerify and Finished depend on. hash.Hash.Sum never
// resets the running state, so a snapshot is just an early Sum call followed
// by continuing to Write.
type transcript struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	sha384 hash.Hash
}

func newTranscript() *transcript {
	return &transcript{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
		sha384: sha512.New384(),
	}
}

// write feeds msg (the full handshake-message bytes, header included) to
// every still-live hash. HelloRequest is never passed here (spec.md §4.4.3).
func (t *transcript) write(msg []byte) {
	if t.md5 != nil {
		t.md5.Write(msg)
	}
	if t.sha1 != nil {
		t.sha1.Write(msg)
	}
	if t.sha256 != nil {
		t.sha256.Write(msg)
	}
	if t.sha384 != nil {
		t.sha384.Write(msg)
	}
}

// transcriptSnapshot captures every live running digest at once, immediately
// before a CertificateVerify or Finished message is hashed (spec.md §4.4.3).
type transcriptSnapshot struct {
	md5, sha1, sha256, sha384 []byte
}

func (t *transcript) snapshot() transcriptSnapshot {
	var s transcriptSnapshot
	if t.md5 != nil {
		s.md5 = t.md5.Sum(nil)
	}
	if t.sha1 != nil {
		s.sha1 = t.sha1.Sum(nil)
	}
	if t.sha256 != nil {
		s.sha256 = t.sha256.Sum(nil)
	}
	if t.sha384 != nil {
		s.sha384 = t.sha384.Sum(nil)
	}
	return s
}

// md5sha1 returns the legacy 36-byte concatenation TLS <= 1.1 signs.
func (s transcriptSnapshot) md5sha1() []byte {
	out := make([]byte, 0, md5.Size+sha1.Size)
	out = append(out, s.md5...)
	out = append(out, s.sha1...)
	return out
}

// forHash returns the snapshot matching the given TLS 1.2
// SignatureAndHashAlgorithm hash byte.
func (s transcriptSnapshot) forHash(h hashAlgorithm) []byte {
	switch h {
	case hashMD5:
		return s.md5
	case hashSHA1:
		return s.sha1
	case hashSHA256:
		return s.sha256
	case hashSHA384:
		return s.sha384
	default:
		panic("tls: internal error: transcript snapshot for unmaintained hash")
	}
}

// dropPre12Hashes releases SHA256/SHA384 once the negotiated version is
// known to be < 1.2 (spec.md §4.4.3): those hashes are never consulted again.
func (t *transcript) dropPre12Hashes() {
	t.sha256 = nil
	t.sha384 = nil
}

// restrictTo keeps only the PRF hash and the chosen 1.2 signature hash alive,
// once both are known (spec.md §4.4.3's second pruning step). prfHash and
// sigHash may be the same; either may be zero if not applicable.
func (t *transcript) restrictTo(prfHash, sigHash hashAlgorithm) {
	keep := map[hashAlgorithm]bool{prfHash: true}
	if sigHash != 0 {
		keep[sigHash] = true
	}
	if !keep[hashMD5] {
		t.md5 = nil
	}
	if !keep[hashSHA1] {
		t.sha1 = nil
	}
	if !keep[hashSHA256] {
		t.sha256 = nil
	}
	if !keep[hashSHA384] {
		t.sha384 = nil
	}
}
