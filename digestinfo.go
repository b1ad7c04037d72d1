package tls

import (
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
)

// hashAlgorithm identifies the TLS 1.2 SignatureAndHashAlgorithm.hash byte
// (spec.md §4.4.1/§6).
type hashAlgorithm uint8

const (
	hashMD5    hashAlgorithm = 1
	hashSHA1   hashAlgorithm = 2
	hashSHA256 hashAlgorithm = 4
	hashSHA384 hashAlgorithm = 5
	hashSHA512 hashAlgorithm = 6
)

const sigAlgorithmRSA uint8 = 1

// digestInfoPrefix returns the byte-exact DER DigestInfo prefix for h
// (spec.md §6). These are process-global, statically-allocated tables per
// spec.md §5.
func digestInfoPrefix(h hashAlgorithm) ([]byte, crypto.Hash) {
	switch h {
	case hashMD5:
		return []byte{0x30, 0x20, 0x30, 0x0c, 0x06, 0x08, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x05, 0x05, 0x00, 0x04, 0x10}, crypto.MD5
	case hashSHA1:
		return []byte{0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14}, crypto.SHA1
	case hashSHA256:
		return []byte{0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20}, crypto.SHA256
	case hashSHA384:
		return []byte{0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30}, crypto.SHA384
	case hashSHA512:
		return []byte{0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40}, crypto.SHA512
	default:
		// Programmer error per spec.md §7: an internal caller asked for an
		// unknown hash type in the DigestInfo dispatcher.
		panic("tls: internal error: unknown hash algorithm in DigestInfo dispatcher")
	}
}

func sumHash(h crypto.Hash, data []byte) []byte {
	switch h {
	case crypto.MD5:
		s := md5.Sum(data)
		return s[:]
	case crypto.SHA1:
		s := sha1.Sum(data)
		return s[:]
	case crypto.SHA256:
		s := sha256.Sum256(data)
		return s[:]
	case crypto.SHA384:
		s := sha512.Sum384(data)
		return s[:]
	case crypto.SHA512:
		s := sha512.Sum512(data)
		return s[:]
	default:
		panic("tls: internal error: unknown hash algorithm")
	}
}

// signTranscript signs either the legacy 36-byte MD5||SHA1 concatenation
// (TLS <= 1.1) or a single DigestInfo-wrapped hash (TLS 1.2), per spec.md
// §4.4.1. The external RSA backend is crypto/rsa, per spec.md §1.
func signTranscript(version uint16, key *rsa.PrivateKey, h hashAlgorithm, md5sha1, full []byte) ([]byte, error) {
	if version < VersionTLS12 {
		return rsa.SignPKCS1v15(rand.Reader, key, crypto.MD5SHA1, md5sha1)
	}
	// Assemble the DigestInfo explicitly from digestInfoPrefix's byte-exact
	// table (spec.md §6) rather than relying on crypto/rsa's own internal
	// prefix table matching it by coincidence; crypto.Hash(0) tells
	// SignPKCS1v15 to pad and sign the supplied bytes directly instead of
	// prepending its own prefix.
	digestInfo, _ := assembleDigestInfo(h, full)
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.Hash(0), digestInfo)
}

// verifyTranscript verifies a CertificateVerify/ServerKeyExchange signature
// per spec.md §4.4.1. For TLS 1.0/1.1 it accepts the 36-byte MD5||SHA1 form;
// for TLS 1.2 it verifies against the hash the 2-byte SignatureAndHashAlgorithm
// selected.
func verifyTranscript(version uint16, pub *rsa.PublicKey, h hashAlgorithm, md5sha1, full, sig []byte) error {
	if version < VersionTLS12 {
		return rsa.VerifyPKCS1v15(pub, crypto.MD5SHA1, md5sha1, sig)
	}
	digestInfo, _ := assembleDigestInfo(h, full)
	return rsa.VerifyPKCS1v15(pub, crypto.Hash(0), digestInfo, sig)
}

// assembleDigestInfo builds the DER DigestInfo digestInfoPrefix's table
// describes: prefix(h) || SHA(full). The resulting bytes are what is
// actually hashed-and-signed/verified (via crypto.Hash(0), which skips
// crypto/rsa's own internal prefix table entirely), making these bytes the
// ones spec.md §6 calls load-bearing rather than a decorative duplicate.
func assembleDigestInfo(h hashAlgorithm, full []byte) ([]byte, crypto.Hash) {
	prefix, cryptoHash := digestInfoPrefix(h)
	digest := sumHash(cryptoHash, full)
	digestInfo := make([]byte, 0, len(prefix)+len(digest))
	digestInfo = append(digestInfo, prefix...)
	digestInfo = append(digestInfo, digest...)
	return digestInfo, cryptoHash
}

// selectSignatureHash implements spec.md §4.4's CertificateRequest handling:
// prefer SHA256 if offered, else the first offered hash we still maintain a
// transcript for, else fail.
func selectSignatureHash(offered []hashAlgorithm, live map[hashAlgorithm]bool) (hashAlgorithm, bool) {
	for _, h := range offered {
		if h == hashSHA256 && live[hashSHA256] {
			return hashSHA256, true
		}
	}
	for _, h := range offered {
		if live[h] {
			return h, true
		}
	}
	return 0, false
}
