package tls

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// pHash implements the TLS 1.2 P_hash expansion (spec.md §4.2): iteratively
// compute A(0) = seed, A(i) = HMAC(secret, A(i-1)), emit HMAC(secret,
// A(i)||seed) and concatenate until out is full.
func pHash(newHash func() hash.Hash, secret, seed []byte, out []byte) {
	h := hmac.New(newHash, secret)
	h.Write(seed)
	a := h.Sum(nil)

	for len(out) > 0 {
		h.Reset()
		h.Write(a)
		h.Write(seed)
		b := h.Sum(nil)

		n := copy(out, b)
		out = out[n:]

		h.Reset()
		h.Write(a)
		a = h.Sum(nil)
	}
}

// prf10 implements the TLS 1.0/1.1 PRF (spec.md §4.2): split the secret into
// two overlapping halves, run P_MD5/P_SHA1 independently, XOR the results.
func prf10(secret, label, seed []byte, out []byte) {
	labelAndSeed := make([]byte, 0, len(label)+len(seed))
	labelAndSeed = append(labelAndSeed, label...)
	labelAndSeed = append(labelAndSeed, seed...)

	half := (len(secret) + 1) / 2
	s1, s2 := secret[:half], secret[len(secret)-half:]

	md5Out := make([]byte, len(out))
	pHash(md5.New, s1, labelAndSeed, md5Out)
	sha1Out := make([]byte, len(out))
	pHash(sha1.New, s2, labelAndSeed, sha1Out)

	for i := range out {
		out[i] = md5Out[i] ^ sha1Out[i]
	}
}

// prf12 returns a PRF function for TLS 1.2 using the given HMAC hash
// (spec.md §4.2 dispatches SHA256 by default, SHA384 for suites that name
// it explicitly).
func prf12(newHash func() hash.Hash) func(secret, label, seed []byte, out []byte) {
	return func(secret, label, seed []byte, out []byte) {
		labelAndSeed := make([]byte, 0, len(label)+len(seed))
		labelAndSeed = append(labelAndSeed, label...)
		labelAndSeed = append(labelAndSeed, seed...)
		pHash(newHash, secret, labelAndSeed, out)
	}
}

type prfFunc func(secret, label, seed []byte, out []byte)

// prfForVersion dispatches on negotiated version per spec.md §4.2; 1.2
// suites that don't name SHA384 default to SHA256.
func prfForVersion(version uint16, suite *cipherSuite) prfFunc {
	switch {
	case version >= VersionTLS12 && suite != nil && suite.flags&suiteSHA384 != 0:
		return prf12(sha512.New384)
	case version >= VersionTLS12:
		return prf12(sha256.New)
	default:
		return prf10
	}
}

var (
	masterSecretLabel = []byte("master secret")
	keyExpansionLabel = []byte("key expansion")
	clientFinishedLabel = []byte("client finished")
	serverFinishedLabel = []byte("server finished")
)

const masterSecretLength = 48

// masterSecretFromPreMaster implements spec.md §4.2's master-secret
// derivation: PRF(pre_master, "master secret", client_random||server_random, 48).
func masterSecretFromPreMaster(version uint16, suite *cipherSuite, preMaster, clientRandom, serverRandom []byte) []byte {
	seed := make([]byte, 0, len(clientRandom)+len(serverRandom))
	seed = append(seed, clientRandom...)
	seed = append(seed, serverRandom...)

	out := make([]byte, masterSecretLength)
	prfForVersion(version, suite)(preMaster, masterSecretLabel, seed, out)
	return out
}

// keyBlock derives the key-expansion block (spec.md §4.2): PRF(master, "key
// expansion", server_random||client_random, size) — note the reversed random
// ordering relative to the master-secret derivation.
func keyBlock(version uint16, suite *cipherSuite, master, clientRandom, serverRandom []byte, size int) []byte {
	seed := make([]byte, 0, len(clientRandom)+len(serverRandom))
	seed = append(seed, serverRandom...)
	seed = append(seed, clientRandom...)

	out := make([]byte, size)
	prfForVersion(version, suite)(master, keyExpansionLabel, seed, out)
	return out
}

// finishedVerifyData computes spec.md §4.4's Finished verify_data:
// PRF(master, "client finished"|"server finished", transcript_snapshot, n).
func finishedVerifyData(version uint16, suite *cipherSuite, master []byte, isServerFinished bool, transcript []byte) []byte {
	label := clientFinishedLabel
	if isServerFinished {
		label = serverFinishedLabel
	}
	n := suite.verifyDataLen
	if n == 0 {
		n = 12
	}
	out := make([]byte, n)
	prfForVersion(version, suite)(master, label, transcript, out)
	return out
}
