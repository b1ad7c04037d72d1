// Adapted from the teacher's cipher_suites.go (a crypto/tls fork). The
// struct shape, AEAD wrapper type, and lookup helpers are kept; ECDHE/ECDSA
// suites, TLS 1.3 suites, and SSLv3 MAC support are dropped per spec.md's
// Non-goals (DH/ECDHE, TLS 1.3) and version floor (TLS 1.0) — see DESIGN.md.
package tls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// Suite IDs this module supports: spec.md §4.3's minimum RSA-only set.
const (
	TLS_RSA_WITH_RC4_128_MD5        uint16 = 0x0004
	TLS_RSA_WITH_RC4_128_SHA        uint16 = 0x0005
	TLS_RSA_WITH_3DES_EDE_CBC_SHA   uint16 = 0x000a
	TLS_RSA_WITH_AES_128_CBC_SHA    uint16 = 0x002f
	TLS_RSA_WITH_AES_256_CBC_SHA    uint16 = 0x0035
	TLS_RSA_WITH_AES_128_CBC_SHA256 uint16 = 0x003c
	TLS_RSA_WITH_AES_128_GCM_SHA256 uint16 = 0x009c
	TLS_RSA_WITH_AES_256_GCM_SHA384 uint16 = 0x009d
)

// suite flag bits. The teacher's suiteECDHE/suiteECDSA bits are dropped
// along with ECDHE/ECDSA support; suiteTLS12 (AEAD needs negotiated >= 1.2)
// and suiteSHA384 (PRF hash selection, spec.md §4.2) remain.
const (
	suiteTLS12 = 1 << iota
	suiteSHA384
)

const (
	aeadNonceLength   = 12
	noncePrefixLength = 4
)

// prefixNonceAEAD wraps an AEAD by prefixing a fixed portion of the nonce;
// used by the GCM suites (kept from the teacher almost verbatim).
type prefixNonceAEAD struct {
	nonce [aeadNonceLength]byte
	aead  cipher.AEAD
}

func (f *prefixNonceAEAD) NonceSize() int { return aeadNonceLength - noncePrefixLength }
func (f *prefixNonceAEAD) Overhead() int  { return f.aead.Overhead() }

func (f *prefixNonceAEAD) Seal(out, nonce, plaintext, additionalData []byte) []byte {
	copy(f.nonce[noncePrefixLength:], nonce)
	return f.aead.Seal(out, f.nonce[:], plaintext, additionalData)
}

func (f *prefixNonceAEAD) Open(out, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	copy(f.nonce[noncePrefixLength:], nonce)
	return f.aead.Open(out, f.nonce[:], ciphertext, additionalData)
}

func aeadAESGCM(key, noncePrefix []byte) cipher.AEAD {
	if len(noncePrefix) != noncePrefixLength {
		panic("tls: internal error: wrong nonce length")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	aeadCipher, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	ret := &prefixNonceAEAD{aead: aeadCipher}
	copy(ret.nonce[:], noncePrefix)
	return ret
}

// macFunc is the record layer's MAC-over-(seq,header,data) contract.
type macFunc interface {
	Size() int
	MAC(seq, header, data []byte) []byte
}

// tls10MAC implements the TLS 1.0/1.1/1.2 MAC function, RFC 2246 §6.2.3
// (kept from the teacher).
type tls10MAC struct {
	h hash.Hash
}

func (s tls10MAC) Size() int { return s.h.Size() }

func (s tls10MAC) MAC(seq, header, data []byte) []byte {
	s.h.Reset()
	s.h.Write(seq)
	s.h.Write(header)
	s.h.Write(data)
	return s.h.Sum(nil)
}

func hmacMD5(key []byte) macFunc    { return tls10MAC{h: hmac.New(md5.New, key)} }
func hmacSHA1(key []byte) macFunc   { return tls10MAC{h: hmac.New(sha1.New, key)} }
func hmacSHA256(key []byte) macFunc { return tls10MAC{h: hmac.New(sha256.New, key)} }

// blockCipherFunc constructs the bulk cipher.Block for a CBC suite's key
// block expansion; aeadFunc constructs the cipher.AEAD for a GCM suite.
type blockCipherFunc func(key []byte) cipher.Block
type aeadFunc func(key, noncePrefix []byte) cipher.AEAD

func newAESBlock(key []byte) cipher.Block {
	b, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return b
}

func new3DESBlock(key []byte) cipher.Block {
	b, err := des.NewTripleDESCipher(key)
	if err != nil {
		panic(err)
	}
	return b
}

func newRC4Stream(key []byte) cipher.Stream {
	c, err := rc4.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return c
}

// cipherSuite is the static per-suite descriptor, generalized from the
// teacher's table to spec.md §4.3's RSA-only compatibility rule.
type cipherSuite struct {
	id            uint16
	name          string
	verifyDataLen int
	flags         int

	ka func() keyAgreement

	keyLen int // bulk cipher key length in bytes
	ivLen  int // explicit/fixed IV or nonce-prefix length in the key block

	aead   aeadFunc                       // non-nil for AEAD suites
	block  blockCipherFunc                // non-nil for CBC suites
	stream func(key []byte) cipher.Stream // non-nil for RC4 suites
	mac    func(key []byte) macFunc       // nil for AEAD suites
}

func rsaKA() keyAgreement { return rsaKeyAgreement{} }

// macKeyLen is the MAC key length this suite's key block needs (0 for AEAD
// suites, which fold authentication into the cipher).
func (cs *cipherSuite) macKeyLen() int {
	if cs.mac == nil {
		return 0
	}
	return cs.mac(nil).Size()
}

// compatible implements spec.md §4.3's negotiation rule: the local identity
// must be RSA (this module's only key-exchange variant), and AEAD/suiteTLS12
// suites require a negotiated version of at least TLS 1.2.
func (cs *cipherSuite) compatible(version uint16, localKeyAlg pubKeyAlgorithm) bool {
	if localKeyAlg != pubKeyRSA {
		return false
	}
	if (cs.aead != nil || cs.flags&suiteTLS12 != 0) && version < VersionTLS12 {
		return false
	}
	return true
}

// utlsSupportedCipherSuites is the static, process-global catalogue spec.md
// §4.3 describes, trimmed to the RSA-only minimum set.
var utlsSupportedCipherSuites = []*cipherSuite{
	{
		id: TLS_RSA_WITH_AES_128_GCM_SHA256, name: "TLS_RSA_WITH_AES_128_GCM_SHA256",
		verifyDataLen: 12, flags: suiteTLS12, ka: rsaKA,
		keyLen: 16, ivLen: noncePrefixLength, aead: aeadAESGCM,
	},
	{
		id: TLS_RSA_WITH_AES_256_GCM_SHA384, name: "TLS_RSA_WITH_AES_256_GCM_SHA384",
		verifyDataLen: 12, flags: suiteTLS12 | suiteSHA384, ka: rsaKA,
		keyLen: 32, ivLen: noncePrefixLength, aead: aeadAESGCM,
	},
	{
		id: TLS_RSA_WITH_AES_128_CBC_SHA256, name: "TLS_RSA_WITH_AES_128_CBC_SHA256",
		verifyDataLen: 12, flags: suiteTLS12, ka: rsaKA,
		keyLen: 16, ivLen: 16, block: newAESBlock, mac: hmacSHA256,
	},
	{
		id: TLS_RSA_WITH_AES_128_CBC_SHA, name: "TLS_RSA_WITH_AES_128_CBC_SHA",
		verifyDataLen: 12, ka: rsaKA,
		keyLen: 16, ivLen: 16, block: newAESBlock, mac: hmacSHA1,
	},
	{
		id: TLS_RSA_WITH_AES_256_CBC_SHA, name: "TLS_RSA_WITH_AES_256_CBC_SHA",
		verifyDataLen: 12, ka: rsaKA,
		keyLen: 32, ivLen: 16, block: newAESBlock, mac: hmacSHA1,
	},
	{
		id: TLS_RSA_WITH_3DES_EDE_CBC_SHA, name: "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
		verifyDataLen: 12, ka: rsaKA,
		keyLen: 24, ivLen: 8, block: new3DESBlock, mac: hmacSHA1,
	},
	{
		id: TLS_RSA_WITH_RC4_128_SHA, name: "TLS_RSA_WITH_RC4_128_SHA",
		verifyDataLen: 12, ka: rsaKA,
		keyLen: 16, stream: newRC4Stream, mac: hmacSHA1,
	},
	{
		id: TLS_RSA_WITH_RC4_128_MD5, name: "TLS_RSA_WITH_RC4_128_MD5",
		verifyDataLen: 12, ka: rsaKA,
		keyLen: 16, stream: newRC4Stream, mac: hmacMD5,
	},
}

func cipherSuiteByID(id uint16) *cipherSuite {
	for _, suite := range utlsSupportedCipherSuites {
		if suite.id == id {
			return suite
		}
	}
	return nil
}

// defaultCipherSuiteOrder is the fixed order a client offers suites in (and
// the set a client checks the ServerHello's chosen suite against via
// offeredSuite):
// AEAD first, then CBC, then RC4 last. Selection itself is always in
// client-offered order (handshake_server.go's serverHandleClientHello loops
// ch.cipherSuites directly, per spec.md §4.4); this slice has no role in
// server-side preference.
var defaultCipherSuiteOrder = []uint16{
	TLS_RSA_WITH_AES_128_GCM_SHA256,
	TLS_RSA_WITH_AES_256_GCM_SHA384,
	TLS_RSA_WITH_AES_128_CBC_SHA256,
	TLS_RSA_WITH_AES_128_CBC_SHA,
	TLS_RSA_WITH_AES_256_CBC_SHA,
	TLS_RSA_WITH_3DES_EDE_CBC_SHA,
	TLS_RSA_WITH_RC4_128_SHA,
	TLS_RSA_WITH_RC4_128_MD5,
}
