package tls

// Wire encode/decode for the handshake messages this module's RSA-only,
// no-ServerKeyExchange flow actually uses (spec.md §6, §4.6). Each message
// type mirrors the teacher's marshal/unmarshal-pair convention inferred from
// cipher_suites.go's keyAgreement method shapes (*clientHelloMsg etc.).

func putUint24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// messageReader is a bounds-checked cursor over a handshake message body.
type messageReader struct {
	data []byte
	pos  int
}

func (r *messageReader) remaining() int { return len(r.data) - r.pos }

func (r *messageReader) readBytes(n int) ([]byte, bool) {
	if n < 0 || r.remaining() < n {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *messageReader) readUint8() (uint8, bool) {
	b, ok := r.readBytes(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *messageReader) readUint16() (uint16, bool) {
	b, ok := r.readBytes(2)
	if !ok {
		return 0, false
	}
	return uint16(b[0])<<8 | uint16(b[1]), true
}

func (r *messageReader) readUint24() (int, bool) {
	b, ok := r.readBytes(3)
	if !ok {
		return 0, false
	}
	return getUint24(b), true
}

// readVector8/16/24 read a length-prefixed opaque vector whose length field
// is 1/2/3 bytes wide respectively (TLS presentation-language <..> vectors).
func (r *messageReader) readVector8() ([]byte, bool) {
	n, ok := r.readUint8()
	if !ok {
		return nil, false
	}
	return r.readBytes(int(n))
}

func (r *messageReader) readVector16() ([]byte, bool) {
	n, ok := r.readUint16()
	if !ok {
		return nil, false
	}
	return r.readBytes(int(n))
}

func (r *messageReader) readVector24() ([]byte, bool) {
	n, ok := r.readUint24()
	if !ok {
		return nil, false
	}
	return r.readBytes(n)
}

func (r *messageReader) done() bool { return r.remaining() == 0 }

// handshakeHeader prefixes any marshaled body with the 1-byte type + 3-byte
// length spec.md §6 specifies.
func handshakeHeader(typ handshakeType, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = byte(typ)
	putUint24(out[1:4], len(body))
	copy(out[4:], body)
	return out
}

type clientHelloMsg struct {
	vers                uint16
	random              [32]byte
	sessionID           []byte
	cipherSuites        []uint16
	compressionMethods  []uint8
}

func (m *clientHelloMsg) marshal() []byte {
	body := make([]byte, 0, 64)
	body = append(body, byte(m.vers>>8), byte(m.vers))
	body = append(body, m.random[:]...)
	body = append(body, byte(len(m.sessionID)))
	body = append(body, m.sessionID...)

	csLen := len(m.cipherSuites) * 2
	body = append(body, byte(csLen>>8), byte(csLen))
	for _, cs := range m.cipherSuites {
		body = append(body, byte(cs>>8), byte(cs))
	}

	body = append(body, byte(len(m.compressionMethods)))
	body = append(body, m.compressionMethods...)

	// No extensions sent (spec.md §1 Non-goal: extensions beyond
	// decode-and-ignore; we simply never offer any).
	body = append(body, 0, 0)

	return handshakeHeader(typeClientHello, body)
}

func (m *clientHelloMsg) unmarshal(data []byte) error {
	r := &messageReader{data: data}
	vers, ok := r.readUint16()
	random, okR := r.readBytes(32)
	sessionID, okS := r.readVector8()
	if !ok || !okR || !okS || len(sessionID) > 32 {
		return errDecode("malformed ClientHello")
	}
	csBytes, ok := r.readVector16()
	if !ok || len(csBytes)%2 != 0 {
		return errDecode("malformed ClientHello cipher suite list")
	}
	compression, ok := r.readVector8()
	if !ok || len(compression) == 0 {
		return errDecode("malformed ClientHello compression list")
	}
	// Extensions (if any) are decoded only enough to skip them, per spec.md
	// §1's decode-and-ignore directive.
	if r.remaining() >= 2 {
		extLen, _ := r.readUint16()
		if _, ok := r.readBytes(extLen); !ok {
			return errDecode("malformed ClientHello extensions")
		}
	}

	m.vers = vers
	copy(m.random[:], random)
	m.sessionID = append([]byte(nil), sessionID...)
	m.cipherSuites = m.cipherSuites[:0]
	for i := 0; i < len(csBytes); i += 2 {
		m.cipherSuites = append(m.cipherSuites, uint16(csBytes[i])<<8|uint16(csBytes[i+1]))
	}
	m.compressionMethods = append([]byte(nil), compression...)
	return nil
}

type serverHelloMsg struct {
	vers               uint16
	random             [32]byte
	sessionID          []byte
	cipherSuite        uint16
	compressionMethod  uint8
}

func (m *serverHelloMsg) marshal() []byte {
	body := make([]byte, 0, 40)
	body = append(body, byte(m.vers>>8), byte(m.vers))
	body = append(body, m.random[:]...)
	body = append(body, byte(len(m.sessionID)))
	body = append(body, m.sessionID...)
	body = append(body, byte(m.cipherSuite>>8), byte(m.cipherSuite))
	body = append(body, m.compressionMethod)
	body = append(body, 0, 0) // empty extensions block
	return handshakeHeader(typeServerHello, body)
}

func (m *serverHelloMsg) unmarshal(data []byte) error {
	r := &messageReader{data: data}
	vers, ok := r.readUint16()
	random, okR := r.readBytes(32)
	sessionID, okS := r.readVector8()
	suite, okC := r.readUint16()
	compression, okM := r.readUint8()
	if !ok || !okR || !okS || !okC || !okM {
		return errDecode("malformed ServerHello")
	}
	if r.remaining() >= 2 {
		extLen, _ := r.readUint16()
		if _, ok := r.readBytes(extLen); !ok {
			return errDecode("malformed ServerHello extensions")
		}
	}
	m.vers = vers
	copy(m.random[:], random)
	m.sessionID = append([]byte(nil), sessionID...)
	m.cipherSuite = suite
	m.compressionMethod = compression
	return nil
}

// certificateMsg carries the peer's chain leaf-first, each entry a raw DER
// certificate, each length-prefixed by 3 bytes, the whole list by 3 bytes
// (spec.md §4.4's "3-byte-prefixed chain").
type certificateMsg struct {
	certificates [][]byte
}

func (m *certificateMsg) marshal() []byte {
	var listBody []byte
	for _, c := range m.certificates {
		entry := make([]byte, 3+len(c))
		putUint24(entry[:3], len(c))
		copy(entry[3:], c)
		listBody = append(listBody, entry...)
	}
	body := make([]byte, 3+len(listBody))
	putUint24(body[:3], len(listBody))
	copy(body[3:], listBody)
	return handshakeHeader(typeCertificate, body)
}

func (m *certificateMsg) unmarshal(data []byte) error {
	r := &messageReader{data: data}
	listBytes, ok := r.readVector24()
	if !ok || !r.done() {
		return errDecode("malformed Certificate message")
	}
	lr := &messageReader{data: listBytes}
	var certs [][]byte
	for !lr.done() {
		der, ok := lr.readVector24()
		if !ok || len(der) == 0 {
			return errDecode("malformed Certificate entry")
		}
		certs = append(certs, append([]byte(nil), der...))
	}
	m.certificates = certs
	return nil
}

// certificateRequestMsg, server->client, 1.2 SignatureAndHashAlgorithm list
// per spec.md §4.4 CertificateRequest.
type certificateRequestMsg struct {
	certificateTypes        []uint8
	supportedSignatureHashes []hashAlgorithm // hash byte only; sig byte is always sigAlgorithmRSA
	certificateAuthorities  [][]byte
}

func (m *certificateRequestMsg) marshal() []byte {
	body := make([]byte, 0, 32)
	body = append(body, byte(len(m.certificateTypes)))
	body = append(body, m.certificateTypes...)

	sigBody := make([]byte, 0, len(m.supportedSignatureHashes)*2)
	for _, h := range m.supportedSignatureHashes {
		sigBody = append(sigBody, byte(h), sigAlgorithmRSA)
	}
	body = append(body, byte(len(sigBody)>>8), byte(len(sigBody)))
	body = append(body, sigBody...)

	var caBody []byte
	for _, dn := range m.certificateAuthorities {
		entry := make([]byte, 2+len(dn))
		entry[0] = byte(len(dn) >> 8)
		entry[1] = byte(len(dn))
		copy(entry[2:], dn)
		caBody = append(caBody, entry...)
	}
	body = append(body, byte(len(caBody)>>16), byte(len(caBody)>>8), byte(len(caBody)))
	body = append(body, caBody...)

	return handshakeHeader(typeCertificateRequest, body)
}

func (m *certificateRequestMsg) unmarshal(data []byte, version uint16) error {
	r := &messageReader{data: data}
	types, ok := r.readVector8()
	if !ok {
		return errDecode("malformed CertificateRequest")
	}
	m.certificateTypes = append([]byte(nil), types...)
	m.supportedSignatureHashes = nil

	if version >= VersionTLS12 {
		sigBytes, ok := r.readVector16()
		if !ok || len(sigBytes)%2 != 0 {
			return errDecode("malformed CertificateRequest signature list")
		}
		for i := 0; i < len(sigBytes); i += 2 {
			m.supportedSignatureHashes = append(m.supportedSignatureHashes, hashAlgorithm(sigBytes[i]))
		}
	}

	caBytes, ok := r.readVector24()
	if !ok || !r.done() {
		return errDecode("malformed CertificateRequest authority list")
	}
	cr := &messageReader{data: caBytes}
	var cas [][]byte
	for !cr.done() {
		dn, ok := cr.readVector16()
		if !ok {
			return errDecode("malformed CertificateRequest authority entry")
		}
		cas = append(cas, append([]byte(nil), dn...))
	}
	m.certificateAuthorities = cas
	return nil
}

type serverHelloDoneMsg struct{}

func (m *serverHelloDoneMsg) marshal() []byte {
	return handshakeHeader(typeServerHelloDone, nil)
}

func (m *serverHelloDoneMsg) unmarshal(data []byte) error {
	if len(data) != 0 {
		return errDecode("malformed ServerHelloDone")
	}
	return nil
}

// certificateVerifyMsg, spec.md §4.4.1: TLS 1.2 prepends a 2-byte
// (hash, sig) pair before the 2-byte-prefixed signature; TLS <= 1.1 omits it.
type certificateVerifyMsg struct {
	hasSignatureAndHash bool
	signatureHash       hashAlgorithm
	signature           []byte
}

func (m *certificateVerifyMsg) marshal() []byte {
	var body []byte
	if m.hasSignatureAndHash {
		body = append(body, byte(m.signatureHash), sigAlgorithmRSA)
	}
	body = append(body, byte(len(m.signature)>>8), byte(len(m.signature)))
	body = append(body, m.signature...)
	return handshakeHeader(typeCertificateVerify, body)
}

func (m *certificateVerifyMsg) unmarshal(data []byte, version uint16) error {
	r := &messageReader{data: data}
	m.hasSignatureAndHash = version >= VersionTLS12
	if m.hasSignatureAndHash {
		h, ok1 := r.readUint8()
		sig, ok2 := r.readUint8()
		if !ok1 || !ok2 || sig != sigAlgorithmRSA {
			return errDecode("malformed CertificateVerify signature algorithm")
		}
		m.signatureHash = hashAlgorithm(h)
	}
	sig, ok := r.readVector16()
	if !ok || !r.done() {
		return errDecode("malformed CertificateVerify")
	}
	m.signature = append([]byte(nil), sig...)
	return nil
}

// clientKeyExchangeMsg, RSA-only: 2-byte length + PKCS#1-v1.5 ciphertext
// (spec.md §4.4 ClientKeyExchange, no DH/ECDHE variant).
type clientKeyExchangeMsg struct {
	ciphertext []byte
}

func (m *clientKeyExchangeMsg) marshal() []byte {
	body := make([]byte, 2+len(m.ciphertext))
	body[0] = byte(len(m.ciphertext) >> 8)
	body[1] = byte(len(m.ciphertext))
	copy(body[2:], m.ciphertext)
	return handshakeHeader(typeClientKeyExchange, body)
}

func (m *clientKeyExchangeMsg) unmarshal(data []byte) error {
	r := &messageReader{data: data}
	ct, ok := r.readVector16()
	if !ok || !r.done() {
		return errDecode("malformed ClientKeyExchange")
	}
	m.ciphertext = append([]byte(nil), ct...)
	return nil
}

type finishedMsg struct {
	verifyData []byte
}

func (m *finishedMsg) marshal() []byte {
	return handshakeHeader(typeFinished, m.verifyData)
}

func (m *finishedMsg) unmarshal(data []byte) error {
	m.verifyData = append([]byte(nil), data...)
	return nil
}
