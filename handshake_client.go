package tls

import (
	"crypto/rand"
)

// clientOfferedVersion is the highest version this module speaks; clients
// always advertise it and servers negotiate down to the peer's version
// (spec.md §4.4, §8's "negotiated_version = min(TLS 1.2, client_version)").
const clientOfferedVersion = VersionTLS12

func (c *Conn) sendClientHello() error {
	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return errInternal("system randomness unavailable for ClientHello random")
	}
	c.clientRandom = random
	c.clientVersionReported = clientOfferedVersion

	hello := &clientHelloMsg{
		vers:               clientOfferedVersion,
		random:              random,
		cipherSuites:        make([]uint16, len(defaultCipherSuiteOrder)),
		compressionMethods: []uint8{0},
	}
	copy(hello.cipherSuites, defaultCipherSuiteOrder)

	c.sendHandshake(hello.marshal())
	return nil
}

func (c *Conn) clientHandle(typ handshakeType, body []byte, snap transcriptSnapshot) error {
	switch typ {
	case typeServerHello:
		return c.clientHandleServerHello(body)
	case typeCertificate:
		return c.clientHandleCertificate(body)
	case typeCertificateRequest:
		return c.clientHandleCertificateRequest(body)
	case typeServerHelloDone:
		return c.clientHandleServerHelloDone(body)
	case typeFinished:
		return c.clientHandleFinished(body, snap)
	default:
		return errUnexpectedMessage("unexpected handshake message in client role")
	}
}

func (c *Conn) clientHandleServerHello(body []byte) error {
	if c.state != stateWaitHello {
		return errUnexpectedMessage("ServerHello out of order")
	}
	var sh serverHelloMsg
	if err := sh.unmarshal(body); err != nil {
		return err
	}
	if sh.vers < VersionTLS10 {
		return errProtocolVersion("server negotiated a version below TLS 1.0")
	}
	if sh.vers > clientOfferedVersion {
		return errIllegalParameter("server negotiated a version we never offered")
	}

	suite := cipherSuiteByID(sh.cipherSuite)
	if suite == nil || !offeredSuite(sh.cipherSuite) {
		return errHandshakeFailure("server selected an unsupported cipher suite")
	}
	if sh.compressionMethod != 0 {
		return errIllegalParameter("server selected a compression method we didn't offer")
	}

	c.version = sh.vers
	c.suite = suite
	c.serverRandom = sh.random
	c.compression = sh.compressionMethod

	if c.version < VersionTLS12 {
		c.tr.dropPre12Hashes()
	}

	c.state = stateWaitCertificate
	return nil
}

func offeredSuite(id uint16) bool {
	for _, want := range defaultCipherSuiteOrder {
		if want == id {
			return true
		}
	}
	return false
}

func (c *Conn) clientHandleCertificate(body []byte) error {
	if c.state != stateWaitCertificate {
		return errUnexpectedMessage("Certificate out of order")
	}
	chain, err := c.verifyPeerChain(body)
	if err != nil {
		return err
	}
	if chain == nil {
		// Empty chain from a server is always a handshake failure
		// (spec.md §4.4 Certificate).
		return errHandshakeFailure("server sent an empty certificate chain")
	}
	c.peerChain = chain
	c.peerPublicKey = chain.Leaf().PublicKey()
	c.state = stateWaitHelloDone
	return nil
}

func (c *Conn) clientHandleCertificateRequest(body []byte) error {
	if c.state != stateWaitHelloDone {
		return errUnexpectedMessage("CertificateRequest out of order")
	}
	var cr certificateRequestMsg
	if err := cr.unmarshal(body, c.version); err != nil {
		return err
	}
	if c.version >= VersionTLS12 {
		live := map[hashAlgorithm]bool{hashMD5: true, hashSHA1: true, hashSHA256: true, hashSHA384: true}
		h, ok := selectSignatureHash(cr.supportedSignatureHashes, live)
		if !ok {
			return errUnsupportedCertificate("no CertificateRequest signature hash we can still verify")
		}
		c.sigHash = h
	}
	c.certRequested = true
	return nil
}

func (c *Conn) clientHandleServerHelloDone(body []byte) error {
	if c.state != stateWaitHelloDone {
		return errUnexpectedMessage("ServerHelloDone out of order")
	}
	var shd serverHelloDoneMsg
	if err := shd.unmarshal(body); err != nil {
		return err
	}

	sentCert := false
	if c.certRequested {
		sentCert = c.sendClientCertificate()
	}

	if c.peerPublicKey == nil {
		return errInternal("no peer RSA public key captured before ClientKeyExchange")
	}
	preMaster, ciphertext, err := generateClientKeyExchange(c.peerPublicKey, c.clientVersionReported)
	if err != nil {
		return errInternal("RSA encryption of pre-master secret failed")
	}
	c.preMaster = preMaster
	cke := &clientKeyExchangeMsg{ciphertext: ciphertext}
	c.sendHandshake(cke.marshal())

	c.masterSecret = masterSecretFromPreMaster(c.version, c.suite, c.preMaster, c.clientRandom[:], c.serverRandom[:])
	c.preMaster = nil

	if sentCert {
		if err := c.sendCertificateVerify(); err != nil {
			return err
		}
	}

	// CertificateVerify (if any) has now been sent using c.sigHash; nothing
	// downstream needs it or any hash but the PRF's own (spec.md §4.4.3's
	// second pruning step).
	if c.version >= VersionTLS12 {
		c.tr.restrictTo(c.prfHash(), 0)
	}

	c.config.Tx(recordTypeChangeCipherSpec, []byte{0x01})
	c.installWriteCipher()

	snap := c.tr.snapshot()
	verifyData := finishedVerifyData(c.version, c.suite, c.masterSecret, false, c.finishedTranscript(snap))
	fin := &finishedMsg{verifyData: verifyData}

	// The next state is set before Finished goes out: Tx may deliver the
	// server's ChangeCipherSpec to Rx before sendHandshake returns.
	c.state = stateWaitChangeCipherSpec
	c.sendHandshake(fin.marshal())
	return nil
}

// sendClientCertificate implements the client side of spec.md §4.4's
// ServerHelloDone step: send Certificate (possibly empty), reporting whether
// a non-empty chain was actually sent (CertificateVerify follows only then).
func (c *Conn) sendClientCertificate() bool {
	msg := &certificateMsg{}
	if c.config.LocalChain != nil && c.config.LocalChain.Len() > 0 {
		c.config.LocalChain.ForEachLeafToCA(func(cert *Certificate) {
			msg.certificates = append(msg.certificates, cert.DERData())
		})
	}
	c.sendHandshake(msg.marshal())
	return len(msg.certificates) > 0
}

func (c *Conn) sendCertificateVerify() error {
	if c.config.LocalKey == nil {
		return errInternal("CertificateVerify required but no local private key configured")
	}
	snap := c.tr.snapshot()
	h := c.sigHash
	if c.version < VersionTLS12 {
		h = 0
	} else if h == 0 {
		h = hashSHA256
	}
	var md5sha1, full []byte
	if c.version < VersionTLS12 {
		md5sha1 = snap.md5sha1()
	} else {
		full = snap.forHash(h)
	}
	sig, err := signTranscript(c.version, c.config.LocalKey, h, md5sha1, full)
	if err != nil {
		return errInternal("RSA signing of CertificateVerify failed")
	}
	cv := &certificateVerifyMsg{hasSignatureAndHash: c.version >= VersionTLS12, signatureHash: h, signature: sig}
	c.sendHandshake(cv.marshal())
	return nil
}

func (c *Conn) clientHandleFinished(body []byte, snap transcriptSnapshot) error {
	if c.state != stateWaitFinished {
		return errUnexpectedMessage("Finished out of order")
	}
	var fin finishedMsg
	if err := fin.unmarshal(body); err != nil {
		return err
	}
	if err := c.verifyFinished(snap, true, fin.verifyData); err != nil {
		return err
	}

	// Client truth table (spec.md §4.4.2): authenticated iff a CA set is
	// configured (implying the Certificate chain was verified) AND the
	// server's Finished verified above, which proves possession of the
	// private key via the master secret.
	c.peerAuthenticated = len(c.config.CACertificates) > 0 && c.peerChain != nil

	c.state = stateDone
	c.ready = true
	if c.config.Ready != nil {
		identity := ""
		if c.peerAuthenticated {
			identity = c.peerChain.Leaf().PeerIdentity()
		}
		c.config.Ready(identity)
	}
	return nil
}
