package tls

import "crypto/rand"

func (c *Conn) serverHandle(typ handshakeType, body []byte, snap transcriptSnapshot) error {
	switch typ {
	case typeClientHello:
		return c.serverHandleClientHello(body)
	case typeCertificate:
		return c.serverHandleCertificate(body)
	case typeClientKeyExchange:
		return c.serverHandleClientKeyExchange(body)
	case typeCertificateVerify:
		return c.serverHandleCertificateVerify(body, snap)
	case typeFinished:
		return c.serverHandleFinished(body, snap)
	default:
		return errUnexpectedMessage("unexpected handshake message in server role")
	}
}

func (c *Conn) serverHandleClientHello(body []byte) error {
	if c.state == stateDone {
		// Renegotiation mid-session is a Non-goal; reject explicitly rather
		// than silently restarting the handshake.
		return errHandshakeFailure("renegotiation is not supported")
	}
	if c.state != stateWaitHello {
		return errUnexpectedMessage("ClientHello out of order")
	}

	var ch clientHelloMsg
	if err := ch.unmarshal(body); err != nil {
		return err
	}
	c.clientVersionReported = ch.vers
	if ch.vers < VersionTLS10 {
		return errProtocolVersion("client offered a version below TLS 1.0")
	}

	c.version = clientOfferedVersion
	if ch.vers < c.version {
		c.version = ch.vers
	}
	c.clientRandom = ch.random

	localAlg := pubKeyUnknown
	if c.config.LocalKey != nil {
		localAlg = pubKeyRSA
	}
	var chosen *cipherSuite
	for _, id := range ch.cipherSuites {
		suite := cipherSuiteByID(id)
		if suite != nil && suite.compatible(c.version, localAlg) {
			chosen = suite
			break
		}
	}
	if chosen == nil {
		return errHandshakeFailure("no mutually compatible cipher suite")
	}
	c.suite = chosen

	offeredNull := false
	for _, m := range ch.compressionMethods {
		if m == 0 {
			offeredNull = true
			break
		}
	}
	if !offeredNull {
		return errHandshakeFailure("client did not offer null compression")
	}
	c.compression = 0

	if c.version < VersionTLS12 {
		c.tr.dropPre12Hashes()
	}

	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return errInternal("system randomness unavailable for ServerHello random")
	}
	c.serverRandom = random

	sh := &serverHelloMsg{
		vers:               c.version,
		random:              random,
		cipherSuite:        c.suite.id,
		compressionMethod:  0,
	}
	c.sendHandshake(sh.marshal())

	certMsg := &certificateMsg{}
	if c.config.LocalChain != nil {
		c.config.LocalChain.ForEachLeafToCA(func(cert *Certificate) {
			certMsg.certificates = append(certMsg.certificates, cert.DERData())
		})
	}
	c.sendHandshake(certMsg.marshal())

	requestingClientCert := len(c.config.CACertificates) > 0
	if requestingClientCert {
		cr := &certificateRequestMsg{
			certificateTypes: []uint8{1}, // rsa_sign
			certificateAuthorities: caNames(c.config.CACertificates),
		}
		if c.version >= VersionTLS12 {
			cr.supportedSignatureHashes = []hashAlgorithm{hashSHA256, hashSHA384, hashSHA1, hashMD5}
		}
		c.sendHandshake(cr.marshal())
	}
	c.certRequested = requestingClientCert

	// The next state is set before ServerHelloDone goes out: Tx may deliver
	// the client's reply to Rx before sendHandshake returns.
	if requestingClientCert {
		c.state = stateWaitCertificate
	} else {
		c.state = stateWaitKeyExchange
	}

	shd := &serverHelloDoneMsg{}
	c.sendHandshake(shd.marshal())
	return nil
}

func caNames(cas []*Certificate) [][]byte {
	names := make([][]byte, 0, len(cas))
	for _, ca := range cas {
		names = append(names, ca.DN())
	}
	return names
}

func (c *Conn) serverHandleCertificate(body []byte) error {
	if c.state != stateWaitCertificate {
		return errUnexpectedMessage("Certificate out of order")
	}
	chain, err := c.verifyPeerChain(body)
	if err != nil {
		return err
	}
	// An empty chain from the client is accepted (spec.md §4.4): it simply
	// means no CertificateVerify will follow, and peer_authenticated stays
	// false (spec.md §8 scenario 6).
	if chain != nil {
		c.peerChain = chain
		c.peerPublicKey = chain.Leaf().PublicKey()
	}
	c.state = stateWaitKeyExchange
	return nil
}

func (c *Conn) serverHandleClientKeyExchange(body []byte) error {
	if c.state != stateWaitKeyExchange {
		return errUnexpectedMessage("ClientKeyExchange out of order")
	}
	var cke clientKeyExchangeMsg
	if err := cke.unmarshal(body); err != nil {
		return err
	}
	if c.config.LocalKey == nil {
		return errInternal("ClientKeyExchange received but no local RSA private key configured")
	}

	preMaster := handleClientKeyExchange(c.config.LocalKey, cke.ciphertext, c.clientVersionReported)
	c.masterSecret = masterSecretFromPreMaster(c.version, c.suite, preMaster, c.clientRandom[:], c.serverRandom[:])

	if c.peerChain != nil {
		c.state = stateWaitCertificateVerify
	} else {
		// No client certificate means no CertificateVerify follows; nothing
		// downstream needs any hash but the PRF's own (spec.md §4.4.3's
		// second pruning step).
		if c.version >= VersionTLS12 {
			c.tr.restrictTo(c.prfHash(), 0)
		}
		c.state = stateWaitChangeCipherSpec
	}
	return nil
}

func (c *Conn) serverHandleCertificateVerify(body []byte, snap transcriptSnapshot) error {
	if c.state != stateWaitCertificateVerify {
		return errUnexpectedMessage("CertificateVerify out of order")
	}
	var cv certificateVerifyMsg
	if err := cv.unmarshal(body, c.version); err != nil {
		return err
	}

	h := cv.signatureHash
	var md5sha1, full []byte
	if c.version < VersionTLS12 {
		md5sha1 = snap.md5sha1()
	} else {
		switch h {
		case hashMD5, hashSHA1, hashSHA256, hashSHA384:
		default:
			return errIllegalParameter("CertificateVerify names a hash with no running transcript")
		}
		full = snap.forHash(h)
	}
	if err := verifyTranscript(c.version, c.peerPublicKey, h, md5sha1, full, cv.signature); err != nil {
		return errDecryptError("CertificateVerify signature does not verify")
	}

	// Server truth table (spec.md §4.4.2): authenticated iff a
	// CertificateRequest was issued (it was, to reach this state) AND
	// CertificateVerify was accepted (just now).
	c.peerAuthenticated = true

	// h has now been consumed; nothing downstream needs any hash but the
	// PRF's own (spec.md §4.4.3's second pruning step).
	if c.version >= VersionTLS12 {
		c.tr.restrictTo(c.prfHash(), 0)
	}

	c.state = stateWaitChangeCipherSpec
	return nil
}

func (c *Conn) serverHandleFinished(body []byte, snap transcriptSnapshot) error {
	if c.state != stateWaitFinished {
		return errUnexpectedMessage("Finished out of order")
	}
	var fin finishedMsg
	if err := fin.unmarshal(body); err != nil {
		return err
	}
	if err := c.verifyFinished(snap, false, fin.verifyData); err != nil {
		return err
	}

	c.config.Tx(recordTypeChangeCipherSpec, []byte{0x01})
	c.installWriteCipher()

	ownSnap := c.tr.snapshot()
	verifyData := finishedVerifyData(c.version, c.suite, c.masterSecret, true, c.finishedTranscript(ownSnap))
	ownFin := &finishedMsg{verifyData: verifyData}
	c.sendHandshake(ownFin.marshal())

	c.state = stateDone
	c.ready = true
	if c.config.Ready != nil {
		identity := ""
		if c.peerChain != nil {
			identity = c.peerChain.Leaf().PeerIdentity()
		}
		c.config.Ready(identity)
	}
	return nil
}
