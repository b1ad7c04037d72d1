package tls

import (
	"crypto/rsa"
	"crypto/subtle"
)

// CipherDirection distinguishes the read and write halves of a connection's
// cipher state, for the InstallCipher callbacks below.
type CipherDirection int

const (
	DirectionRead CipherDirection = iota
	DirectionWrite
)

// KeyMaterial is everything the external record layer needs to install a
// cipher state for one direction, computed once the master secret and key
// block are known (spec.md §4.4, "install read/write cipher spec").
type KeyMaterial struct {
	Suite  *cipherSuite
	Version uint16
	MACKey []byte
	Key    []byte
	IV     []byte // initial CBC IV (used only by TLS 1.0's chained-IV mode), fixed nonce prefix for AEAD
}

// InstallCipherFunc hands freshly derived key material for one direction to
// the external record layer. The handshake core never encrypts bytes itself
// (spec.md §1: the record layer is an external collaborator).
type InstallCipherFunc func(dir CipherDirection, km KeyMaterial)

// Conn drives one TLS handshake state machine, spec.md §3/§4.4. It never
// touches the network directly: inbound fragments arrive via Rx, outbound
// fragments leave through config.Tx, and cipher installation is signaled
// through the InstallCipherFunc passed to NewConn so the record layer can do the actual
// encryption (spec.md §6's record-layer contract).
type Conn struct {
	role   Role
	config *Config

	installCipher InstallCipherFunc

	state handshakeState

	version     uint16
	suite       *cipherSuite
	compression uint8

	clientRandom [32]byte
	serverRandom [32]byte
	masterSecret []byte

	tr *transcript

	// clientVersionReported is the client_version as recorded from
	// ClientHello, used for the server's downgrade-mitigation override
	// (spec.md §8 scenario 3).
	clientVersionReported uint16

	certRequested     bool
	peerAuthenticated bool
	sigHash           hashAlgorithm

	peerChain     *Chain
	peerPublicKey *rsa.PublicKey

	// preMaster is retained only long enough to derive the master secret.
	preMaster []byte

	// pendingHandshake reassembles handshake messages that may arrive split
	// across multiple record-layer fragments (spec.md §6).
	pendingHandshake []byte

	ready  bool
	closed bool
}

// NewConn constructs a Conn in its initial WAIT_HELLO state, spec.md §3.
func NewConn(role Role, config *Config, installCipher InstallCipherFunc) *Conn {
	return &Conn{
		role:          role,
		config:        config,
		installCipher: installCipher,
		state:         stateWaitHello,
		tr:            newTranscript(),
	}
}

// StartClient emits the initial ClientHello (client role only).
func (c *Conn) StartClient() error {
	if c.role != RoleClient {
		panic("tls: StartClient called on a server Conn")
	}
	return c.sendClientHello()
}

// Rx delivers one decrypted record-layer fragment to the handshake core
// (spec.md §6's record-layer contract, caller side).
func (c *Conn) Rx(ct contentType, payload []byte) error {
	if c.closed {
		return nil
	}
	var err error
	switch ct {
	case recordTypeHandshake:
		err = c.rxHandshakeBytes(payload)
	case recordTypeChangeCipherSpec:
		err = c.rxChangeCipherSpec(payload)
	case recordTypeAlert:
		err = c.rxAlert(payload)
	case recordTypeApplicationData:
		if c.state != stateDone {
			err = errUnexpectedMessage("application data before handshake completion")
		} else if c.config.Rx != nil {
			c.config.Rx(payload)
		}
	default:
		err = errDecode("unknown record content type")
	}
	if err != nil {
		c.fail(err)
	}
	return err
}

func (c *Conn) rxHandshakeBytes(payload []byte) error {
	c.pendingHandshake = append(c.pendingHandshake, payload...)
	for {
		if len(c.pendingHandshake) < 4 {
			return nil
		}
		n := getUint24(c.pendingHandshake[1:4])
		if len(c.pendingHandshake) < 4+n {
			return nil
		}
		msg := c.pendingHandshake[:4+n]
		c.pendingHandshake = c.pendingHandshake[4+n:]
		if err := c.dispatchHandshake(handshakeType(msg[0]), msg[4:4+n], msg); err != nil {
			return err
		}
	}
}

func (c *Conn) dispatchHandshake(typ handshakeType, body, full []byte) error {
	if typ == typeHelloRequest {
		// Never hashed (spec.md §4.4.3); out of scope for this module
		// (renegotiation is a Non-goal), so it is simply ignored.
		return nil
	}

	// Snapshot transcripts before writing the current message when that
	// message is CertificateVerify or Finished (spec.md §4.4.3); every
	// other message is hashed immediately, then dispatched.
	var snap transcriptSnapshot
	if typ == typeCertificateVerify || typ == typeFinished {
		snap = c.tr.snapshot()
	}
	c.tr.write(full)

	if c.role == RoleClient {
		return c.clientHandle(typ, body, snap)
	}
	return c.serverHandle(typ, body, snap)
}

func (c *Conn) rxChangeCipherSpec(payload []byte) error {
	if c.state != stateWaitChangeCipherSpec {
		return errUnexpectedMessage("ChangeCipherSpec out of order")
	}
	if len(payload) != 1 || payload[0] != 0x01 {
		return errDecode("malformed ChangeCipherSpec")
	}
	c.installReadCipher()
	c.state = stateWaitFinished
	return nil
}

func (c *Conn) rxAlert(payload []byte) error {
	if len(payload) != 2 {
		return errDecode("malformed alert")
	}
	c.fail(newAlertError(alertDescription(payload[1]), categoryProtocol, "peer sent fatal alert"))
	return nil
}

// Write sends application data. The handshake core hands it straight to Tx;
// encryption is the external record layer's job (spec.md §5).
func (c *Conn) Write(data []byte) error {
	if c.state != stateDone {
		return errHandshakeFailure("write before handshake completion")
	}
	c.config.Tx(recordTypeApplicationData, data)
	return nil
}

// Close emits close_notify and runs the disconnect callback (spec.md §5).
func (c *Conn) Close() {
	if c.closed {
		return
	}
	c.config.Tx(recordTypeAlert, []byte{0x01, byte(alertCloseNotify)})
	c.teardown()
	if c.config.Disconnect != nil {
		c.config.Disconnect(alertCloseNotify, "closed locally")
	}
}

// fail implements spec.md §4.4.4: discard state, send the fatal alert, and
// notify the caller. State is discarded before the alert is sent, so a peer
// that answers re-entrantly from inside Tx finds this Conn already closed.
// disconnect is the last operation in the frame so that freeing the Conn
// from inside the callback is safe (spec.md §5).
func (c *Conn) fail(err error) {
	te, ok := err.(*tlsError)
	if !ok {
		te = newAlertError(alertInternalError, categoryResource, err.Error())
	}
	wasClosed := c.closed
	c.teardown()
	if !wasClosed {
		c.config.Tx(recordTypeAlert, []byte{0x02, byte(te.wire)})
	}
	if c.config.Disconnect != nil {
		c.config.Disconnect(te.wire, te.local)
	}
}

func (c *Conn) teardown() {
	c.closed = true
	c.ready = false
	c.masterSecret = nil
	c.preMaster = nil
}

func (c *Conn) sendHandshake(msg []byte) {
	c.tr.write(msg)
	c.config.Tx(recordTypeHandshake, msg)
}

func (c *Conn) installReadCipher() {
	if c.installCipher == nil || c.suite == nil {
		return
	}
	c.installCipher(DirectionRead, c.keyMaterialFor(c.role != RoleClient))
}

func (c *Conn) installWriteCipher() {
	if c.installCipher == nil || c.suite == nil {
		return
	}
	c.installCipher(DirectionWrite, c.keyMaterialFor(c.role == RoleClient))
}

// keyMaterialFor slices the key block per spec.md §4.2's fixed layout
// (mac-client, mac-server, key-client, key-server, iv-client, iv-server) and
// returns the half that belongs to the sender identified by forClientHalf.
func (c *Conn) keyMaterialFor(forClientHalf bool) KeyMaterial {
	macLen := c.suite.macKeyLen()
	keyLen := c.suite.keyLen
	ivLen := c.suite.ivLen

	size := 2*macLen + 2*keyLen + 2*ivLen
	block := keyBlock(c.version, c.suite, c.masterSecret, c.clientRandom[:], c.serverRandom[:], size)

	off := 0
	clientMAC := block[off : off+macLen]
	off += macLen
	serverMAC := block[off : off+macLen]
	off += macLen
	clientKey := block[off : off+keyLen]
	off += keyLen
	serverKey := block[off : off+keyLen]
	off += keyLen
	clientIV := block[off : off+ivLen]
	off += ivLen
	serverIV := block[off : off+ivLen]

	if forClientHalf {
		return KeyMaterial{Suite: c.suite, Version: c.version, MACKey: clientMAC, Key: clientKey, IV: clientIV}
	}
	return KeyMaterial{Suite: c.suite, Version: c.version, MACKey: serverMAC, Key: serverKey, IV: serverIV}
}

// verifyFinished implements spec.md §4.4's Finished check: constant-time
// compare against the expected verify_data over the pre-message transcript.
func (c *Conn) verifyFinished(snap transcriptSnapshot, isPeerServer bool, received []byte) error {
	expected := finishedVerifyData(c.version, c.suite, c.masterSecret, isPeerServer, c.finishedTranscript(snap))
	if subtle.ConstantTimeCompare(expected, received) != 1 {
		return errDecryptError("Finished verify_data mismatch")
	}
	return nil
}

// finishedTranscript picks the snapshot finishedVerifyData's PRF needs: the
// 36-byte MD5‖SHA1 form pre-1.2, or the single running hash the PRF uses at
// 1.2 (SHA384 if the suite names it, else SHA256).
func (c *Conn) finishedTranscript(snap transcriptSnapshot) []byte {
	if c.version < VersionTLS12 {
		return snap.md5sha1()
	}
	return snap.forHash(c.prfHash())
}

// prfHash reports the hashAlgorithm the negotiated suite's TLS 1.2 PRF uses:
// SHA384 if the suite names it, else SHA256.
func (c *Conn) prfHash() hashAlgorithm {
	if c.suite != nil && c.suite.flags&suiteSHA384 != 0 {
		return hashSHA384
	}
	return hashSHA256
}
