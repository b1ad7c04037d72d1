package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	tls "github.com/klb-systems/tlscore"
)

const maxRecordPayload = 1 << 14 // RFC 5246 §6.2.1, 2^14 bytes

var errTooBig = errors.New("record: record payload exceeds 2^14 bytes")

// Conn pairs a tls.Conn handshake state machine with real record-layer
// framing, compression, and encryption over a net.Conn. spec.md §1/§6 treat
// this entirely as an external collaborator; this package is that
// collaborator, built so scenarios 1/2 (spec.md §8) run end-to-end.
type Conn struct {
	nc net.Conn
	br *bufio.Reader

	core *tls.Conn
	role tls.Role

	mu    sync.Mutex
	read  *direction
	write *direction
	comp  compressor

	version uint16

	appData       chan []byte
	handshakeDone chan error
	identity      string
	closeOnce     sync.Once
}

// Option configures a Conn at construction.
type Option func(*Conn)

// WithDeflate forces the legacy DEFLATE compression method (never
// negotiated by the handshake core itself; see DESIGN.md).
func WithDeflate() Option {
	return func(c *Conn) { c.comp = deflateCompressor{} }
}

// NewClient wraps nc in a TLS client connection and drives the handshake to
// completion (or failure) before returning. cfg's Tx and Rx fields are
// overwritten; its Ready and Disconnect fields are wrapped, and the caller's
// functions (if any) are still called. Everything else (CACertificates,
// LocalChain, LocalKey, Debug) is the caller's to set beforehand.
func NewClient(nc net.Conn, cfg *tls.Config, opts ...Option) (*Conn, error) {
	c := newConn(nc, tls.RoleClient, cfg, opts...)
	go c.readLoop()
	if err := c.core.StartClient(); err != nil {
		return nil, err
	}
	return c, <-c.handshakeDone
}

// NewServer wraps nc in a TLS server connection and drives the handshake to
// completion (or failure) before returning.
func NewServer(nc net.Conn, cfg *tls.Config, opts ...Option) (*Conn, error) {
	c := newConn(nc, tls.RoleServer, cfg, opts...)
	go c.readLoop()
	return c, <-c.handshakeDone
}

func newConn(nc net.Conn, role tls.Role, cfg *tls.Config, opts ...Option) *Conn {
	c := &Conn{
		nc:            nc,
		br:            bufio.NewReader(nc),
		role:          role,
		comp:          nullCompressor{},
		appData:       make(chan []byte, 16),
		handshakeDone: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg.Tx = c.txRecord
	cfg.Rx = func(data []byte) { c.appData <- data }
	userReady := cfg.Ready
	cfg.Ready = func(identity string) {
		c.identity = identity
		if userReady != nil {
			userReady(identity)
		}
		select {
		case c.handshakeDone <- nil:
		default:
		}
	}
	userDisconnect := cfg.Disconnect
	cfg.Disconnect = func(wire tls.AlertDescription, local string) {
		if userDisconnect != nil {
			userDisconnect(wire, local)
		}
		select {
		case c.handshakeDone <- errors.New("record: handshake failed: " + local):
		default:
		}
		close(c.appData)
	}

	c.core = tls.NewConn(role, cfg, c.installCipher)
	return c
}

// readLoop pulls records off the wire for the lifetime of the connection:
// first to drive the handshake, then to deliver application data and the
// peer's close_notify.
func (c *Conn) readLoop() {
	for {
		ct, payload, err := c.readRecord()
		if err != nil {
			return
		}
		if err := c.core.Rx(ct, payload); err != nil {
			return
		}
	}
}

func (c *Conn) readRecord() (tls.ContentType, []byte, error) {
	hdr := make([]byte, 5)
	if _, err := io.ReadFull(c.br, hdr); err != nil {
		return 0, nil, err
	}
	ct := tls.ContentType(hdr[0])
	length := int(binary.BigEndian.Uint16(hdr[3:5]))
	if length > maxRecordPayload+2048 { // generous ceiling for CBC/AEAD overhead
		return 0, nil, errTooBig
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(c.br, body); err != nil {
		return 0, nil, err
	}

	c.mu.Lock()
	read := c.read
	comp := c.comp
	version := c.version
	c.mu.Unlock()

	plain := body
	if read != nil {
		var err error
		plain, err = read.open(byte(ct), version, body)
		if err != nil {
			return 0, nil, err
		}
	}
	if ct == tls.ContentTypeHandshake || ct == tls.ContentTypeApplicationData {
		decompressed, err := comp.decompress(plain)
		if err != nil {
			return 0, nil, err
		}
		plain = decompressed
	}
	return ct, plain, nil
}

// txRecord is wired as the tls.Conn's Tx callback: it compresses, encrypts
// (if a write cipher is installed), frames, and writes one or more records.
func (c *Conn) txRecord(ct tls.ContentType, payload []byte) {
	c.mu.Lock()
	write := c.write
	comp := c.comp
	version := c.version
	c.mu.Unlock()

	// The plaintext is split first, so each record is compressed and sealed
	// on its own and can be opened on its own.
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > maxRecordPayload {
			chunk = chunk[:maxRecordPayload]
		}
		payload = payload[len(chunk):]
		data := chunk
		if ct == tls.ContentTypeHandshake || ct == tls.ContentTypeApplicationData {
			data = comp.compress(chunk)
		}
		if write != nil {
			data = write.seal(byte(ct), version, data)
		}
		c.nc.Write(header(byte(ct), version, len(data)))
		c.nc.Write(data)
	}
}

// installCipher is wired as the tls.Conn's InstallCipherFunc: it builds the
// direction's cipher state from the supplied KeyMaterial and resets that
// direction's sequence number to zero, per spec.md §4.2.
func (c *Conn) installCipher(dir tls.CipherDirection, km tls.KeyMaterial) {
	d, err := newDirection(km)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.version = km.Version
	if dir == tls.DirectionRead {
		c.read = d
	} else {
		c.write = d
	}
	c.mu.Unlock()
}

// Read returns the next chunk of decrypted application data, per net.Conn's
// Read contract (partial reads across calls are the caller's to buffer).
func (c *Conn) Read(p []byte) (int, error) {
	data, ok := <-c.appData
	if !ok {
		return 0, io.EOF
	}
	n := copy(p, data)
	if n < len(data) {
		// Deliver the remainder on the next Read by pushing it back.
		go func(rest []byte) { c.appData <- rest }(data[n:])
	}
	return n, nil
}

// Write sends data as application-data records.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.core.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends close_notify and closes the underlying connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.core.Close()
		err = c.nc.Close()
	})
	return err
}

// PeerIdentity returns the peer identity the handshake authenticated (""
// if the peer was not authenticated or the handshake has not completed).
func (c *Conn) PeerIdentity() string { return c.identity }
