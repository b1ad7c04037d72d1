package record

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/flate"
)

// compressor is TLS's pre-encryption compression stage (spec.md §4.2's
// TLSPlaintext -> TLSCompressed step). The handshake core only ever
// negotiates null (spec.md §4.3 and the teacher lineage's tls_compression_
// pref both list only null), so deflate is reachable only by constructing a
// Conn with it forced — kept for protocol completeness, not negotiated.
type compressor interface {
	compress(plaintext []byte) []byte
	decompress(compressed []byte) ([]byte, error)
}

type nullCompressor struct{}

func (nullCompressor) compress(p []byte) []byte           { return p }
func (nullCompressor) decompress(c []byte) ([]byte, error) { return c, nil }

// deflateCompressor wires github.com/dsnet/compress/flate, a teacher
// dependency with no other home in this module (DESIGN.md). TLS's DEFLATE
// compression method (RFC 3749) is legacy and not recommended (it enabled
// the CRIME attack against HTTPS); it is included here only as a non-default
// option, never selected by the handshake negotiation in handshake_server.go.
type deflateCompressor struct{}

func (deflateCompressor) compress(plaintext []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, &flate.WriterConfig{Level: flate.DefaultCompression})
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(plaintext); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (deflateCompressor) decompress(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed), nil)
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
