package tls

import "crypto/cipher"

// ContentType and AlertDescription are exported aliases for the
// record-layer and alert wire types, letting an out-of-package record
// layer (this module's Tx/Rx/Disconnect callback contracts) reference them
// by value without this package exposing its internal taxonomy as a
// separate public type.
type ContentType = contentType
type AlertDescription = alertDescription

const (
	ContentTypeChangeCipherSpec = recordTypeChangeCipherSpec
	ContentTypeAlert            = recordTypeAlert
	ContentTypeHandshake        = recordTypeHandshake
	ContentTypeApplicationData  = recordTypeApplicationData
)

// This file is the narrow exported seam KeyMaterial needs so that an
// out-of-package record layer (see the sibling record package) can actually
// construct ciphers, without exposing the cipherSuite table itself. The
// handshake core stays the sole owner of suite selection (spec.md §4.3);
// the record layer only ever sees the one suite it was told to install.

// CipherKind distinguishes the bulk-cipher family a negotiated suite uses.
type CipherKind int

const (
	KindAEAD CipherKind = iota
	KindBlock
	KindStream
)

// MAC is the record layer's MAC-over-(seq,header,data) contract (spec.md
// §4.2's "MAC(MAC_write_key, seq_num || TLSCompressed.type || ...)").
type MAC = macFunc

// Kind reports which bulk-cipher family this key material's suite uses.
func (km KeyMaterial) Kind() CipherKind {
	switch {
	case km.Suite.aead != nil:
		return KindAEAD
	case km.Suite.block != nil:
		return KindBlock
	default:
		return KindStream
	}
}

// NewAEAD constructs the suite's AEAD, keyed and bound to the fixed nonce
// prefix carried in km.IV. Valid only when Kind() == KindAEAD.
func (km KeyMaterial) NewAEAD() cipher.AEAD {
	return km.Suite.aead(km.Key, km.IV)
}

// NewBlock constructs the suite's block cipher. Valid only when
// Kind() == KindBlock.
func (km KeyMaterial) NewBlock() cipher.Block {
	return km.Suite.block(km.Key)
}

// NewStream constructs the suite's keystream. Valid only when
// Kind() == KindStream.
func (km KeyMaterial) NewStream() cipher.Stream {
	return km.Suite.stream(km.Key)
}

// NewMAC constructs the suite's MAC function, or nil for AEAD suites (which
// fold authentication into the cipher and carry no separate MAC key).
func (km KeyMaterial) NewMAC() MAC {
	if km.Suite.mac == nil {
		return nil
	}
	return km.Suite.mac(km.MACKey)
}

// BlockSize is the bulk cipher's block size, used to frame CBC padding.
// Zero for stream/AEAD suites.
func (km KeyMaterial) BlockSize() int {
	if km.Suite.block == nil {
		return 0
	}
	return km.NewBlock().BlockSize()
}

// ExplicitIV reports whether this suite/version combination carries a
// fresh, explicit per-record IV (CBC suites under TLS 1.1+, spec.md §4.2)
// rather than chaining the final ciphertext block of the previous record as
// the next record's IV (TLS 1.0's CBC suites only).
func (km KeyMaterial) ExplicitIV() bool {
	return km.Suite.block != nil && km.Version >= VersionTLS11
}

// SuiteID is the negotiated suite's wire identifier, for logging/metrics in
// the record layer without exposing the suite table itself.
func (km KeyMaterial) SuiteID() uint16 { return km.Suite.id }

// SuiteName is the negotiated suite's human-readable name.
func (km KeyMaterial) SuiteName() string { return km.Suite.name }
