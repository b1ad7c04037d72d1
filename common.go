// Package tls implements the core of a TLS 1.0/1.1/1.2 handshake state
// machine (client and server), RSA-only key transport, and the supporting
// X.509 certificate-chain model, per spec.md. The record layer (framing,
// encryption, MAC) is treated as an external collaborator; see the sibling
// record package for a reference implementation.
package tls

import (
	"crypto/rsa"
)

// Protocol versions this module negotiates. TLS 1.3 is out of scope
// (spec.md Non-goals).
const (
	VersionTLS10 uint16 = 0x0301
	VersionTLS11 uint16 = 0x0302
	VersionTLS12 uint16 = 0x0303
)

// Role distinguishes client and server behavior in the state machine.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// contentType identifies a record-layer fragment type (spec.md §6).
type contentType uint8

const (
	recordTypeChangeCipherSpec contentType = 20
	recordTypeAlert            contentType = 21
	recordTypeHandshake        contentType = 22
	recordTypeApplicationData  contentType = 23
)

// handshakeType identifies a handshake message type (spec.md §6).
type handshakeType uint8

const (
	typeHelloRequest       handshakeType = 0
	typeClientHello        handshakeType = 1
	typeServerHello        handshakeType = 2
	typeCertificate        handshakeType = 11
	typeServerKeyExchange  handshakeType = 12
	typeCertificateRequest handshakeType = 13
	typeServerHelloDone    handshakeType = 14
	typeCertificateVerify  handshakeType = 15
	typeClientKeyExchange  handshakeType = 16
	typeFinished           handshakeType = 20
)

// handshakeState is the state-machine position, spec.md §4.4/§4.6.
type handshakeState int

const (
	stateWaitHello handshakeState = iota
	stateWaitCertificate
	stateWaitKeyExchange
	stateWaitCertificateVerify // server only
	stateWaitHelloDone         // client only
	stateWaitChangeCipherSpec
	stateWaitFinished
	stateDone
)

// TxFunc sends a complete record-layer fragment of the given content type.
// It is the only way the handshake core emits bytes (spec.md §6).
type TxFunc func(ct contentType, payload []byte)

// RxFunc delivers decrypted application data to the caller.
type RxFunc func(data []byte)

// ReadyFunc is invoked once with the peer's identity (or "" if
// unauthenticated) when the handshake completes (spec.md §4.4, state DONE).
type ReadyFunc func(peerIdentity string)

// DisconnectFunc reports a fatal termination with both the wire alert sent
// (or received) and the more specific local diagnosis (spec.md §4.4.4/§7).
type DisconnectFunc func(wire alertDescription, local string)

// DebugFunc is an optional line sink; the handshake core never logs on its
// own (spec.md §6, set_debug).
type DebugFunc func(format string, args ...any)

// Config carries everything the handshake state machine needs that isn't
// per-connection state: trust material, identity, and callbacks. It mirrors
// spec.md §6's configuration setters (set_ca_cert, set_auth_data, set_debug)
// as plain struct fields, per REDESIGN FLAGS §9 (no global callback slots).
type Config struct {
	// CACertificates replaces set_ca_cert(path): the trusted CA set used for
	// peer chain verification. Nil/empty disables peer-chain verification.
	CACertificates []*Certificate

	// LocalChain / LocalKey replace set_auth_data: this endpoint's own
	// certificate chain and RSA private key (RSA only, per spec.md scope).
	LocalChain *Chain
	LocalKey   *rsa.PrivateKey

	Tx         TxFunc
	Rx         RxFunc
	Ready      ReadyFunc
	Disconnect DisconnectFunc
	Debug      DebugFunc
}

func (c *Config) debugf(format string, args ...any) {
	if c != nil && c.Debug != nil {
		c.Debug(format, args...)
	}
}
