package tls

import (
	"crypto/rsa"
	"errors"
)

// Chain is an ordered, doubly-linked list of certificates from leaf (bottom)
// to ca (top), per spec.md §3. The ordered slice is the ownership/iteration
// source of truth (REDESIGN FLAGS §9: arena-of-certificates with leaf/ca
// indices); issuer/issued are a derived lookup affordance kept in sync.
type Chain struct {
	certs []*Certificate // certs[0] == leaf, certs[len-1] == ca
}

var (
	errEmptyChain  = errors.New("tls: empty certificate chain")
	errChainBroken = errors.New("tls: certificate chain does not verify")
)

// ChainFromLeaf creates a one-certificate chain with leaf == ca == l.
func ChainFromLeaf(l *Certificate) *Chain {
	return &Chain{certs: []*Certificate{l}}
}

// ChainFromCerts builds a chain from an ordered leaf-to-ca slice, wiring the
// issuer/issued pointers spec.md §3 requires.
func ChainFromCerts(certs []*Certificate) (*Chain, error) {
	if len(certs) == 0 {
		return nil, errEmptyChain
	}
	c := &Chain{certs: append([]*Certificate(nil), certs...)}
	c.relink()
	return c, nil
}

func (c *Chain) relink() {
	for i, cert := range c.certs {
		cert.issuer = nil
		cert.issued = nil
		if i+1 < len(c.certs) {
			cert.issuer = c.certs[i+1]
		}
		if i > 0 {
			cert.issued = c.certs[i-1]
		}
	}
}

// Leaf returns the bottom (end-entity) certificate.
func (c *Chain) Leaf() *Certificate {
	if len(c.certs) == 0 {
		return nil
	}
	return c.certs[0]
}

// CA returns the top certificate.
func (c *Chain) CA() *Certificate {
	if len(c.certs) == 0 {
		return nil
	}
	return c.certs[len(c.certs)-1]
}

// LinkIssuer appends a new top issuer above the current CA, per spec.md §3:
// chain.ca.issuer = issuer, issuer.issued = chain.ca, chain.ca = issuer.
func (c *Chain) LinkIssuer(issuer *Certificate) {
	top := c.CA()
	top.issuer = issuer
	issuer.issued = top
	c.certs = append(c.certs, issuer)
}

// ForEachLeafToCA walks the chain bottom-up.
func (c *Chain) ForEachLeafToCA(f func(*Certificate)) {
	for _, cert := range c.certs {
		f(cert)
	}
}

// ForEachCAToLeaf walks the chain top-down.
func (c *Chain) ForEachCAToLeaf(f func(*Certificate)) {
	for i := len(c.certs) - 1; i >= 0; i-- {
		f(c.certs[i])
	}
}

// Len reports the number of certificates in the chain.
func (c *Chain) Len() int {
	return len(c.certs)
}

// Verify implements spec.md §4.1's chain-verification algorithm: walk from
// the top down, fold a "currently trusted public key" accumulator (REDESIGN
// FLAGS §9), requiring each next certificate's signature to verify under the
// accumulator before replacing it with that certificate's own key.
//
// If the top certificate is byte-identical to a certificate in caSet, it is
// popped first (self-signed-without-AKID workaround) and its issued child
// becomes the new top; if there is no such child the chain is trivially
// valid.
func (c *Chain) Verify(caSet []*Certificate) error {
	if len(c.certs) == 0 {
		return errEmptyChain
	}
	if len(caSet) == 0 {
		return errChainBroken
	}

	certs := c.certs
	top := certs[len(certs)-1]

	// Self-signed-without-AKID workaround: if the top of the chain is
	// byte-identical to a trusted CA, pop it and verify starting at its
	// issued child instead.
	for _, ca := range caSet {
		if top.equalRaw(ca) {
			if len(certs) == 1 {
				return nil
			}
			certs = certs[:len(certs)-1]
			top = certs[len(certs)-1]
			break
		}
	}

	// Find whichever CA key signs the (possibly popped) top certificate;
	// that key becomes the initial accumulator.
	var trusted *rsa.PublicKey
	for _, ca := range caSet {
		if ca.PublicKeyAlgorithm() != pubKeyRSA {
			continue
		}
		if err := top.checkSignedBy(ca.PublicKey()); err == nil {
			trusted = ca.PublicKey()
			break
		}
	}
	if trusted == nil {
		return errChainBroken
	}

	// Fold down the chain: each certificate must verify under the running
	// accumulator, then becomes the new accumulator for the certificate
	// below it (its own previous signer is revoked in the process).
	for i := len(certs) - 1; i >= 0; i-- {
		cert := certs[i]
		if err := cert.checkSignedBy(trusted); err != nil {
			return errChainBroken
		}
		trusted = cert.PublicKey()
		if trusted == nil {
			return errChainBroken
		}
	}
	return nil
}
