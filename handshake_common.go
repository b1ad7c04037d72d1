package tls

// verifyPeerChain implements the shared half of spec.md §4.4's Certificate
// handling: parse the wire message, and — unless the peer sent an empty
// chain — build a Chain, check the leaf's key type against the negotiated
// suite's key-exchange method, and verify against the configured CA set (if
// any). A nil, nil return means the peer legitimately sent an empty chain;
// callers decide whether that's acceptable for their role (spec.md §4.4).
func (c *Conn) verifyPeerChain(body []byte) (*Chain, error) {
	var msg certificateMsg
	if err := msg.unmarshal(body); err != nil {
		return nil, err
	}
	if len(msg.certificates) == 0 {
		return nil, nil
	}

	certs := make([]*Certificate, 0, len(msg.certificates))
	for _, der := range msg.certificates {
		cert, err := CertificateFromDER(der)
		if err != nil {
			return nil, errBadCertificateAlert("peer certificate does not parse")
		}
		certs = append(certs, cert)
	}

	chain, err := ChainFromCerts(certs)
	if err != nil {
		return nil, errBadCertificateAlert("empty certificate chain")
	}

	if c.suite != nil && c.suite.ka != nil {
		if !c.suite.ka().validateCertKeyType(chain.Leaf().PublicKeyAlgorithm()) {
			return nil, errUnsupportedCertificate("peer certificate key type does not match negotiated suite")
		}
	}

	if len(c.config.CACertificates) > 0 {
		if err := chain.Verify(c.config.CACertificates); err != nil {
			return nil, errBadCertificateAlert("peer certificate chain does not verify")
		}
	}

	return chain, nil
}
