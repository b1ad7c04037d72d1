package tls

import (
	"crypto/rand"
	"crypto/rsa"
)

// keyAgreement is the seam for spec.md REDESIGN FLAGS §9's polymorphic
// capability set. Only validateCertKeyType is dispatched through it; the RSA
// key exchange and signing steps are the package functions
// generateClientKeyExchange, handleClientKeyExchange, signTranscript and
// verifyTranscript. RSA is the only implementation today (Non-goal: DH/ECDHE); the interface
// exists so a future key-exchange can be added without reshaping callers.
type keyAgreement interface {
	// validateCertKeyType reports whether a peer certificate's public-key
	// algorithm is usable with this key-exchange method.
	validateCertKeyType(alg pubKeyAlgorithm) bool
}

type rsaKeyAgreement struct{}

func (rsaKeyAgreement) validateCertKeyType(alg pubKeyAlgorithm) bool {
	return alg == pubKeyRSA
}

const clientKeyExchangeRandomLen = 46

// generateClientKeyExchange implements spec.md §4.4's
// ServerHelloDone->ClientKeyExchange step: 46 random bytes, the 2-byte
// advertised client version prepended, RSA-PKCS1-v1_5 encrypted under the
// server's public key.
func generateClientKeyExchange(serverPub *rsa.PublicKey, clientVersion uint16) (preMaster, encrypted []byte, err error) {
	preMaster = make([]byte, masterSecretLength)
	preMaster[0] = byte(clientVersion >> 8)
	preMaster[1] = byte(clientVersion)
	if _, err := rand.Read(preMaster[2:]); err != nil {
		return nil, nil, err
	}
	encrypted, err = rsa.EncryptPKCS1v15(rand.Reader, serverPub, preMaster)
	if err != nil {
		return nil, nil, err
	}
	return preMaster, encrypted, nil
}

// handleClientKeyExchange implements spec.md §4.4's Bleichenbacher
// countermeasure: on any PKCS#1 decryption failure, substitute a freshly
// random pre-master secret and never raise an alert, to blind timing/error
// oracles (spec.md §8 scenario 5).
func handleClientKeyExchange(priv *rsa.PrivateKey, encrypted []byte, recordedClientVersion uint16) []byte {
	preMaster, err := rsa.DecryptPKCS1v15(rand.Reader, priv, encrypted)
	ok := err == nil && len(preMaster) == masterSecretLength
	if !ok {
		preMaster = make([]byte, masterSecretLength)
		if _, rerr := rand.Read(preMaster); rerr != nil {
			// rand.Read failing is a resource-exhaustion programmer
			// condition the crypto stdlib itself would already have
			// panicked on; nothing meaningful to substitute.
			panic("tls: internal error: system randomness unavailable")
		}
	}
	// Override the first two bytes with the recorded client_version
	// regardless of which path was taken, per spec.md §4.4 (downgrade-attack
	// mitigation, spec.md §8 scenario 3).
	preMaster[0] = byte(recordedClientVersion >> 8)
	preMaster[1] = byte(recordedClientVersion)
	return preMaster
}
