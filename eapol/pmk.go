package eapol

import (
	"crypto/sha1"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const pmkLen = 32

var errBadPassphrase = errors.New("eapol: passphrase must be 8-63 ASCII characters")

// DerivePMKFromPassphrase implements WPA2-Personal's PMK (spec.md §1 names
// PBKDF2 as an external collaborator): PMK = PBKDF2(HMAC-SHA1, passphrase,
// ssid, 4096, 256 bits). Enterprise deployments provide the PMK directly
// from 802.1X and never call this.
func DerivePMKFromPassphrase(passphrase, ssid string) ([]byte, error) {
	if len(passphrase) < 8 || len(passphrase) > 63 {
		return nil, errBadPassphrase
	}
	return pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, pmkLen, sha1.New), nil
}
