package tls

import "fmt"

// alertDescription is the wire alert taxonomy, spec.md §6.
type alertDescription uint8

const (
	alertCloseNotify            alertDescription = 0
	alertUnexpectedMessage      alertDescription = 10
	alertBadRecordMAC           alertDescription = 20
	alertRecordOverflow         alertDescription = 22
	alertDecompressionFailure   alertDescription = 30
	alertHandshakeFailure       alertDescription = 40
	alertBadCertificate         alertDescription = 42
	alertUnsupportedCertificate alertDescription = 43
	alertCertificateRevoked     alertDescription = 44
	alertCertificateExpired     alertDescription = 45
	alertCertificateUnknown     alertDescription = 46
	alertIllegalParameter       alertDescription = 47
	alertUnknownCA              alertDescription = 48
	alertAccessDenied           alertDescription = 49
	alertDecodeError            alertDescription = 50
	alertDecryptError           alertDescription = 51
	alertProtocolVersion        alertDescription = 70
	alertInsufficientSecurity   alertDescription = 71
	alertInternalError          alertDescription = 80
	alertUserCanceled           alertDescription = 90
	alertNoRenegotiation        alertDescription = 100
	alertUnsupportedExtension   alertDescription = 110
)

func (a alertDescription) String() string {
	switch a {
	case alertCloseNotify:
		return "close_notify"
	case alertUnexpectedMessage:
		return "unexpected_message"
	case alertBadRecordMAC:
		return "bad_record_mac"
	case alertRecordOverflow:
		return "record_overflow"
	case alertDecompressionFailure:
		return "decompression_failure"
	case alertHandshakeFailure:
		return "handshake_failure"
	case alertBadCertificate:
		return "bad_certificate"
	case alertUnsupportedCertificate:
		return "unsupported_certificate"
	case alertCertificateRevoked:
		return "certificate_revoked"
	case alertCertificateExpired:
		return "certificate_expired"
	case alertCertificateUnknown:
		return "certificate_unknown"
	case alertIllegalParameter:
		return "illegal_parameter"
	case alertUnknownCA:
		return "unknown_ca"
	case alertAccessDenied:
		return "access_denied"
	case alertDecodeError:
		return "decode_error"
	case alertDecryptError:
		return "decrypt_error"
	case alertProtocolVersion:
		return "protocol_version"
	case alertInsufficientSecurity:
		return "insufficient_security"
	case alertInternalError:
		return "internal_error"
	case alertUserCanceled:
		return "user_canceled"
	case alertNoRenegotiation:
		return "no_renegotiation"
	case alertUnsupportedExtension:
		return "unsupported_extension"
	default:
		return "unknown_alert"
	}
}

// errorCategory is the abstract taxonomy of spec.md §7, used only to pick a
// sensible default wire alert and to annotate the local diagnosis string.
type errorCategory int

const (
	categoryDecode errorCategory = iota
	categoryProtocol
	categoryCrypto
	categoryTrust
	categoryResource
)

// tlsError is the one structured error type the handshake core returns. It
// carries the wire alert to send (which may differ from the local reason,
// per spec.md §4.4.4) and a human-readable local diagnosis.
type tlsError struct {
	category errorCategory
	wire     alertDescription
	local    string
}

func (e *tlsError) Error() string {
	return fmt.Sprintf("tls: %s (wire alert %s)", e.local, e.wire)
}

func newAlertError(wire alertDescription, category errorCategory, local string) *tlsError {
	return &tlsError{category: category, wire: wire, local: local}
}

func errUnexpectedMessage(local string) error {
	return newAlertError(alertUnexpectedMessage, categoryProtocol, local)
}
func errDecode(local string) error {
	return newAlertError(alertDecodeError, categoryDecode, local)
}
func errHandshakeFailure(local string) error {
	return newAlertError(alertHandshakeFailure, categoryProtocol, local)
}
func errBadCertificateAlert(local string) error {
	return newAlertError(alertBadCertificate, categoryTrust, local)
}
func errUnsupportedCertificate(local string) error {
	return newAlertError(alertUnsupportedCertificate, categoryTrust, local)
}
func errProtocolVersion(local string) error {
	return newAlertError(alertProtocolVersion, categoryProtocol, local)
}
func errIllegalParameter(local string) error {
	return newAlertError(alertIllegalParameter, categoryDecode, local)
}
func errDecryptError(local string) error {
	return newAlertError(alertDecryptError, categoryCrypto, local)
}
func errInternal(local string) error {
	return newAlertError(alertInternalError, categoryResource, local)
}
