package session

import "github.com/emiago/sipgo/sip"

// Cause classifies why a Session ended or an operation failed. It is
// attached to the "ended"/"failed" events so subscribers never need to
// inspect raw SIP status codes.
type Cause string

const (
	CauseBYE                  Cause = "BYE"
	CauseCanceled             Cause = "CANCELED"
	CauseNoAck                Cause = "NO_ACK"
	CauseBusy                 Cause = "BUSY"
	CauseRejected             Cause = "REJECTED"
	CauseRedirected           Cause = "REDIRECTED"
	CauseUnavailable          Cause = "UNAVAILABLE"
	CauseNotFound             Cause = "NOT_FOUND"
	CauseAddressIncomplete    Cause = "ADDRESS_INCOMPLETE"
	CauseIncompatibleSDP      Cause = "INCOMPATIBLE_SDP"
	CauseMissingSDP           Cause = "MISSING_SDP"
	CauseBadMediaDescription  Cause = "BAD_MEDIA_DESCRIPTION"
	CauseAuthenticationError  Cause = "AUTHENTICATION_ERROR"
	CauseRequestTimeout       Cause = "REQUEST_TIMEOUT"
	CauseDialogError          Cause = "DIALOG_ERROR"
	CauseConnectionError      Cause = "CONNECTION_ERROR"
	CauseWebRTCError          Cause = "WEBRTC_ERROR"
	CauseInternalError        Cause = "INTERNAL_ERROR"
	CauseUserDeniedMediaAccess Cause = "USER_DENIED_MEDIA_ACCESS"
)

// CauseFromStatus maps a final SIP response status code to a Cause,
// following the per-class rules a complete UA implementation applies.
// Status codes not explicitly listed fall back to the class default
// (3xx -> REDIRECTED, 4xx/5xx/6xx -> REJECTED, anything else ->
// INTERNAL_ERROR).
func CauseFromStatus(code sip.StatusCode) Cause {
	switch code {
	case 401, 407:
		return CauseAuthenticationError
	case 404:
		return CauseNotFound
	case 408:
		return CauseRequestTimeout
	case 484:
		return CauseAddressIncomplete
	case 486, 600:
		return CauseBusy
	case 487:
		return CauseCanceled
	case 488, 606:
		return CauseIncompatibleSDP
	case 302, 305, 380:
		return CauseRedirected
	case 480, 410:
		return CauseUnavailable
	}
	switch {
	case code >= 300 && code < 400:
		return CauseRedirected
	case code >= 400 && code < 500:
		return CauseRejected
	case code >= 500:
		return CauseRejected
	default:
		return CauseInternalError
	}
}
