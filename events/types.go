// Package events implements the Session's typed publish/subscribe
// surface: one struct per event name, matching the "Event surface"
// external interface named by the session core's public API. Unlike
// teacher's events.Builder (which produces externally-serializable,
// immutable records destined for a message broker), these events are
// in-process and some carry closures subscribers call to resolve an
// outcome (e.g. rejecting an incoming call) — there is no Publish/Subject
// wire concern here.
package events

import "time"

// Name identifies an event type. Subscribers register against a Name.
type Name string

const (
	NewRTCSession        Name = "newRTCSession"
	Connecting           Name = "connecting"
	Sending              Name = "sending"
	Progress             Name = "progress"
	Accepted             Name = "accepted"
	Confirmed            Name = "confirmed"
	Ended                Name = "ended"
	Failed               Name = "failed"
	SDP                  Name = "sdp"
	ICECandidate         Name = "icecandidate"
	Reinvite             Name = "reinvite"
	Update               Name = "update"
	AckReceived          Name = "ackReceived"
	ByeReceived          Name = "byeReceived"
	NewDTMF              Name = "newDTMF"
	NewInfo              Name = "newInfo"
	ReferNotify          Name = "referNotify"
	CreateOfferFailed    Name = "peerconnection:createofferfailed"
	CreateAnswerFailed   Name = "peerconnection:createanswerfailed"
	SetLocalDescFailed   Name = "peerconnection:setlocaldescriptionfailed"
	SetRemoteDescFailed  Name = "peerconnection:setremotedescriptionfailed"
)

// Base carries the identity every event shares, the in-process analogue
// of teacher's BaseEvent (EventID/EventTime/CallUUID/SIPCallID), minus
// the tenant/node routing fields a broker needs and a bare pub/sub
// subscriber does not.
type Base struct {
	ID     string
	Time   time.Time
	CallID string
}

// NewRTCSessionEvent fires once per Session right after construction.
type NewRTCSessionEvent struct {
	Base
	Originator string // "local" or "remote"
}

// ConnectingEvent fires once the INVITE request has been built and the
// Session has entered INVITE_SENT, just before the request is handed to
// the transaction layer.
type ConnectingEvent struct {
	Base
	Request *RequestRef
}

// SendingEvent fires immediately before a request is sent on the wire.
// Request is a read-only summary copied from the outgoing message;
// changing it does not alter the request that is sent.
type SendingEvent struct {
	Base
	Request *RequestRef
}

// ProgressEvent fires on every 1xx received (UAC) or sent (UAS).
type ProgressEvent struct {
	Base
	Originator string
	StatusCode int
	Response   *RequestRef
}

// AcceptedEvent fires on a 2xx, before ACK exchange completes the dialog.
type AcceptedEvent struct {
	Base
	Originator string
	StatusCode int
}

// ConfirmedEvent fires once the dialog reaches CONFIRMED.
type ConfirmedEvent struct {
	Base
	Originator string
}

// EndedEvent fires once a session ends after having been confirmed, and
// when a 2xx the Session sent is never ACKed within Timer H (NO_ACK).
type EndedEvent struct {
	Base
	Originator string
	Cause      string
}

// FailedEvent fires when a session ends before ever reaching CONFIRMED,
// other than the NO_ACK case above.
type FailedEvent struct {
	Base
	Originator string
	Cause      string
	StatusCode int
}

// SDPEvent lets subscribers observe an offer or answer and replace it
// through Mutate. For a local description the replacement is the body
// that is sent (the engine keeps the description it already applied);
// for a remote one it is the body handed to the engine.
type SDPEvent struct {
	Base
	Type         string // "offer" or "answer"
	Originator   string // "local" or "remote"
	SDP          []byte
	Mutate       func([]byte) // replaces SDP, see above
}

// ICECandidateEvent is a signaling-plane placeholder: the session core
// has no ICE agent of its own (Non-goal); it neither emits this event nor
// forwards candidates anywhere.
type ICECandidateEvent struct {
	Base
	Candidate string
	Ready     func() // signals "send now", matching JsSIP's icecandidate contract
}

// ReinviteEvent / UpdateEvent fire for an inbound re-INVITE or UPDATE
// once the Media Negotiation Queue has validated it; Accept/Reject
// resolve the pending response.
type ReinviteEvent struct {
	Base
	SDP    []byte
	Accept func(answer []byte) error
	Reject func(statusCode int, reason string) error
}

type UpdateEvent struct {
	Base
	SDP    []byte
	Accept func(answer []byte) error
	Reject func(statusCode int, reason string) error
}

// AckReceivedEvent / ByeReceivedEvent are thin notifications; by the time
// they fire the state machine has already advanced.
type AckReceivedEvent struct {
	Base
}

type ByeReceivedEvent struct {
	Base
	Reason string
}

// NewDTMFEvent fires for each tone parsed from an inbound dtmf-relay INFO
// and for each entry of a dial string SendDTMF has sent (a ',' pause
// included); NewInfoEvent surfaces other inbound INFO bodies.
type NewDTMFEvent struct {
	Base
	Tone     string
	Duration time.Duration
}

type NewInfoEvent struct {
	Base
	ContentType string
	Body        []byte
}

// ReferNotifyEvent carries the sipfrag status of an in-progress transfer.
type ReferNotifyEvent struct {
	Base
	StatusCode int
	Final      bool
}

// PeerConnectionFailureEvent covers the four
// peerconnection:*failed events, which all carry the same shape.
type PeerConnectionFailureEvent struct {
	Base
	Err error
}

// RequestRef is a minimal, engine-agnostic view of a SIP request/response
// exposed to subscribers so this package does not need to import
// emiago/sipgo/sip itself (events stays a leaf dependency).
type RequestRef struct {
	Method     string
	StatusCode int
	CallID     string
}
