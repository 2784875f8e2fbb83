// Package media implements the Media Negotiation Queue: the strictly
// serial offer/answer pipeline a Session drives against an externally
// supplied media engine.
package media

import "context"

// SignalingState mirrors the WebRTC RTCSignalingState values the spec's
// PeerConnection contract is defined against.
type SignalingState string

const (
	SignalingStable             SignalingState = "stable"
	SignalingHaveLocalOffer     SignalingState = "have-local-offer"
	SignalingHaveRemoteOffer    SignalingState = "have-remote-offer"
	SignalingHaveLocalPranswer  SignalingState = "have-local-pranswer"
	SignalingHaveRemotePranswer SignalingState = "have-remote-pranswer"
	SignalingClosed             SignalingState = "closed"
)

// GatheringState mirrors RTCIceGatheringState.
type GatheringState string

const (
	GatheringNew       GatheringState = "new"
	GatheringGathering GatheringState = "gathering"
	GatheringComplete  GatheringState = "complete"
)

// Description is an SDP offer or answer.
type Description struct {
	Type string // "offer" or "answer"
	SDP  []byte
}

// PeerConnection is the abstract media engine contract the Media
// Negotiation Queue drives: a Session never touches media transport
// itself (an explicit Non-goal), it only sequences calls against
// whatever concrete engine the embedder supplies. Grounded on teacher's
// mediaclient.Transport, an equally abstracted, consumed-not-implemented
// interface, reshaped to the createOffer/createAnswer/setLocalDescription/
// setRemoteDescription surface the signaling layer actually needs.
type PeerConnection interface {
	CreateOffer(ctx context.Context) (Description, error)
	CreateAnswer(ctx context.Context) (Description, error)
	SetLocalDescription(ctx context.Context, desc Description) error
	SetRemoteDescription(ctx context.Context, desc Description) error

	SignalingState() SignalingState
	ICEGatheringState() GatheringState

	// OnICECandidate registers a callback invoked for each locally
	// gathered candidate; a call with an empty candidate signals
	// gathering is complete.
	OnICECandidate(func(candidate string))

	Close() error
}
