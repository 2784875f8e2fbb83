package session

import (
	"context"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/media"
)

// fakePeerConnection is a no-op media.PeerConnection double that always
// answers with sampleSDP, enough to drive the offer/answer queue without
// a real media engine.
type fakePeerConnection struct{}

func (fakePeerConnection) CreateOffer(ctx context.Context) (media.Description, error) {
	return media.Description{Type: "offer", SDP: []byte(sampleSDP)}, nil
}
func (fakePeerConnection) CreateAnswer(ctx context.Context) (media.Description, error) {
	return media.Description{Type: "answer", SDP: []byte(sampleSDP)}, nil
}
func (fakePeerConnection) SetLocalDescription(ctx context.Context, desc media.Description) error {
	return nil
}
func (fakePeerConnection) SetRemoteDescription(ctx context.Context, desc media.Description) error {
	return nil
}
func (fakePeerConnection) SignalingState() media.SignalingState     { return media.SignalingStable }
func (fakePeerConnection) ICEGatheringState() media.GatheringState  { return media.GatheringComplete }
func (fakePeerConnection) OnICECandidate(func(candidate string))    {}
func (fakePeerConnection) Close() error                             { return nil }

func TestHoldType_SdpDirectionMapping(t *testing.T) {
	assert.Equal(t, media.DirectionSendRecv, HoldNone.sdpDirection())
	assert.Equal(t, media.DirectionSendOnly, HoldSendOnly.sdpDirection())
	assert.Equal(t, media.DirectionRecvOnly, HoldRecvOnly.sdpDirection())
	assert.Equal(t, media.DirectionInactive, HoldInactive.sdpDirection())
}

func TestRenegotiate_RejectsWhenNotConfirmed(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	err := s.Renegotiate(context.Background(), RenegotiateOptions{})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRenegotiate_NoActiveDialogErrors(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	err := s.Renegotiate(context.Background(), RenegotiateOptions{})
	assert.ErrorIs(t, err, ErrNoDialog)
}

func TestNegotiateOffer_NoPeerConnectionErrors(t *testing.T) {
	s := New(&UA{}, Options{})
	_, err := s.negotiateOffer(context.Background())
	assert.Error(t, err)
}

func TestNegotiateAnswer_RejectsMalformedOffer(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	_, err := s.negotiateAnswer(context.Background(), []byte("not sdp"))
	assert.ErrorIs(t, err, ErrBadSDP)
}

func TestNegotiateAnswer_AcceptsWellFormedOffer(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	answer, err := s.negotiateAnswer(context.Background(), []byte(sampleSDP))
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleSDP), answer.SDP)
}

func TestApplyAnswer_RejectsMalformedBody(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	err := s.applyAnswer(context.Background(), []byte("not sdp"))
	assert.ErrorIs(t, err, ErrBadSDP)
}

func TestHandleReinvite_MalformedSDPRejectsWith488(t *testing.T) {
	s := New(&UA{}, Options{})
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "example.com"})
	req.SetBody([]byte("not sdp"))
	tx := newFakeTx()

	s.HandleReinvite(context.Background(), req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 488, tx.last().StatusCode)
}

func TestHandleReinvite_ValidSDPEmitsReinviteEvent(t *testing.T) {
	s := New(&UA{}, Options{})
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "example.com"})
	req.SetBody([]byte(sampleSDP))
	tx := newFakeTx()

	var got *events.ReinviteEvent
	s.On(events.Reinvite, func(e any) { got = e.(*events.ReinviteEvent) })

	s.HandleReinvite(context.Background(), req, tx)

	require.NotNil(t, got)
	assert.Equal(t, []byte(sampleSDP), got.SDP)
}
