package session

import (
	"context"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/sipcore/events"
)

func TestAnswer_RejectsWhenNotInviteReceived(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	err := s.Answer(context.Background(), req, tx)

	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAnswer_SendsOKAndWaitsForAck(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	require.NoError(t, s.transition(evRecvInvite))
	req := buildDispatchInvite(t)
	req.SetBody([]byte(sampleSDP))
	req.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	tx := newFakeTx()

	var accepted *events.AcceptedEvent
	s.On(events.Accepted, func(e any) { accepted = e.(*events.AcceptedEvent) })

	err := s.Answer(context.Background(), req, tx)

	require.NoError(t, err)
	assert.Equal(t, StatusWaitingForAck, s.Status())
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 200, tx.last().StatusCode)
	require.NotNil(t, accepted)
	assert.Equal(t, "local", accepted.Originator)
}

func TestAnswer_MalformedOfferRejectsWith488AndFails(t *testing.T) {
	s := New(&UA{}, Options{PeerConnection: fakePeerConnection{}})
	require.NoError(t, s.transition(evRecvInvite))
	req := buildDispatchInvite(t)
	req.SetBody([]byte("not sdp"))
	tx := newFakeTx()

	var failed *events.FailedEvent
	s.On(events.Failed, func(e any) { failed = e.(*events.FailedEvent) })

	err := s.Answer(context.Background(), req, tx)

	assert.Error(t, err)
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 488, tx.last().StatusCode)
	require.NotNil(t, failed)
	assert.Equal(t, string(CauseIncompatibleSDP), failed.Cause)
}

func TestProgress_SendsProvisionalAndEmitsEvent(t *testing.T) {
	s := New(&UA{}, Options{})
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	var progressed *events.ProgressEvent
	s.On(events.Progress, func(e any) { progressed = e.(*events.ProgressEvent) })

	err := s.Progress(req, tx, 180, "Ringing", nil)

	require.NoError(t, err)
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 180, tx.last().StatusCode)
	require.NotNil(t, progressed)
	assert.Equal(t, 180, progressed.StatusCode)
}

func TestConnect_RejectsWhenAlreadyConnected(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	err := s.Connect(context.Background(), ConnectOptions{})
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}
