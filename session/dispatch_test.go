package session

import (
	"context"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/sipcore/dialog"
	"github.com/sebas/sipcore/events"
)

// fakeTx is a minimal sip.ServerTransaction double that records the last
// response handed to Respond, enough to assert a handler's status-code
// branch without a real transport.
type fakeTx struct {
	responses []*sip.Response
	done      chan struct{}
}

func newFakeTx() *fakeTx { return &fakeTx{done: make(chan struct{})} }

func (tx *fakeTx) Respond(res *sip.Response) error {
	tx.responses = append(tx.responses, res)
	return nil
}
func (tx *fakeTx) Acks() <-chan *sip.Request           { return nil }
func (tx *fakeTx) OnCancel(f sip.FnTxCancel) bool      { return true }
func (tx *fakeTx) Terminate()                          {}
func (tx *fakeTx) OnTerminate(f sip.FnTxTerminate) bool { return true }
func (tx *fakeTx) Done() <-chan struct{}               { return tx.done }
func (tx *fakeTx) Err() error                          { return nil }

func (tx *fakeTx) last() *sip.Response {
	if len(tx.responses) == 0 {
		return nil
	}
	return tx.responses[len(tx.responses)-1]
}

const sampleSDP = "v=0\r\n" +
	"o=- 123456 654321 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"c=IN IP4 127.0.0.1\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 0\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n"

func buildDispatchInvite(t *testing.T) *sip.Request {
	t.Helper()
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "example.com"})
	cid := sip.CallIDHeader("dispatch-call")
	req.AppendHeader(&cid)
	fromParams := sip.NewParams()
	fromParams.Add("tag", "alice-tag")
	req.AppendHeader(&sip.FromHeader{Address: sip.Uri{User: "alice", Host: "example.com"}, Params: fromParams})
	req.AppendHeader(&sip.ToHeader{Address: sip.Uri{User: "bob", Host: "example.com"}})
	req.AppendHeader(&sip.ContactHeader{Address: sip.Uri{User: "alice", Host: "1.2.3.4"}})
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	return req
}

func TestHandleInvite_FromNullTransitionsToInviteReceived(t *testing.T) {
	s := New(&UA{}, Options{})
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	s.handleInvite(context.Background(), req, tx)

	assert.Equal(t, StatusInviteReceived, s.Status())
	assert.Equal(t, "remote", s.originator)
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 100, tx.last().StatusCode)
}

func TestHandleInvite_WhilePendingRejectsWith491(t *testing.T) {
	s := New(&UA{}, Options{})
	require.NoError(t, s.transition(evRecvInvite))
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	s.handleInvite(context.Background(), req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 491, tx.last().StatusCode)
}

func TestHandleCancel_BeforeAnswerTerminatesSession(t *testing.T) {
	s := New(&UA{}, Options{})
	require.NoError(t, s.transition(evRecvInvite))
	var failed bool
	s.On(events.Failed, func(any) { failed = true })
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	s.handleCancel(req, tx)

	assert.Equal(t, StatusCanceled, s.Status())
	assert.True(t, failed)
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 200, tx.last().StatusCode)
}

func TestHandleCancel_AfterConfirmedRejectsWith481(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	s.handleCancel(req, tx)

	assert.Equal(t, StatusConfirmed, s.Status())
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 481, tx.last().StatusCode)
}

func TestHandleAck_PromotesEarlyDialogAndStartsWatchdogTimer(t *testing.T) {
	s := New(&UA{Config: DefaultConfig()}, Options{})
	require.NoError(t, s.transition(evRecvInvite))
	require.NoError(t, s.transition(evLocalAnswer))
	require.NoError(t, s.transition(evSendOK))

	invite := buildDispatchInvite(t)
	early := dialog.NewUAS(invite)
	s.dialogs.SetEarly(early)

	var confirmed bool
	s.On(events.Confirmed, func(any) { confirmed = true })

	s.handleAck(buildDispatchInvite(t))

	assert.Equal(t, StatusConfirmed, s.Status())
	assert.True(t, confirmed)
	assert.NotNil(t, s.dialogs.Confirmed())
	assert.Nil(t, s.dialogs.Early())
}

func TestHandleAck_WrongStatusIsNoop(t *testing.T) {
	s := New(&UA{}, Options{})
	s.handleAck(buildDispatchInvite(t))
	assert.Equal(t, StatusNull, s.Status())
}

func TestHandleBye_ConfirmedEndsSessionWithByeCause(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	s.handleBye(req, tx)

	assert.Equal(t, StatusTerminated, s.Status())
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 200, tx.last().StatusCode)
	s.mu.Lock()
	cause := s.cause
	s.mu.Unlock()
	assert.Equal(t, CauseBYE, cause)
}

func TestHandleBye_NotConfirmedRejectsWith481(t *testing.T) {
	s := New(&UA{}, Options{})
	req := buildDispatchInvite(t)
	tx := newFakeTx()

	s.handleBye(req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 481, tx.last().StatusCode)
}

func TestHandleUpdate_NoBodyIsTimerRefreshOnly(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	req := sip.NewRequest(sip.UPDATE, sip.Uri{User: "bob", Host: "example.com"})
	tx := newFakeTx()

	s.handleUpdate(context.Background(), req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 200, tx.last().StatusCode)
}

func TestHandleUpdate_NotConfirmedRejectsWith481(t *testing.T) {
	s := New(&UA{}, Options{})
	req := sip.NewRequest(sip.UPDATE, sip.Uri{User: "bob", Host: "example.com"})
	tx := newFakeTx()

	s.handleUpdate(context.Background(), req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 481, tx.last().StatusCode)
}

func TestHandleUpdate_MalformedSDPRejectsWith488(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	req := sip.NewRequest(sip.UPDATE, sip.Uri{User: "bob", Host: "example.com"})
	req.SetBody([]byte("not sdp"))
	tx := newFakeTx()

	s.handleUpdate(context.Background(), req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 488, tx.last().StatusCode)
}

func TestHandleUpdate_ValidSDPEmitsUpdateEvent(t *testing.T) {
	s := newTestConfirmedSession(t, DefaultConfig())
	req := sip.NewRequest(sip.UPDATE, sip.Uri{User: "bob", Host: "example.com"})
	req.SetBody([]byte(sampleSDP))
	tx := newFakeTx()

	var got *events.UpdateEvent
	s.On(events.Update, func(e any) { got = e.(*events.UpdateEvent) })

	s.handleUpdate(context.Background(), req, tx)

	require.NotNil(t, got)
	assert.Equal(t, []byte(sampleSDP), got.SDP)
}

func TestHandleInfo_DTMFRelayBodyEmitsNewDTMF(t *testing.T) {
	s := New(&UA{}, Options{})
	req := sip.NewRequest(sip.INFO, sip.Uri{User: "bob", Host: "example.com"})
	req.SetBody([]byte("Signal=5\r\nDuration=100\r\n"))
	req.AppendHeader(sip.NewHeader("Content-Type", "application/dtmf-relay"))
	tx := newFakeTx()

	var got *events.NewDTMFEvent
	s.On(events.NewDTMF, func(e any) { got = e.(*events.NewDTMFEvent) })

	s.handleInfo(req, tx)

	require.NotNil(t, got)
	assert.Equal(t, "5", got.Tone)
	require.NotNil(t, tx.last())
	assert.EqualValues(t, 200, tx.last().StatusCode)
}

func TestHandleInfo_OtherContentTypeEmitsNewInfo(t *testing.T) {
	s := New(&UA{}, Options{})
	req := sip.NewRequest(sip.INFO, sip.Uri{User: "bob", Host: "example.com"})
	req.SetBody([]byte("hello"))
	req.AppendHeader(sip.NewHeader("Content-Type", "text/plain"))
	tx := newFakeTx()

	var got *events.NewInfoEvent
	s.On(events.NewInfo, func(e any) { got = e.(*events.NewInfoEvent) })

	s.handleInfo(req, tx)

	require.NotNil(t, got)
	assert.Equal(t, "text/plain", got.ContentType)
}

func TestHandleUnknown_RejectsWith501(t *testing.T) {
	s := New(&UA{}, Options{})
	req := sip.NewRequest(sip.MESSAGE, sip.Uri{User: "bob", Host: "example.com"})
	tx := newFakeTx()

	s.handleUnknown(req, tx)

	require.NotNil(t, tx.last())
	assert.EqualValues(t, 501, tx.last().StatusCode)
}
