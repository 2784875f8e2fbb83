package session

import (
	"context"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/media"
	"github.com/sebas/sipcore/timers"
)

// ReceiveRequest dispatches an inbound in-dialog or dialog-creating
// request to the right handler, mirroring spec.md §4.1's per-method
// branches. Grounded on teacher's routing/{ack,bye,cancel,invite}.go:
// each branch there is a thin handler delegating into dialog.Manager;
// here each branch is a thin handler delegating into the Session itself,
// since there is no longer a separate process-wide manager to delegate
// to.
func (s *Session) ReceiveRequest(ctx context.Context, req *sip.Request, tx sip.ServerTransaction) {
	switch req.Method {
	case sip.INVITE:
		s.handleInvite(ctx, req, tx)
	case sip.CANCEL:
		s.handleCancel(req, tx)
	case sip.ACK:
		s.handleAck(req)
	case sip.BYE:
		s.handleBye(req, tx)
	case sip.UPDATE:
		s.handleUpdate(ctx, req, tx)
	case sip.INFO:
		s.handleInfo(req, tx)
	case sip.NOTIFY:
		s.handleNotify(req, tx)
	default:
		s.handleUnknown(req, tx)
	}
}

// handleInvite covers both the very first INVITE (NULL -> INVITE_RECEIVED)
// and an in-dialog re-INVITE (CONFIRMED, handled by HandleReinvite).
func (s *Session) handleInvite(ctx context.Context, req *sip.Request, tx sip.ServerTransaction) {
	switch s.Status() {
	case StatusNull:
		s.originator = "remote"
		if err := s.transition(evRecvInvite); err != nil {
			_ = tx.Respond(sip.NewResponseFromRequest(req, 500, "Internal Server Error", nil))
			return
		}
		_ = s.Progress(req, tx, 100, "Trying", nil)
	case StatusConfirmed:
		s.HandleReinvite(ctx, req, tx)
	default:
		_ = tx.Respond(sip.NewResponseFromRequest(req, 491, "Request Pending", nil))
	}
}

// handleCancel covers CANCEL received before the dialog is answered,
// per spec.md's CANCELED status.
func (s *Session) handleCancel(req *sip.Request, tx sip.ServerTransaction) {
	status := s.Status()
	if status.IsTerminal() || status == StatusConfirmed {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 481, "Call/Transaction Does Not Exist", nil))
		return
	}
	_ = tx.Respond(sip.NewResponseFromRequest(req, 200, "OK", nil))

	s.mu.Lock()
	s.cause = CauseCanceled
	s.mu.Unlock()
	if err := s.transition(evCancel); err != nil {
		s.logger().Debug("session: CANCEL received in unexpected status", "status", status, "error", err)
		return
	}
	s.emit(events.Failed, &events.FailedEvent{Base: s.base(), Originator: "remote", Cause: string(CauseCanceled)})
}

// handleAck completes the UAS three-way handshake, promoting the early
// dialog to confirmed.
func (s *Session) handleAck(req *sip.Request) {
	if s.Status() != StatusWaitingForAck {
		s.logger().Debug("session: unexpected ACK", "status", s.Status())
		return
	}
	d := s.dialogs.Early()
	if d != nil {
		s.dialogs.Promote(d)
	}
	if err := s.transition(evAckReceived); err != nil {
		s.logger().Warn("session: failed to confirm on ACK", "error", err)
		return
	}
	s.emit(events.AckReceived, &events.AckReceivedEvent{Base: s.base()})
	s.emit(events.Confirmed, &events.ConfirmedEvent{Base: s.base(), Originator: "remote"})

	if d != nil && d.InviteRequest != nil {
		expires := sessionExpiresOf(d.InviteRequest, s.config())
		s.startSessionTimer(expires, timers.RoleNonRefresher)
	}
}

// handleBye tears down a confirmed dialog on receipt of BYE.
func (s *Session) handleBye(req *sip.Request, tx sip.ServerTransaction) {
	if s.Status() != StatusConfirmed {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 481, "Call/Transaction Does Not Exist", nil))
		return
	}
	_ = tx.Respond(sip.NewResponseFromRequest(req, 200, "OK", nil))

	s.mu.Lock()
	s.cause = CauseBYE
	s.mu.Unlock()
	if err := s.transition(evTerminate); err != nil {
		s.logger().Warn("session: failed to terminate on BYE", "error", err)
		return
	}
	s.emit(events.ByeReceived, &events.ByeReceivedEvent{Base: s.base()})
	s.emit(events.Ended, &events.EndedEvent{Base: s.base(), Originator: "remote", Cause: string(CauseBYE)})
}

// handleUpdate processes an in-dialog UPDATE, the RFC 3311 sibling of
// re-INVITE, for either mid-call renegotiation or a session-timer
// refresh that carries no SDP.
func (s *Session) handleUpdate(ctx context.Context, req *sip.Request, tx sip.ServerTransaction) {
	if s.Status() != StatusConfirmed {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 481, "Call/Transaction Does Not Exist", nil))
		return
	}
	if len(req.Body()) == 0 {
		// Session-timer refresh with no SDP change.
		_ = tx.Respond(sip.NewResponseFromRequest(req, 200, "OK", nil))
		return
	}
	if _, err := media.ValidateSDP(req.Body()); err != nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return
	}

	accept := func(answerSDP []byte) error {
		resp := sip.NewResponseFromRequest(req, 200, "OK", answerSDP)
		resp.AppendHeader(sip.NewHeader("Content-Type", media.ContentTypeSDP))
		return tx.Respond(resp)
	}
	reject := func(statusCode int, reason string) error {
		return tx.Respond(sip.NewResponseFromRequest(req, sip.StatusCode(statusCode), reason, nil))
	}
	s.emit(events.Update, &events.UpdateEvent{Base: s.base(), SDP: req.Body(), Accept: accept, Reject: reject})
}

// handleInfo surfaces application/dtmf-relay and other INFO bodies.
func (s *Session) handleInfo(req *sip.Request, tx sip.ServerTransaction) {
	_ = tx.Respond(sip.NewResponseFromRequest(req, 200, "OK", nil))

	contentType := ""
	if ct := req.ContentType(); ct != nil {
		contentType = ct.Value()
	}
	if contentType == "application/dtmf-relay" || contentType == "application/dtmf" {
		if tone, ok := parseDTMFRelayBody(req.Body()); ok {
			s.emit(events.NewDTMF, &events.NewDTMFEvent{Base: s.base(), Tone: tone})
			return
		}
	}
	s.emit(events.NewInfo, &events.NewInfoEvent{Base: s.base(), ContentType: contentType, Body: req.Body()})
}

// handleNotify surfaces REFER-subscription NOTIFYs; see refer.go.
func (s *Session) handleNotify(req *sip.Request, tx sip.ServerTransaction) {
	_ = tx.Respond(sip.NewResponseFromRequest(req, 200, "OK", nil))
	s.handleReferNotify(req)
}

// handleUnknown rejects any method this Session does not implement,
// matching spec.md's explicit "unknown method" dispatch branch.
func (s *Session) handleUnknown(req *sip.Request, tx sip.ServerTransaction) {
	_ = tx.Respond(sip.NewResponseFromRequest(req, 501, "Not Implemented", nil))
}
