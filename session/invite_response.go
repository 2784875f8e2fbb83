package session

import (
	"context"
	"fmt"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/sipcore/dialog"
	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/media"
	"github.com/sebas/sipcore/timers"
)

// ConnectOptions configures an outbound call.
type ConnectOptions struct {
	Target    sip.Uri
	Anonymous bool
	Headers   map[string]string
}

// Connect places an outbound call: builds and sends an INVITE carrying a
// freshly created offer, then drives status through INVITE_SENT,
// 1XX_RECEIVED and ANSWERED as responses arrive, sending the final ACK
// once a 2xx lands. Grounded on teacher's manager.go response-handling
// loop in SendReINVITE, generalized from re-INVITE to the initial INVITE.
func (s *Session) Connect(ctx context.Context, opts ConnectOptions) error {
	if s.Status() != StatusNull {
		return ErrAlreadyConnected
	}
	s.originator = "local"

	offer, err := s.negotiateOffer(ctx)
	if err != nil {
		return err
	}

	req := sip.NewRequest(sip.INVITE, opts.Target)
	fromParams := sip.NewParams()
	fromParams.Add("tag", newTag())
	from := &sip.FromHeader{Address: s.ua.Contact, Params: fromParams}
	if opts.Anonymous || s.config().Anonymous {
		anon := sip.Uri{User: "anonymous", Host: "anonymous.invalid"}
		from = &sip.FromHeader{DisplayName: "Anonymous", Address: anon, Params: fromParams}
		req.AppendHeader(sip.NewHeader("Privacy", "id"))
		req.AppendHeader(sip.NewHeader("P-Preferred-Identity", s.ua.Contact.String()))
	}
	req.AppendHeader(from)
	req.AppendHeader(&sip.ToHeader{Address: opts.Target})
	req.AppendHeader(&sip.ContactHeader{Address: s.ua.Contact})
	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)
	for name, value := range opts.Headers {
		req.AppendHeader(sip.NewHeader(name, value))
	}
	req.SetBody(offer.SDP)
	req.AppendHeader(sip.NewHeader("Content-Type", media.ContentTypeSDP))

	cfg := s.config()
	if cfg.SessionTimersEnabled {
		req.AppendHeader(sip.NewHeader("Session-Expires", fmt.Sprintf("%d;refresher=uac", cfg.DefaultSessionExpires)))
		req.AppendHeader(sip.NewHeader("Min-SE", fmt.Sprintf("%d", cfg.MinSessionExpires)))
		req.AppendHeader(sip.NewHeader("Supported", "timer"))
	}

	if err := s.transition(evSendInvite); err != nil {
		return err
	}

	s.emit(events.Connecting, &events.ConnectingEvent{Base: s.base(), Request: requestRef(req)})
	s.emit(events.Sending, &events.SendingEvent{Base: s.base(), Request: requestRef(req)})

	tx, err := s.ua.Client.TransactionRequest(ctx, req)
	if err != nil {
		s.fail(CauseConnectionError, 0)
		return fmt.Errorf("session: failed to send INVITE: %w", err)
	}
	defer tx.Terminate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.canceled():
			return ErrTerminated
		case resp := <-tx.Responses():
			if resp == nil {
				s.fail(CauseRequestTimeout, 0)
				return fmt.Errorf("session: INVITE transaction terminated without response")
			}

			switch {
			case resp.StatusCode < 200:
				_ = s.transition(ev1xx)
				if to := resp.To(); to != nil && resp.StatusCode > 100 && resp.Contact() != nil {
					if _, ok := to.Params.Get("tag"); ok {
						s.dialogs.SetEarly(dialog.NewUAC(req, resp))
					}
				}
				s.emit(events.Progress, &events.ProgressEvent{Base: s.base(), Originator: "remote", StatusCode: resp.StatusCode, Response: responseRef(resp)})
				continue

			case resp.StatusCode < 300:
				if err := s.transition(evRemoteAnswer); err != nil {
					return err
				}
				d := dialog.NewUAC(req, resp)
				s.dialogs.SetEarly(d)
				s.emit(events.Accepted, &events.AcceptedEvent{Base: s.base(), Originator: "remote", StatusCode: resp.StatusCode})

				if err := s.applyAnswer(ctx, resp.Body()); err != nil {
					s.fail(CauseIncompatibleSDP, resp.StatusCode)
					return err
				}

				ack := sip.NewRequest(sip.ACK, req.Recipient)
				sip.CopyHeaders("Via", req, ack)
				sip.CopyHeaders("From", req, ack)
				sip.CopyHeaders("To", resp, ack)
				if cid := req.CallID(); cid != nil {
					ack.AppendHeader(cid)
				}
				if cseq := req.CSeq(); cseq != nil {
					ack.AppendHeader(&sip.CSeqHeader{SeqNo: cseq.SeqNo, MethodName: sip.ACK})
				}
				if err := s.ua.Client.WriteRequest(ack); err != nil {
					s.logger().Warn("session: failed to send ACK", "error", err)
				}

				s.dialogs.Promote(d)
				if err := s.transition(evAckSent); err != nil {
					return err
				}
				s.emit(events.Confirmed, &events.ConfirmedEvent{Base: s.base(), Originator: "local"})

				expires := sessionExpiresOfResponse(resp, cfg)
				s.startSessionTimer(expires, timers.RoleRefresher)
				return nil

			default:
				cause := CauseFromStatus(sip.StatusCode(resp.StatusCode))
				s.fail(cause, resp.StatusCode)
				return fmt.Errorf("session: call failed: %d %s", resp.StatusCode, resp.Reason)
			}
		}
	}
}

// Answer accepts an inbound INVITE captured by ReceiveRequest's INVITE branch,
// producing a local answer from the offer carried in the request (or, for
// a late offer, producing an offer of our own) and sending the 200 OK.
// Grounded on teacher's manager.go SendOK/SendProgress sequence.
func (s *Session) Answer(ctx context.Context, req *sip.Request, tx sip.ServerTransaction) error {
	if s.Status() != StatusInviteReceived {
		return ErrInvalidState
	}
	if err := s.transition(evLocalAnswer); err != nil {
		return err
	}

	d := dialog.NewUAS(req)
	s.dialogs.SetEarly(d)

	answer, err := s.negotiateAnswer(ctx, req.Body())
	if err != nil {
		s.fail(CauseIncompatibleSDP, 488)
		_ = tx.Respond(sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return err
	}

	toParams := sip.NewParams()
	toParams.Add("tag", newTag())
	resp := sip.NewResponseFromRequest(req, 200, "OK", answer.SDP)
	if to := resp.To(); to != nil {
		to.Params = toParams
	}
	resp.AppendHeader(&sip.ContactHeader{Address: s.ua.Contact})
	resp.AppendHeader(sip.NewHeader("Content-Type", media.ContentTypeSDP))

	if err := tx.Respond(resp); err != nil {
		return fmt.Errorf("session: failed to send 200 OK: %w", err)
	}
	d.SetInviteResponse(resp)

	if err := s.transition(evSendOK); err != nil {
		return err
	}
	s.emit(events.Accepted, &events.AcceptedEvent{Base: s.base(), Originator: "local", StatusCode: 200})

	ackCtx, _ := s.withRequestContext(context.Background())
	s.watchForAck(ackCtx, func() { _ = tx.Respond(resp) })
	return nil
}

// Progress sends a 1xx provisional response (100 Trying / 183 Session
// Progress, optionally carrying early media SDP).
func (s *Session) Progress(req *sip.Request, tx sip.ServerTransaction, statusCode int, reason string, sdp []byte) error {
	resp := sip.NewResponseFromRequest(req, statusCode, reason, sdp)
	if len(sdp) > 0 {
		resp.AppendHeader(sip.NewHeader("Content-Type", media.ContentTypeSDP))
	}
	if err := tx.Respond(resp); err != nil {
		return fmt.Errorf("session: failed to send %d: %w", statusCode, err)
	}
	s.emit(events.Progress, &events.ProgressEvent{Base: s.base(), Originator: "local", StatusCode: statusCode})
	return nil
}

// fail transitions to TERMINATED and fires "failed" for any session that
// never reached CONFIRMED.
func (s *Session) fail(cause Cause, statusCode int) {
	s.mu.Lock()
	s.cause = cause
	s.mu.Unlock()
	_ = s.transition(evTerminate)
	s.emit(events.Failed, &events.FailedEvent{Base: s.base(), Originator: s.originator, Cause: string(cause), StatusCode: statusCode})
}

// Terminate dispatches on current status. A confirmed session is ended
// with a BYE. A not-yet-confirmed one moves to CANCELED and fires
// "failed" (cause CANCELED), which also stops a pending Connect; no
// CANCEL request is sent on the wire. ANSWERED cannot be canceled and
// yields ErrInvalidState.
func (s *Session) Terminate(ctx context.Context) error {
	status := s.Status()
	if status.IsTerminal() {
		return nil
	}

	if status == StatusConfirmed {
		d, err := s.activeDialog()
		if err != nil {
			return err
		}
		resp, err := s.SendRequest(ctx, sip.BYE, nil, "", nil)
		if err != nil {
			s.logger().Warn("session: BYE send failed, terminating locally anyway", "error", err)
		} else if resp.StatusCode >= 300 {
			s.logger().Warn("session: BYE rejected", "status", resp.StatusCode)
		}
		s.mu.Lock()
		s.cause = CauseBYE
		s.mu.Unlock()
		if err := s.transition(evTerminate); err != nil {
			return err
		}
		s.emit(events.Ended, &events.EndedEvent{Base: s.base(), Originator: "local", Cause: string(CauseBYE)})
		_ = d
		return nil
	}

	s.mu.Lock()
	s.cause = CauseCanceled
	s.mu.Unlock()
	if err := s.transition(evCancel); err != nil {
		return err
	}
	s.emit(events.Failed, &events.FailedEvent{Base: s.base(), Originator: "local", Cause: string(CauseCanceled)})
	return nil
}

func newTag() string {
	return sip.GenerateTagN(16)
}
