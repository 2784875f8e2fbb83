package session

import (
	"context"
	"fmt"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/media"
)

// HoldType mirrors teacher's dialog.HoldType, naming the media direction
// a renegotiation should express.
type HoldType int

const (
	HoldNone HoldType = iota
	HoldSendOnly
	HoldRecvOnly
	HoldInactive
)

func (h HoldType) sdpDirection() media.Direction {
	switch h {
	case HoldSendOnly:
		return media.DirectionSendOnly
	case HoldRecvOnly:
		return media.DirectionRecvOnly
	case HoldInactive:
		return media.DirectionInactive
	default:
		return media.DirectionSendRecv
	}
}

// RenegotiateOptions configures an outgoing re-INVITE or UPDATE.
type RenegotiateOptions struct {
	// UseUpdate sends UPDATE instead of re-INVITE (only valid once the
	// peer has been observed to support it — see Config.SessionTimersRefreshMethod
	// for the same preference applied to session-timer refresh).
	UseUpdate bool
	Hold      HoldType
	Headers   map[string]string
}

// negotiateOffer asks the media engine for a fresh offer and applies it
// as our own local description, serialized on the Media Negotiation
// Queue so it can never interleave with any other offer/answer step.
func (s *Session) negotiateOffer(ctx context.Context) (media.Description, error) {
	if s.pc == nil {
		return media.Description{}, fmt.Errorf("session: no peer connection attached")
	}
	var offer media.Description
	err := s.queue.Run(ctx, func(ctx context.Context) error {
		o, err := s.pc.CreateOffer(ctx)
		if err != nil {
			s.emit(events.CreateOfferFailed, &events.PeerConnectionFailureEvent{Base: s.base(), Err: err})
			return err
		}
		if err := s.pc.SetLocalDescription(ctx, o); err != nil {
			s.emit(events.SetLocalDescFailed, &events.PeerConnectionFailureEvent{Base: s.base(), Err: err})
			return err
		}
		s.emitSDP("offer", "local", o.SDP, func(b []byte) { o.SDP = b })
		offer = o
		return nil
	})
	return offer, err
}

// negotiateAnswer validates an inbound offer, hands it to the engine as
// the remote description, and produces our own answer.
func (s *Session) negotiateAnswer(ctx context.Context, offerBody []byte) (media.Description, error) {
	if s.pc == nil {
		return media.Description{}, fmt.Errorf("session: no peer connection attached")
	}
	if media.IsLateOffer(offerBody) {
		return s.negotiateOffer(ctx)
	}
	if _, err := media.ValidateSDP(offerBody); err != nil {
		return media.Description{}, fmt.Errorf("%w: %v", ErrBadSDP, err)
	}

	var answer media.Description
	err := s.queue.Run(ctx, func(ctx context.Context) error {
		remote := media.Description{Type: "offer", SDP: offerBody}
		mutated := offerBody
		s.emitSDP("offer", "remote", offerBody, func(b []byte) { mutated = b })
		remote.SDP = mutated

		if err := s.pc.SetRemoteDescription(ctx, remote); err != nil {
			s.emit(events.SetRemoteDescFailed, &events.PeerConnectionFailureEvent{Base: s.base(), Err: err})
			return err
		}
		a, err := s.pc.CreateAnswer(ctx)
		if err != nil {
			s.emit(events.CreateAnswerFailed, &events.PeerConnectionFailureEvent{Base: s.base(), Err: err})
			return err
		}
		if err := s.pc.SetLocalDescription(ctx, a); err != nil {
			s.emit(events.SetLocalDescFailed, &events.PeerConnectionFailureEvent{Base: s.base(), Err: err})
			return err
		}
		s.emitSDP("answer", "local", a.SDP, func(b []byte) { a.SDP = b })
		answer = a
		return nil
	})
	return answer, err
}

// applyAnswer hands a received answer to the media engine as the remote
// description.
func (s *Session) applyAnswer(ctx context.Context, answerBody []byte) error {
	if s.pc == nil {
		return fmt.Errorf("session: no peer connection attached")
	}
	if _, err := media.ValidateSDP(answerBody); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSDP, err)
	}
	return s.queue.Run(ctx, func(ctx context.Context) error {
		mutated := answerBody
		s.emitSDP("answer", "remote", answerBody, func(b []byte) { mutated = b })
		remote := media.Description{Type: "answer", SDP: mutated}
		if err := s.pc.SetRemoteDescription(ctx, remote); err != nil {
			s.emit(events.SetRemoteDescFailed, &events.PeerConnectionFailureEvent{Base: s.base(), Err: err})
			return err
		}
		return nil
	})
}

func (s *Session) emitSDP(kind, originator string, sdp []byte, mutate func([]byte)) {
	s.emit(events.SDP, &events.SDPEvent{Base: s.base(), Type: kind, Originator: originator, SDP: sdp, Mutate: mutate})
}

// Renegotiate sends a re-INVITE or UPDATE on the confirmed dialog and
// requires status CONFIRMED. Each media step (creating the offer,
// applying the answer) runs on the Media Negotiation Queue, but the queue
// serializes single steps, not whole renegotiations: a second Renegotiate
// call waits only for the first one's current step and can send its own
// request while the first is still awaiting a response. Grounded on
// teacher's manager.go SendReINVITE.
func (s *Session) Renegotiate(ctx context.Context, opts RenegotiateOptions) error {
	if s.Status() != StatusConfirmed {
		return ErrInvalidState
	}
	d, err := s.activeDialog()
	if err != nil {
		return err
	}

	offer, err := s.negotiateOffer(ctx)
	if err != nil {
		return err
	}
	body := offer.SDP
	if opts.Hold != HoldNone {
		patched, err := media.PatchDirection(body, opts.Hold.sdpDirection())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadSDP, err)
		}
		body = patched
	}

	method := sip.INVITE
	if opts.UseUpdate {
		method = sip.UPDATE
	}

	resp, err := s.sendOfferRequest(ctx, d, method, body, opts.Headers)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("session: renegotiation rejected: %d %s", resp.StatusCode, resp.Reason)
	}
	return s.applyAnswer(ctx, resp.Body())
}

func (s *Session) sendOfferRequest(ctx context.Context, d interface{ BuildInDialogRequest(sip.RequestMethod, sip.Uri, []byte, string, map[string]string) (*sip.Request, error) }, method sip.RequestMethod, body []byte, headers map[string]string) (*sip.Response, error) {
	req, err := d.BuildInDialogRequest(method, s.ua.Contact, body, media.ContentTypeSDP, headers)
	if err != nil {
		return nil, fmt.Errorf("session: failed to build %s: %w", method, err)
	}
	s.emit(events.Sending, &events.SendingEvent{Base: s.base(), Request: requestRef(req)})

	tx, err := s.ua.Client.TransactionRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("session: failed to send %s: %w", method, err)
	}
	defer tx.Terminate()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp := <-tx.Responses():
			if resp == nil {
				return nil, fmt.Errorf("session: %s transaction terminated without response", method)
			}
			if resp.StatusCode < 200 {
				continue
			}
			if resp.StatusCode < 300 {
				ack := sip.NewRequest(sip.ACK, req.Recipient)
				if cid := req.CallID(); cid != nil {
					ack.AppendHeader(cid)
				}
				if cseq := req.CSeq(); cseq != nil {
					ack.AppendHeader(&sip.CSeqHeader{SeqNo: cseq.SeqNo, MethodName: sip.ACK})
				}
				_ = s.ua.Client.WriteRequest(ack)
			}
			return resp, nil
		}
	}
}

// HandleReinvite processes an inbound re-INVITE on the confirmed dialog,
// validating the new offer and firing a "reinvite" event whose
// Accept/Reject closures resolve the pending final response. Grounded on
// spec.md §4.3's "incoming re-INVITE/UPDATE handling."
func (s *Session) HandleReinvite(ctx context.Context, req *sip.Request, tx sip.ServerTransaction) {
	if _, err := media.ValidateSDP(req.Body()); err != nil && !media.IsLateOffer(req.Body()) {
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

	s.emit(events.Reinvite, &events.ReinviteEvent{Base: s.base(), SDP: req.Body(), Accept: accept, Reject: reject})
}
