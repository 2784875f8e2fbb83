// Package session implements the Session State Machine: the INVITE
// dialog usage lifecycle, SDP offer/answer sequencing, in-dialog request
// handling, and the causes/events a single call leg exposes to its
// embedder. It plays the role teacher's dialog.Manager plays, generalized
// from "one manager owning every dialog in the process" to "one Session
// owning its own dialog," per spec.md's single-call-leg scope.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/sebas/sipcore/dialog"
	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/media"
)

// Session coordinates one INVITE dialog's lifecycle end to end. All
// public methods are safe to call from any goroutine; internally they
// are serialized onto the Media Negotiation Queue (for anything that
// touches offer/answer state) or guarded by mu (for status and
// bookkeeping), matching the single-threaded cooperative model: a
// Session never runs two negotiation steps concurrently, and every
// suspension point (awaiting a response, awaiting the media engine) is
// explicit.
type Session struct {
	ua *UA

	id         string
	originator string // "local" or "remote"

	mu     sync.Mutex
	status Status
	fsm    *fsm.FSM
	cause  Cause

	dialogs *dialog.Registry
	queue   *media.Queue
	bus     *events.Bus
	pc      media.PeerConnection

	dtmf *dtmfQueue

	cancelLatch chan struct{}
	closeOnce   sync.Once
}

// Options configures session construction beyond the UA handle.
type Options struct {
	// PeerConnection is the media engine this Session drives through the
	// Media Negotiation Queue. May be nil for signaling-only test
	// doubles that never call Connect/Answer.
	PeerConnection media.PeerConnection
}

// New constructs a Session in the NULL status, grounded on teacher's
// dialog.Manager taking a sipClient/dialogUA pair at construction and
// exposing per-call operations afterward — generalized here to one
// Session per call instead of one Manager per process.
func New(ua *UA, opts Options) *Session {
	s := &Session{
		ua:          ua,
		id:          uuid.New().String(),
		status:      StatusNull,
		dialogs:     dialog.NewRegistry(),
		queue:       media.NewQueue(),
		bus:         events.NewBus(),
		pc:          opts.PeerConnection,
		cancelLatch: make(chan struct{}),
	}
	s.dtmf = newDTMFQueue(s)
	s.fsm = newStatusFSM(StatusNull, s.onStatusChange)
	s.emit(events.NewRTCSession, &events.NewRTCSessionEvent{Base: s.base()})
	return s
}

// ID is the Session's own identifier (not a SIP header value).
func (s *Session) ID() string { return s.id }

// DialogCallID returns the SIP Call-ID of the active dialog, or "" if
// the Session has not yet created one (before Connect/Answer runs).
func (s *Session) DialogCallID() string { return s.callID() }

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// On registers an event handler; see the events package for the full
// event surface.
func (s *Session) On(name events.Name, h events.Handler) (unsubscribe func()) {
	return s.bus.On(name, h)
}

func (s *Session) emit(name events.Name, evt any) {
	s.bus.Emit(name, evt)
}

func (s *Session) base() events.Base {
	return events.NewBase(s.callID())
}

func (s *Session) callID() string {
	if d := s.dialogs.Active(); d != nil {
		return d.CallID
	}
	return ""
}

func (s *Session) logger() *slog.Logger {
	return s.ua.logger()
}

func (s *Session) config() *Config {
	return s.ua.config()
}

// onStatusChange is the looplab/fsm enter_state callback; it updates the
// cached status under mu and fires the terminal-state cleanup exactly
// once.
func (s *Session) onStatusChange(from, to Status) {
	s.mu.Lock()
	s.status = to
	s.mu.Unlock()

	s.logger().Debug("session status change", "session_id", s.id, "from", from, "to", to)

	if to.IsTerminal() {
		s.closeOnce.Do(func() {
			close(s.cancelLatch)
			s.dialogs.Clear()
			s.queue.Close()
		})
	}
}

// transition drives the status FSM and translates a rejected transition
// into ErrInvalidState, the sentinel public callers see.
func (s *Session) transition(event string) error {
	if err := fire(s.fsm, event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}

// canceled reports whether the Session's cancellation latch has been
// tripped — the single-shot signal every suspension point selects on
// alongside its own completion channel, per the concurrency model's
// cancellation contract.
func (s *Session) canceled() <-chan struct{} { return s.cancelLatch }

// withRequestContext derives a context that is also canceled if the
// Session reaches a terminal status while the caller is waiting.
func (s *Session) withRequestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	child, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.canceled():
			cancel()
		case <-child.Done():
		}
	}()
	return child, cancel
}

// activeDialog returns the confirmed dialog or ErrNoDialog.
func (s *Session) activeDialog() (*dialog.Dialog, error) {
	d := s.dialogs.Confirmed()
	if d == nil {
		return nil, ErrNoDialog
	}
	return d, nil
}

// SendRequest proxies an arbitrary in-dialog request (INFO, REFER,
// MESSAGE, ...) to the confirmed dialog, per spec.md §4.1. It does not
// go through the Media Negotiation Queue since it carries no SDP.
func (s *Session) SendRequest(ctx context.Context, method sip.RequestMethod, body []byte, contentType string, headers map[string]string) (*sip.Response, error) {
	d, err := s.activeDialog()
	if err != nil {
		return nil, err
	}

	req, err := d.BuildInDialogRequest(method, s.ua.Contact, body, contentType, headers)
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
		case <-s.canceled():
			return nil, ErrTerminated
		case resp := <-tx.Responses():
			if resp == nil {
				return nil, fmt.Errorf("session: %s transaction terminated without response", method)
			}
			if resp.StatusCode < 200 {
				continue
			}
			return resp, nil
		}
	}
}

// SendInfo sends an application/* body via INFO within the confirmed
// dialog.
func (s *Session) SendInfo(ctx context.Context, contentType string, body []byte) error {
	resp, err := s.SendRequest(ctx, sip.INFO, body, contentType, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("session: INFO rejected: %d %s", resp.StatusCode, resp.Reason)
	}
	return nil
}

func requestRef(req *sip.Request) *events.RequestRef {
	ref := &events.RequestRef{Method: string(req.Method)}
	if cid := req.CallID(); cid != nil {
		ref.CallID = cid.String()
	}
	return ref
}

func responseRef(resp *sip.Response) *events.RequestRef {
	ref := &events.RequestRef{StatusCode: resp.StatusCode}
	if cid := resp.CallID(); cid != nil {
		ref.CallID = cid.String()
	}
	return ref
}
