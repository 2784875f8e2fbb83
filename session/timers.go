package session

import (
	"context"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/sipcore/dialog"
	"github.com/sebas/sipcore/events"
	"github.com/sebas/sipcore/timers"
)

// watchForAck retransmits resp (the 200 OK we just sent) per RFC 3261
// §13.3.1.4 until ACK arrives, ctx is done, or Timer H elapses — at
// which point the Session terminates with cause NO_ACK and fires "ended"
// (originator remote). No BYE is sent.
func (s *Session) watchForAck(ctx context.Context, resend func()) {
	cfg := s.config()
	r := &timers.Retransmitter{T1: cfg.T1, T2: cfg.T2, TimerH: cfg.TimerH}

	ackCh := make(chan struct{})
	unsubscribe := s.On(events.AckReceived, func(_ any) { close(ackCh) })
	_ = unsubscribe

	go r.Run(ctx, ackCh, resend, func() {
		s.mu.Lock()
		s.cause = CauseNoAck
		s.mu.Unlock()
		if err := s.transition(evTerminate); err == nil {
			s.emit(events.Ended, &events.EndedEvent{Base: s.base(), Originator: "remote", Cause: string(CauseNoAck)})
		}
	})
}

// startSessionTimer begins the RFC 4028 refresh/watchdog cycle once the
// Session reaches CONFIRMED, provided session timers are enabled and
// expires is positive. Callers pass the configured default interval when
// the peer sent no usable Session-Expires, so the timer runs whether or
// not an interval was negotiated.
func (s *Session) startSessionTimer(expires time.Duration, role timers.Role) {
	cfg := s.config()
	if !cfg.SessionTimersEnabled || expires <= 0 {
		return
	}
	st := &timers.SessionTimer{Expires: expires, Role: role}
	go st.Run(context.Background(), s.canceled(), func() {
		if role == timers.RoleRefresher {
			s.refreshSession(expires)
		} else {
			// Watchdog fired: the refresher never sent a refresh in time.
			s.mu.Lock()
			s.cause = CauseRequestTimeout
			s.mu.Unlock()
			if err := s.transition(evTerminate); err == nil {
				s.emit(events.Ended, &events.EndedEvent{Base: s.base(), Originator: "local", Cause: string(CauseRequestTimeout)})
			}
		}
	})
}

// refreshSession sends the configured refresh method (UPDATE or
// re-INVITE) and, on success, restarts the timer for the next interval.
func (s *Session) refreshSession(expires time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	method := s.config().SessionTimersRefreshMethod
	useUpdate := method == RefreshMethodUpdate
	if method == RefreshMethodAuto {
		if d, err := s.activeDialog(); err == nil {
			var allow sip.Header
			if d.Role == dialog.RoleUAC && d.InviteResponse != nil {
				allow = d.InviteResponse.GetHeader("Allow")
			} else if d.Role == dialog.RoleUAS && d.InviteRequest != nil {
				allow = d.InviteRequest.GetHeader("Allow")
			}
			useUpdate = allow != nil && strings.Contains(strings.ToUpper(allow.Value()), "UPDATE")
		}
	}
	if err := s.Renegotiate(ctx, RenegotiateOptions{UseUpdate: useUpdate}); err != nil {
		s.logger().Warn("session: session-timer refresh failed", "error", err)
		return
	}
	s.startSessionTimer(expires, timers.RoleRefresher)
}
