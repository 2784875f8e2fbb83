// Package timers implements the Timer Manager: 2xx-to-INVITE
// retransmission (RFC 3261 §13.3.1.4) and RFC 4028 session-timer
// refresh/watchdog. Grounded on teacher's manager.go watchACKTimeout,
// which waits on the same ctx.Done()-vs-time.After(timeout) shape these
// timers are built from — teacher relies on sipgo's transaction layer to
// retransmit the 2xx itself, but the session core sits one layer above
// that external collaborator (spec.md §1) and is asked to provide this
// belt-and-suspenders retransmission explicitly (spec.md §4.4), so it is
// authored fresh against RFC 3261 rather than copied from a file that
// does not do this.
package timers

import (
	"context"
	"time"
)

// Retransmitter drives 2xx retransmission for a UAS awaiting ACK: send
// at T1, double each time up to T2, give up at Timer H.
type Retransmitter struct {
	T1     time.Duration
	T2     time.Duration
	TimerH time.Duration
}

// Run calls send repeatedly with RFC 3261 backoff until ackReceived is
// closed, ctx is canceled, or Timer H elapses (in which case onTimeout is
// called and Run returns). Run blocks; callers run it in its own
// goroutine.
func (r *Retransmitter) Run(ctx context.Context, ackReceived <-chan struct{}, send func(), onTimeout func()) {
	interval := r.T1
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	t2 := r.T2
	if t2 <= 0 {
		t2 = 4 * time.Second
	}
	timerH := r.TimerH
	if timerH <= 0 {
		timerH = 64 * interval
	}

	deadline := time.NewTimer(timerH)
	defer deadline.Stop()
	tick := time.NewTimer(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ackReceived:
			return
		case <-deadline.C:
			onTimeout()
			return
		case <-tick.C:
			send()
			interval *= 2
			if interval > t2 {
				interval = t2
			}
			tick.Reset(interval)
		}
	}
}
