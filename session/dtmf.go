package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sebas/sipcore/events"
)

// validDTMFTones are the characters RFC 2833/application-dtmf-relay
// recognize. SendDTMF also accepts ',', checked separately, which this
// queue treats as a pause rather than a tone to send.
const validDTMFTones = "0123456789*#ABCDabcd"

// dtmfQueue serializes outgoing DTMF tones for one Session: each tone is
// sent as its own INFO request, waiting the configured inter-tone gap
// between tones and the configured pause on a comma, so a caller can
// queue an entire dial string (e.g. "1,,234#") with one call.
type dtmfQueue struct {
	s       *Session
	pending chan dtmfJob
	startOnce sync.Once
}

type dtmfJob struct {
	tone     string
	duration time.Duration
	result   chan error
}

func newDTMFQueue(s *Session) *dtmfQueue {
	return &dtmfQueue{s: s, pending: make(chan dtmfJob, 256)}
}

func (q *dtmfQueue) ensureStarted() {
	q.startOnce.Do(func() { go q.run() })
}

func (q *dtmfQueue) run() {
	cfg := q.s.config()
	for job := range q.pending {
		if job.tone == "," {
			select {
			case <-time.After(cfg.DTMFCommaPause):
			case <-q.s.canceled():
				job.result <- ErrTerminated
				continue
			}
			job.result <- nil
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		body := dtmfRelayBody(job.tone, job.duration)
		err := q.s.SendInfo(ctx, "application/dtmf-relay", []byte(body))
		cancel()
		job.result <- err

		select {
		case <-time.After(cfg.DTMFInterToneGap):
		case <-q.s.canceled():
		}
	}
}

// SendDTMF enqueues a dial string (digits, A-D, '#', '*', and ',' for a
// pause) to be relayed one tone at a time. duration of 0 uses the
// configured default, clamped to [MinDuration, MaxDuration].
func (s *Session) SendDTMF(ctx context.Context, tones string, duration time.Duration) error {
	if s.Status() != StatusConfirmed {
		return ErrInvalidState
	}
	cfg := s.config()
	if duration <= 0 {
		duration = cfg.DTMFDefaultDuration
	}
	if duration < cfg.DTMFMinDuration {
		duration = cfg.DTMFMinDuration
	}
	if duration > cfg.DTMFMaxDuration {
		duration = cfg.DTMFMaxDuration
	}

	for _, r := range tones {
		if r != ',' && !strings.ContainsRune(validDTMFTones, r) {
			return fmt.Errorf("%w: %q", ErrInvalidDTMFTone, r)
		}
	}

	s.dtmf.ensureStarted()

	for _, r := range tones {
		if len(s.dtmf.pending) >= s.config().DTMFMaxQueueLength {
			return ErrDTMFQueueFull
		}
		job := dtmfJob{tone: string(r), duration: duration, result: make(chan error, 1)}
		select {
		case s.dtmf.pending <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case err := <-job.result:
			if err != nil {
				return err
			}
			s.emit(events.NewDTMF, &events.NewDTMFEvent{Base: s.base(), Tone: job.tone, Duration: duration})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func dtmfRelayBody(tone string, duration time.Duration) string {
	return fmt.Sprintf("Signal=%s\r\nDuration=%d\r\n", tone, duration.Milliseconds())
}

// parseDTMFRelayBody extracts the Signal= value from an inbound
// application/dtmf-relay body.
func parseDTMFRelayBody(body []byte) (string, bool) {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "Signal="); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
