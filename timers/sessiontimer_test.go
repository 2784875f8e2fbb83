package timers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionTimer_RefresherFiresAtHalfExpires(t *testing.T) {
	st := &SessionTimer{Expires: 100 * time.Millisecond, Role: RoleRefresher}
	start := time.Now()
	fired := make(chan struct{})

	go st.Run(context.Background(), nil, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("refresher never fired")
	}
	elapsed := time.Since(start)
	assert.LessOrEqual(t, elapsed, 80*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestSessionTimer_NonRefresherFiresAt1_1xExpires(t *testing.T) {
	st := &SessionTimer{Expires: 100 * time.Millisecond, Role: RoleNonRefresher}
	start := time.Now()
	fired := make(chan struct{})

	go st.Run(context.Background(), nil, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog never fired")
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestSessionTimer_StopPreventsFire(t *testing.T) {
	st := &SessionTimer{Expires: 50 * time.Millisecond, Role: RoleRefresher}
	stop := make(chan struct{})
	fired := make(chan struct{})

	done := make(chan struct{})
	go func() {
		st.Run(context.Background(), stop, func() { close(fired) })
		close(done)
	}()

	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop")
	}
	select {
	case <-fired:
		t.Error("onFire should not have been called")
	default:
	}
}

func TestSessionTimer_ZeroExpiresReturnsImmediately(t *testing.T) {
	st := &SessionTimer{Expires: 0, Role: RoleRefresher}
	done := make(chan struct{})
	go func() {
		st.Run(context.Background(), nil, func() { t.Error("should not fire") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately for zero Expires")
	}
}
