package session

import (
	"log/slog"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
)

// RefreshMethod selects which request an RFC 4028 session-timer refresh
// uses when the Session itself is the refresher.
type RefreshMethod string

const (
	RefreshMethodAuto   RefreshMethod = "auto"
	RefreshMethodInvite RefreshMethod = "invite"
	RefreshMethodUpdate RefreshMethod = "update"
)

// Config holds the timing and policy knobs a Session is built with. Unlike
// a standalone service's configuration, these are not read from flags or
// environment variables: the embedding application owns process-level
// configuration and passes a Config value in, the way a library is wired
// rather than launched.
type Config struct {
	// T1 is the RFC 3261 round-trip time estimate. Retransmit intervals
	// and Timer H are derived from it unless overridden below.
	T1 time.Duration
	// T2 caps the retransmit interval for non-INVITE and 2xx-to-INVITE
	// retransmissions.
	T2 time.Duration
	// TimerH bounds how long a UAS keeps retransmitting a 2xx response
	// before giving up on ever seeing an ACK.
	TimerH time.Duration

	// SessionTimersEnabled turns on RFC 4028 Session-Expires handling.
	SessionTimersEnabled bool
	// SessionTimersRefreshMethod picks INVITE or UPDATE as the refresh
	// request when this Session acts as the refresher. RefreshMethodAuto
	// prefers UPDATE when the peer has advertised support for it.
	SessionTimersRefreshMethod RefreshMethod
	// MinSessionExpires is the floor we ever accept or offer (RFC 4028
	// Min-SE), in seconds.
	MinSessionExpires int
	// DefaultSessionExpires is proposed on outgoing INVITEs/UPDATEs when
	// the caller does not specify one, in seconds.
	DefaultSessionExpires int

	// DTMF tone timing (RFC 2976 INFO-based relay).
	DTMFMinDuration    time.Duration
	DTMFMaxDuration    time.Duration
	DTMFDefaultDuration time.Duration
	DTMFInterToneGap   time.Duration
	DTMFCommaPause     time.Duration
	// DTMFMaxQueueLength bounds how many pending tones SendDTMF will
	// accept before returning ErrDTMFQueueFull.
	DTMFMaxQueueLength int

	// Anonymous governs whether Connect defaults to anonymous calling
	// (RFC 3323/3325) when ConnectOptions.Anonymous is left unset.
	Anonymous bool
}

// DefaultConfig returns the RFC-mandated defaults.
func DefaultConfig() *Config {
	t1 := 500 * time.Millisecond
	return &Config{
		T1:                         t1,
		T2:                         4 * time.Second,
		TimerH:                     64 * t1,
		SessionTimersEnabled:       true,
		SessionTimersRefreshMethod: RefreshMethodAuto,
		MinSessionExpires:          90,
		DefaultSessionExpires:      1800,
		DTMFMinDuration:            100 * time.Millisecond,
		DTMFMaxDuration:            6000 * time.Millisecond,
		DTMFDefaultDuration:        100 * time.Millisecond,
		DTMFInterToneGap:           70 * time.Millisecond,
		DTMFCommaPause:             2 * time.Second,
		DTMFMaxQueueLength:         32,
	}
}

// UA is the minimal handle a Session is constructed with: identity,
// transport/transaction access, and ambient concerns (config, logging).
// It plays the role teacher's dialog.Manager's sipClient/dialogUA fields
// play, generalized from "one manager, many dialogs" to "one handle,
// shared by many Sessions."
type UA struct {
	Contact sip.Uri
	Client  *sipgo.Client
	Dialog  *sipgo.DialogUA

	Config *Config
	Logger *slog.Logger
}

func (u *UA) logger() *slog.Logger {
	if u == nil || u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

func (u *UA) config() *Config {
	if u == nil || u.Config == nil {
		return DefaultConfig()
	}
	return u.Config
}
