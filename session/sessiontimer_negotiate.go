package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"
)

// sessionExpiresOf reads the RFC 4028 Session-Expires header off req,
// falling back to the configured default when absent or malformed. The
// refresher parameter (";refresher=uac" / ";refresher=uas") is ignored
// here: this Session always takes the non-refresher (watchdog) role for
// a peer-initiated refresh, since the peer that sent the request is the
// one asserting it will refresh.
func sessionExpiresOf(req *sip.Request, cfg *Config) time.Duration {
	h := req.GetHeader("Session-Expires")
	if h == nil {
		return time.Duration(cfg.DefaultSessionExpires) * time.Second
	}
	seconds := parseSessionExpiresSeconds(h.Value())
	if seconds <= 0 {
		return time.Duration(cfg.DefaultSessionExpires) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// sessionExpiresOfResponse mirrors sessionExpiresOf for a 2xx response to
// our own INVITE: the UAS may have lowered the interval we proposed.
func sessionExpiresOfResponse(resp *sip.Response, cfg *Config) time.Duration {
	h := resp.GetHeader("Session-Expires")
	if h == nil {
		return time.Duration(cfg.DefaultSessionExpires) * time.Second
	}
	seconds := parseSessionExpiresSeconds(h.Value())
	if seconds <= 0 {
		return time.Duration(cfg.DefaultSessionExpires) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// parseSessionExpiresSeconds extracts the leading integer out of a
// Session-Expires value such as "1800;refresher=uac".
func parseSessionExpiresSeconds(value string) int {
	field, _, _ := strings.Cut(value, ";")
	field = strings.TrimSpace(field)
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0
	}
	return n
}
