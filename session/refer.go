package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/emiago/sipgo/sip"

	"github.com/sebas/sipcore/events"
)

// ReferOptions configures an attended or blind transfer.
type ReferOptions struct {
	// ReplacesCallID, if set, makes this an attended transfer
	// (RFC 3891 Replaces) targeting another dialog's Call-ID/tags.
	ReplacesCallID  string
	ReplacesToTag   string
	ReplacesFromTag string
}

// Refer sends a REFER within the confirmed dialog asking the peer to
// place a new call to target. This is not session management of other
// sessions (an explicit Non-goal): the REFER itself is just another
// in-dialog request on this Session's own confirmed dialog, sequenced
// through SendRequest like INFO is.
func (s *Session) Refer(ctx context.Context, target sip.Uri, opts ReferOptions) error {
	referTo := target.String()
	if opts.ReplacesCallID != "" {
		replaces := fmt.Sprintf("%s;to-tag=%s;from-tag=%s", opts.ReplacesCallID, opts.ReplacesToTag, opts.ReplacesFromTag)
		referTo = fmt.Sprintf("%s?Replaces=%s", referTo, urlEncode(replaces))
	}

	resp, err := s.SendRequest(ctx, sip.REFER, nil, "", map[string]string{
		"Refer-To":    referTo,
		"Referred-By": s.ua.Contact.String(),
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("session: REFER rejected: %d %s", resp.StatusCode, resp.Reason)
	}
	return nil
}

// handleReferNotify parses a NOTIFY carrying Event: refer and a sipfrag
// body, surfacing the transfer's progress as a referNotify event.
func (s *Session) handleReferNotify(req *sip.Request) {
	event := req.GetHeader("Event")
	if event == nil || !strings.HasPrefix(strings.ToLower(event.Value()), "refer") {
		return
	}
	statusCode, final := parseSipfrag(req.Body())
	s.emit(events.ReferNotify, &events.ReferNotifyEvent{Base: s.base(), StatusCode: statusCode, Final: final})
}

// parseSipfrag extracts the status code out of a message/sipfrag NOTIFY
// body, e.g. "SIP/2.0 200 OK".
func parseSipfrag(body []byte) (statusCode int, final bool) {
	fields := strings.Fields(string(body))
	for i, f := range fields {
		if i > 0 && strings.HasPrefix(fields[i-1], "SIP/") {
			if code, err := strconv.Atoi(f); err == nil {
				return code, code >= 200
			}
		}
	}
	return 0, false
}

func urlEncode(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ';' || r == '=' || r == '?' || r == '&' || r == ' ':
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
