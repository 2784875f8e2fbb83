// Package dialog implements the Dialog Registry: the RFC 3261 §12 dialog
// identifiers and in-dialog request construction a Session needs once an
// INVITE has produced early or confirmed dialog state.
package dialog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo/sip"
)

// Role distinguishes which side of the dialog this process plays. A
// Session is exactly one of these for the lifetime of a given Dialog.
type Role int

const (
	RoleUAS Role = iota // we received the INVITE
	RoleUAC             // we sent the INVITE
)

func (r Role) String() string {
	if r == RoleUAC {
		return "uac"
	}
	return "uas"
}

// Dialog holds the RFC 3261 §12.1.1 dialog identifiers plus the bits of
// the original INVITE transaction needed to build later in-dialog
// requests (BYE, re-INVITE, UPDATE, INFO, REFER, ...).
type Dialog struct {
	CallID    string
	LocalTag  string
	RemoteTag string
	Role      Role

	CreatedAt time.Time

	// InviteRequest/InviteResponse anchor From/To/Route/Contact
	// construction for every later in-dialog request, the same way
	// teacher's Dialog.BuildBYE/BuildReINVITE derive headers from them.
	InviteRequest  *sip.Request
	InviteResponse *sip.Response

	// RemoteTarget is the Request-URI used for in-dialog requests: the
	// peer's Contact from the INVITE (UAS) or the 200 OK (UAC).
	RemoteTarget sip.Uri

	localSeq atomic.Uint32

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUAS builds a Dialog from an inbound INVITE request. Early-dialog
// fields (RemoteTag's confirmation, LocalTag) are filled in once a
// response carrying our own tag is sent; see SetLocalTag.
func NewUAS(req *sip.Request) *Dialog {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dialog{
		CallID:        callIDOf(req),
		RemoteTag:     tagOfFrom(req.From()),
		Role:          RoleUAS,
		CreatedAt:     time.Now(),
		InviteRequest: req,
		ctx:           ctx,
		cancel:        cancel,
	}
	if cseq := req.CSeq(); cseq != nil {
		d.localSeq.Store(cseq.SeqNo)
	}
	if contact := req.Contact(); contact != nil {
		target := contact.Address
		target.UriParams = sip.NewParams()
		d.RemoteTarget = target
	} else if from := req.From(); from != nil {
		d.RemoteTarget = from.Address
	}
	return d
}

// NewUAC builds a Dialog once a 2xx response to our own INVITE confirms
// the remote party, following teacher's NewOutboundDialog.
func NewUAC(invite *sip.Request, resp *sip.Response) *Dialog {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dialog{
		CallID:         callIDOf(invite),
		LocalTag:       tagOfFrom(invite.From()),
		RemoteTag:      tagOfTo(resp.To()),
		Role:           RoleUAC,
		CreatedAt:      time.Now(),
		InviteRequest:  invite,
		InviteResponse: resp,
		ctx:            ctx,
		cancel:         cancel,
	}
	var seq uint32 = 1
	if cseq := invite.CSeq(); cseq != nil {
		seq = cseq.SeqNo
	}
	d.localSeq.Store(seq)
	if contact := resp.Contact(); contact != nil {
		d.RemoteTarget = contact.Address
	} else if to := invite.To(); to != nil {
		d.RemoteTarget = to.Address
	}
	return d
}

// SetLocalTag records the tag we placed on our side of the dialog (the To
// tag we generated on a 2xx/18x response, for a UAS dialog).
func (d *Dialog) SetLocalTag(tag string) {
	d.LocalTag = tag
}

// SetInviteResponse stores the final response, extracting our own tag
// from it if we are the UAS (the To-tag we generated).
func (d *Dialog) SetInviteResponse(resp *sip.Response) {
	d.InviteResponse = resp
	if d.Role == RoleUAS {
		if to := resp.To(); to != nil {
			if tag, ok := to.Params.Get("tag"); ok {
				d.LocalTag = tag
			}
		}
	}
}

// Context is canceled when the dialog is torn down, bounding any
// in-flight suspension point tied to this dialog's lifetime.
func (d *Dialog) Context() context.Context { return d.ctx }

// Close tears the dialog's context down. Idempotent.
func (d *Dialog) Close() { d.cancel() }

// nextSeq returns the next local CSeq number to place on an in-dialog
// request we originate.
func (d *Dialog) nextSeq() uint32 { return d.localSeq.Add(1) }

// BuildInDialogRequest constructs a new in-dialog request (BYE, INVITE,
// UPDATE, INFO, REFER, ...) with correctly swapped From/To, an
// incremented CSeq, copied Route headers, and Max-Forwards — the same
// construction teacher's BuildBYE/BuildReINVITE perform, generalized to
// any method so Session.SendRequest can reuse it for arbitrary in-dialog
// traffic instead of duplicating header-swap logic per method.
func (d *Dialog) BuildInDialogRequest(method sip.RequestMethod, localContact sip.Uri, body []byte, contentType string, extraHeaders map[string]string) (*sip.Request, error) {
	if d.InviteRequest == nil {
		return nil, fmt.Errorf("dialog: cannot build %s: missing original INVITE", method)
	}

	req := sip.NewRequest(method, d.RemoteTarget)

	if len(d.InviteRequest.GetHeaders("Route")) > 0 {
		sip.CopyHeaders("Route", d.InviteRequest, req)
	}

	fromHdr, toHdr, err := d.fromTo()
	if err != nil {
		return nil, err
	}
	req.AppendHeader(fromHdr)
	req.AppendHeader(toHdr)

	if callIDHdr := d.InviteRequest.CallID(); callIDHdr != nil {
		req.AppendHeader(callIDHdr)
	}

	req.AppendHeader(&sip.CSeqHeader{SeqNo: d.nextSeq(), MethodName: method})

	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)

	req.AppendHeader(&sip.ContactHeader{Address: localContact})

	for name, value := range extraHeaders {
		req.AppendHeader(sip.NewHeader(name, value))
	}

	if len(body) > 0 {
		req.SetBody(body)
		if contentType == "" {
			contentType = "application/sdp"
		}
		req.AppendHeader(sip.NewHeader("Content-Type", contentType))
	}

	return req, nil
}

// fromTo builds the From/To header pair for an in-dialog request,
// swapped for UAS dialogs the way teacher's BuildBYE does: our identity
// is whichever side of the original exchange carries our own tag.
func (d *Dialog) fromTo() (*sip.FromHeader, *sip.ToHeader, error) {
	if d.Role == RoleUAC {
		from := d.InviteRequest.From()
		if from == nil {
			return nil, nil, fmt.Errorf("dialog: original INVITE has no From header")
		}
		to := d.InviteRequest.To()
		if to == nil {
			return nil, nil, fmt.Errorf("dialog: original INVITE has no To header")
		}
		fromHdr := &sip.FromHeader{DisplayName: from.DisplayName, Address: from.Address, Params: from.Params.Clone()}
		toParams := sip.NewParams()
		if d.RemoteTag != "" {
			toParams.Add("tag", d.RemoteTag)
		}
		toHdr := &sip.ToHeader{DisplayName: to.DisplayName, Address: to.Address, Params: toParams}
		return fromHdr, toHdr, nil
	}

	// UAS: From/To are swapped relative to the original INVITE.
	if d.InviteResponse == nil {
		return nil, nil, fmt.Errorf("dialog: UAS dialog missing its own response, cannot derive local tag")
	}
	to := d.InviteResponse.To()
	if to == nil {
		return nil, nil, fmt.Errorf("dialog: stored response has no To header")
	}
	from := d.InviteRequest.From()
	if from == nil {
		return nil, nil, fmt.Errorf("dialog: original INVITE has no From header")
	}
	fromHdr := &sip.FromHeader{DisplayName: to.DisplayName, Address: to.Address, Params: to.Params.Clone()}
	toHdr := &sip.ToHeader{DisplayName: from.DisplayName, Address: from.Address, Params: from.Params.Clone()}
	return fromHdr, toHdr, nil
}

func callIDOf(req *sip.Request) string {
	if cid := req.CallID(); cid != nil {
		return cid.String()
	}
	return ""
}

func tagOfFrom(h *sip.FromHeader) string {
	if h == nil {
		return ""
	}
	if tag, ok := h.Params.Get("tag"); ok {
		return tag
	}
	return ""
}

func tagOfTo(h *sip.ToHeader) string {
	if h == nil {
		return ""
	}
	if tag, ok := h.Params.Get("tag"); ok {
		return tag
	}
	return ""
}
