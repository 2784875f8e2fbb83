package session

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Status is the lifecycle state of a Session, per the INVITE dialog usage
// state graph (RFC 3261 §13).
type Status string

const (
	StatusNull            Status = "null"
	StatusInviteSent      Status = "invite_sent"
	Status1xxReceived     Status = "1xx_received"
	StatusInviteReceived  Status = "invite_received"
	StatusWaitingAnswer   Status = "waiting_for_answer"
	StatusAnswered        Status = "answered"
	StatusWaitingForAck   Status = "waiting_for_ack"
	StatusCanceled        Status = "canceled"
	StatusTerminated      Status = "terminated"
	StatusConfirmed       Status = "confirmed"
)

// IsTerminal reports whether status is one of the two terminal states.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusTerminated
}

// Event names driving the status FSM. These are internal to the package;
// callers observe status changes through the Event Bus, not through FSM
// event names.
const (
	evSendInvite    = "send_invite"
	ev1xx           = "provisional"
	evRecvInvite    = "recv_invite"
	evLocalAnswer   = "local_answer"
	evRemoteAnswer  = "remote_answer"
	evSendOK        = "send_ok"
	evAckSent       = "ack_sent"
	evAckReceived   = "ack_received"
	evCancel        = "cancel"
	evTerminate     = "terminate"
)

// newStatusFSM builds the transition graph for a Session's status. The
// graph is intentionally asymmetric between UAC and UAS legs: both share
// the same Status vocabulary but reach CONFIRMED along different edges.
func newStatusFSM(initial Status, onChange func(from, to Status)) *fsm.FSM {
	return fsm.NewFSM(
		string(initial),
		fsm.Events{
			// UAC: we send the INVITE.
			{Name: evSendInvite, Src: []string{string(StatusNull)}, Dst: string(StatusInviteSent)},
			{Name: ev1xx, Src: []string{string(StatusInviteSent), string(Status1xxReceived)}, Dst: string(Status1xxReceived)},
			{Name: evRemoteAnswer, Src: []string{string(StatusInviteSent), string(Status1xxReceived)}, Dst: string(StatusAnswered)},

			// UAS: we receive the INVITE.
			{Name: evRecvInvite, Src: []string{string(StatusNull)}, Dst: string(StatusInviteReceived)},
			{Name: evLocalAnswer, Src: []string{string(StatusInviteReceived)}, Dst: string(StatusWaitingAnswer)},
			{Name: evSendOK, Src: []string{string(StatusWaitingAnswer), string(StatusInviteReceived)}, Dst: string(StatusWaitingForAck)},
			{Name: evAckReceived, Src: []string{string(StatusWaitingForAck)}, Dst: string(StatusConfirmed)},

			// UAC: we receive 200 OK and must send ACK.
			{Name: evAckSent, Src: []string{string(StatusAnswered)}, Dst: string(StatusConfirmed)},

			// Cancellation can happen from any non-terminal, non-confirmed
			// state except ANSWERED (a 2xx to our INVITE has already arrived).
			{Name: evCancel, Src: []string{
				string(StatusNull), string(StatusInviteSent), string(Status1xxReceived),
				string(StatusInviteReceived), string(StatusWaitingAnswer), string(StatusWaitingForAck),
			}, Dst: string(StatusCanceled)},

			// Termination can happen from any non-terminal state including CONFIRMED.
			{Name: evTerminate, Src: []string{
				string(StatusNull), string(StatusInviteSent), string(Status1xxReceived),
				string(StatusInviteReceived), string(StatusWaitingAnswer), string(StatusAnswered),
				string(StatusWaitingForAck), string(StatusConfirmed),
			}, Dst: string(StatusTerminated)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onChange != nil {
					onChange(Status(e.Src), Status(e.Dst))
				}
			},
		},
	)
}

// fire drives the FSM with a background context, translating looplab/fsm's
// generic error into ErrInvalidTransition where it rejects the event.
func fire(f *fsm.FSM, event string) error {
	if err := f.FireCtx(context.Background(), event); err != nil {
		if _, ok := err.(fsm.InvalidEventError); ok {
			return &ErrInvalidTransition{From: Status(f.Current()), Event: event}
		}
		if _, ok := err.(fsm.CanceledError); ok {
			return &ErrInvalidTransition{From: Status(f.Current()), Event: event}
		}
		if _, ok := err.(fsm.NoTransitionError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ErrInvalidTransition is returned when a status change is attempted that
// the graph above does not allow.
type ErrInvalidTransition struct {
	From  Status
	Event string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session: invalid transition %q from status %q", e.Event, e.From)
}
