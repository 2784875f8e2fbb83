package dialog

import "sync"

// Registry tracks the (at most one early, then at most one confirmed)
// Dialog belonging to a single Session. It is the per-session analogue of
// teacher's process-global TTLStore: a Session only ever owns O(1)
// dialogs (the early dialog created on a provisional response or by Answer, and
// the confirmed dialog it is promoted to), so a bounded map with explicit
// promote/clear replaces the TTL-sweep machinery a shared store needs.
type Registry struct {
	mu        sync.RWMutex
	early     *Dialog
	confirmed *Dialog
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetEarly records the early dialog created once a provisional response
// (or, for a UAS, the first call to Answer) is produced.
func (r *Registry) SetEarly(d *Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.early = d
}

// Early returns the current early dialog, if any.
func (r *Registry) Early() *Dialog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.early
}

// Promote moves the early dialog to confirmed status once an ACK (UAS) or
// our own ACK-send (UAC) completes the three-way handshake. The early
// slot is always emptied, so Promote(nil) leaves both slots empty.
func (r *Registry) Promote(d *Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = d
	r.early = nil
}

// Confirmed returns the confirmed dialog, or nil if the Session never
// reached CONFIRMED (or has since terminated and been cleared).
func (r *Registry) Confirmed() *Dialog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.confirmed
}

// Active returns the confirmed dialog if one exists, otherwise the early
// dialog — the dialog a caller should address in-dialog requests to at
// the current point in the Session's lifecycle.
func (r *Registry) Active() *Dialog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.confirmed != nil {
		return r.confirmed
	}
	return r.early
}

// Clear closes and forgets both dialogs, called when the Session reaches
// a terminal status.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.early != nil {
		r.early.Close()
		r.early = nil
	}
	if r.confirmed != nil {
		r.confirmed.Close()
		r.confirmed = nil
	}
}
