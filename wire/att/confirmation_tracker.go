package att

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTransactionTimeout is the ATT transaction timeout (Vol 3, Part F, 3.3.3).
// A server whose indication is not confirmed in time must not send further
// ATT PDUs on the bearer.
const DefaultTransactionTimeout = 30 * time.Second

// ConfirmationTracker watches the indications a server has unconfirmed on a
// bearer and reports when one of them times out. It holds one indication
// unless SetCapacity allows more; confirmations complete them oldest first.
type ConfirmationTracker struct {
	mu              sync.Mutex
	pending         []*PendingIndication // oldest first
	capacity        int
	timeout         time.Duration
	timeoutCallback func(handle uint16, slot int)
	generation      uint64
}

// PendingIndication represents an indication awaiting a Handle Value Confirmation
type PendingIndication struct {
	Handle uint16 // Characteristic value handle
	Slot   int    // Notification queue slot
	SentAt time.Time

	timer      *time.Timer
	generation uint64
}

// NewConfirmationTracker creates a tracker; a zero timeout selects DefaultTransactionTimeout
func NewConfirmationTracker(timeout time.Duration) *ConfirmationTracker {
	if timeout == 0 {
		timeout = DefaultTransactionTimeout
	}
	return &ConfirmationTracker{
		capacity: 1,
		timeout:  timeout,
	}
}

// SetCapacity sets how many indications may be unconfirmed at once (minimum 1)
func (ct *ConfirmationTracker) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.capacity = n
}

// SetTimeoutCallback sets a callback to be invoked when a confirmation times out.
// The callback runs on the timer goroutine without the tracker lock held.
func (ct *ConfirmationTracker) SetTimeoutCallback(cb func(handle uint16, slot int)) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.timeoutCallback = cb
}

// Start registers an indication that was just sent.
// Returns error if the tracker is full or the slot already awaits a confirmation.
func (ct *ConfirmationTracker) Start(handle uint16, slot int) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	for _, p := range ct.pending {
		if p.Slot == slot {
			return fmt.Errorf("att: indication of slot %d on handle 0x%04X still awaiting confirmation", slot, p.Handle)
		}
	}
	if len(ct.pending) >= ct.capacity {
		return fmt.Errorf("att: indication on handle 0x%04X still awaiting confirmation", ct.pending[0].Handle)
	}

	ct.generation++
	gen := ct.generation
	p := &PendingIndication{
		Handle:     handle,
		Slot:       slot,
		SentAt:     time.Now(),
		generation: gen,
	}
	p.timer = time.AfterFunc(ct.timeout, func() {
		ct.expire(gen)
	})
	ct.pending = append(ct.pending, p)

	return nil
}

// expire fires the timeout callback if the indication of generation gen is still pending
func (ct *ConfirmationTracker) expire(gen uint64) {
	ct.mu.Lock()
	for i, p := range ct.pending {
		if p.generation != gen {
			continue
		}
		ct.pending = append(ct.pending[:i], ct.pending[i+1:]...)
		cb := ct.timeoutCallback
		ct.mu.Unlock()

		if cb != nil {
			cb(p.Handle, p.Slot)
		}
		return
	}
	ct.mu.Unlock()
}

// Confirm completes the oldest pending indication.
// Returns the confirmed handle, slot and the round-trip latency.
func (ct *ConfirmationTracker) Confirm() (handle uint16, slot int, latency time.Duration, err error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if len(ct.pending) == 0 {
		return 0, 0, 0, fmt.Errorf("att: confirmation without pending indication")
	}

	p := ct.pending[0]
	p.timer.Stop()
	ct.pending = ct.pending[1:]

	return p.Handle, p.Slot, time.Since(p.SentAt), nil
}

// HasPending returns true if an indication awaits confirmation
func (ct *ConfirmationTracker) HasPending() bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.pending) > 0
}

// Count returns the number of unconfirmed indications
func (ct *ConfirmationTracker) Count() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.pending)
}

// GetPendingInfo returns info about the oldest pending indication (for debugging)
func (ct *ConfirmationTracker) GetPendingInfo() (handle uint16, slot int, waited time.Duration, hasPending bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if len(ct.pending) == 0 {
		return 0, 0, 0, false
	}
	p := ct.pending[0]
	return p.Handle, p.Slot, time.Since(p.SentAt), true
}

// Cancel drops every pending indication without invoking the callback (used during disconnection)
func (ct *ConfirmationTracker) Cancel() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	for _, p := range ct.pending {
		p.timer.Stop()
	}
	ct.pending = nil
}
