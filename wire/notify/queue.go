// Package notify tracks which characteristics of one connection have
// notifications or indications pending and decides which one goes out next.
//
// Slots are grouped into priority tiers. Dequeue always drains the highest
// priority tier first and serves the slots of a tier round robin. An
// indication that was handed out closes the confirmation gate until the
// peer's Handle Value Confirmation arrives.
//
// Storage is allocated once by New; no operation allocates. Queue does no
// locking: producers (QueueNotification, QueueIndication) and consumers
// (DequeueIndicationOrConfirmation, IndicationConfirmed) must be serialized
// by the caller, or use SyncQueue.
package notify

import "fmt"

// Kind identifies what DequeueIndicationOrConfirmation handed out
type Kind uint8

const (
	Empty        Kind = iota // nothing pending
	Notification             // send a Handle Value Notification
	Indication               // send a Handle Value Indication and await confirmation
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Notification:
		return "notification"
	case Indication:
		return "indication"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ConfirmationScope selects how far one unconfirmed indication blocks others
type ConfirmationScope int

const (
	// ScopeConnection allows one unconfirmed indication per queue, which is
	// what ATT requires of a single bearer.
	ScopeConnection ConfirmationScope = iota
	// ScopeTier gives every tier its own confirmation gate, so one
	// indication per tier may be unconfirmed at the same time.
	ScopeTier
)

func (s ConfirmationScope) String() string {
	switch s {
	case ScopeConnection:
		return "connection"
	case ScopeTier:
		return "tier"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope converts "connection" or "tier" to a ConfirmationScope
func ParseScope(s string) (ConfirmationScope, error) {
	switch s {
	case "", "connection":
		return ScopeConnection, nil
	case "tier":
		return ScopeTier, nil
	default:
		return ScopeConnection, fmt.Errorf("notify: unknown confirmation scope %q", s)
	}
}

// Option configures a Queue
type Option func(*Queue)

// WithConfirmationScope sets the confirmation gate scope (default ScopeConnection)
func WithConfirmationScope(scope ConfirmationScope) Option {
	return func(q *Queue) {
		q.scope = scope
	}
}

// SlotState describes the pending work of one slot
type SlotState struct {
	Notification         bool // notification queued
	Indication           bool // indication queued, not yet sent
	AwaitingConfirmation bool // indication sent, confirmation outstanding
}

// IsEmpty returns true if nothing is pending or outstanding for the slot
func (s SlotState) IsEmpty() bool {
	return !s.Notification && !s.Indication && !s.AwaitingConfirmation
}

// Queue is the notification/indication queue of one connection
type Queue struct {
	tiers chain
	scope ConfirmationScope

	// global index of the last indication handed out, or noConfirmation
	outstanding int
}

// New creates an empty queue. sizes lists the number of slots per tier,
// highest priority first; slot indices are assigned tier after tier.
// Zero sizes are skipped, negative sizes panic.
func New(sizes []int, opts ...Option) *Queue {
	q := &Queue{
		tiers:       newChain(sizes),
		scope:       ScopeConnection,
		outstanding: noConfirmation,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Len returns the number of slots
func (q *Queue) Len() int {
	return q.tiers.size
}

// TierCount returns the number of non-empty tiers
func (q *Queue) TierCount() int {
	return len(q.tiers.tiers)
}

// TierOf returns the priority position of the tier owning index (0 = highest)
func (q *Queue) TierOf(index int) int {
	k, _ := q.tiers.route(index)
	return k
}

// Scope returns the configured confirmation scope
func (q *Queue) Scope() ConfirmationScope {
	return q.scope
}

// QueueNotification marks slot index for notification.
// It returns true if the slot was not already queued for notification.
// Panics if index is out of range.
func (q *Queue) QueueNotification(index int) bool {
	return q.tiers.queueNotification(index)
}

// QueueIndication marks slot index for indication.
// It returns false without side effects if the slot is already queued for
// indication or its previous indication is still awaiting confirmation.
// Panics if index is out of range.
func (q *Queue) QueueIndication(index int) bool {
	return q.tiers.queueIndication(index)
}

// IndicationConfirmed is called when a Handle Value Confirmation arrives.
// Without an outstanding indication it has no effect.
func (q *Queue) IndicationConfirmed() {
	q.outstanding = noConfirmation
	q.tiers.indicationConfirmed()
}

// ReleaseConfirmation closes the outstanding indication of slot index only,
// leaving the gates of other tiers alone. It returns false if that slot was
// not awaiting confirmation. Panics if index is out of range.
func (q *Queue) ReleaseConfirmation(index int) bool {
	k, i := q.tiers.route(index)
	t := &q.tiers.tiers[k]
	if t.outstanding != i {
		return false
	}
	t.indicationConfirmed()

	if q.outstanding == index {
		q.outstanding = noConfirmation
		for k := range q.tiers.tiers {
			if other := &q.tiers.tiers[k]; other.awaitingConfirmation() {
				q.outstanding = other.offset + other.outstanding
				break
			}
		}
	}
	return true
}

// DequeueIndicationOrConfirmation returns the next notification or
// indication to send. A returned notification is removed from the queue; a
// returned indication stays outstanding until IndicationConfirmed.
// Returns (Empty, 0) if nothing can be sent.
func (q *Queue) DequeueIndicationOrConfirmation() (Kind, int) {
	kind, index := q.tiers.dequeue(q.scope == ScopeConnection)
	if kind == Indication {
		q.outstanding = index
	}
	return kind, index
}

// ClearIndicationsAndConfirmations drops everything, called on disconnect
func (q *Queue) ClearIndicationsAndConfirmations() {
	q.outstanding = noConfirmation
	q.tiers.clear()
}

// OutstandingConfirmation returns the slot of the most recently handed out
// indication that is still unconfirmed
func (q *Queue) OutstandingConfirmation() (int, bool) {
	if q.outstanding == noConfirmation {
		return 0, false
	}
	return q.outstanding, true
}

// Slot returns the state of slot index. Panics if index is out of range.
func (q *Queue) Slot(index int) SlotState {
	k, i := q.tiers.route(index)
	t := &q.tiers.tiers[k]
	entry := t.queue.at(i)

	return SlotState{
		Notification:         entry&notificationBit != 0,
		Indication:           entry&indicationBit != 0,
		AwaitingConfirmation: t.outstanding == i,
	}
}

// Pending returns the number of slots with queued work, ignoring
// indications that are only awaiting confirmation
func (q *Queue) Pending() int {
	n := 0
	for k := range q.tiers.tiers {
		t := &q.tiers.tiers[k]
		for i := 0; i < t.size; i++ {
			if t.queue.at(i) != 0 {
				n++
			}
		}
	}
	return n
}
