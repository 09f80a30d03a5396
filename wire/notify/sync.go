package notify

import "sync"

// SyncQueue serializes access to a Queue for callers that produce on one
// goroutine and dispatch on another
type SyncQueue struct {
	mu sync.Mutex
	q  *Queue
}

// NewSync creates a SyncQueue around a new Queue
func NewSync(sizes []int, opts ...Option) *SyncQueue {
	return &SyncQueue{q: New(sizes, opts...)}
}

// Len returns the number of slots
func (s *SyncQueue) Len() int {
	return s.q.Len()
}

// TierCount returns the number of non-empty tiers
func (s *SyncQueue) TierCount() int {
	return s.q.TierCount()
}

// TierOf returns the priority position of the tier owning index
func (s *SyncQueue) TierOf(index int) int {
	return s.q.TierOf(index)
}

// Scope returns the confirmation scope the queue was built with
func (s *SyncQueue) Scope() ConfirmationScope {
	return s.q.Scope()
}

func (s *SyncQueue) QueueNotification(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.QueueNotification(index)
}

func (s *SyncQueue) QueueIndication(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.QueueIndication(index)
}

// RequestIndication queues an indication like QueueIndication and returns
// the slot state seen under the same lock, so a refusal can be told apart
// from a merge
func (s *SyncQueue) RequestIndication(index int) (bool, SlotState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.q.QueueIndication(index)
	return queued, s.q.Slot(index)
}

func (s *SyncQueue) IndicationConfirmed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.IndicationConfirmed()
}

func (s *SyncQueue) ReleaseConfirmation(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.ReleaseConfirmation(index)
}

func (s *SyncQueue) DequeueIndicationOrConfirmation() (Kind, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DequeueIndicationOrConfirmation()
}

func (s *SyncQueue) ClearIndicationsAndConfirmations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.ClearIndicationsAndConfirmations()
}

func (s *SyncQueue) OutstandingConfirmation() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.OutstandingConfirmation()
}

func (s *SyncQueue) Slot(index int) SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Slot(index)
}

func (s *SyncQueue) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Pending()
}
