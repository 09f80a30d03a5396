package wire

import (
	"context"
	"sync"
	"time"
)

// Peer answers frames on the simulated air interface. A nil answer means
// the peer stayed silent.
type Peer interface {
	Respond(frame []byte) []byte
}

// Schedule is one connection event as requested by the link layer
type Schedule struct {
	Anchor   time.Duration // simulated time the frame went on air
	Channel  uint
	When     time.Duration
	Transmit []byte
	Timeout  time.Duration

	receive []byte
}

// SimStats counts what happened on the simulated air interface
type SimStats struct {
	Events       uint64
	DownlinkLost uint64 // frames the peer never saw
	UplinkLost   uint64 // answers the link layer never saw
	Timeouts     uint64
}

// SimRadio is a Radio running on simulated time. Nothing happens until Step
// or Run is called, so tests and the simulator drive the link event by event.
type SimRadio struct {
	mu      sync.Mutex
	peer    Peer
	sim     *Simulator
	events  RadioEvents
	anchor  time.Duration
	now     time.Duration
	pending *Schedule
	last    Schedule
	stats   SimStats
}

// NewSimRadio connects a peer through a simulated link; sim may be nil for a lossless link
func NewSimRadio(peer Peer, sim *Simulator) *SimRadio {
	return &SimRadio{peer: peer, sim: sim}
}

// Attach sets the link layer that receives the radio's callbacks
func (r *SimRadio) Attach(events RadioEvents) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = events
}

// ScheduleTransmitAndReceive records the schedule; Step executes it
func (r *SimRadio) ScheduleTransmitAndReceive(channel uint, transmit []byte, when time.Duration, receive []byte, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = &Schedule{
		Channel:  channel,
		When:     when,
		Transmit: append([]byte{}, transmit...),
		Timeout:  timeout,
		receive:  receive,
	}
}

// Step runs the pending connection event. It returns false when nothing was scheduled.
func (r *SimRadio) Step() bool {
	r.mu.Lock()
	s := r.pending
	events := r.events
	if s == nil || events == nil {
		r.mu.Unlock()
		return false
	}
	r.pending = nil
	r.anchor += s.When
	s.Anchor = r.anchor
	r.last = *s
	r.stats.Events++

	delivered := r.sim == nil || r.sim.ShouldPacketSucceed()
	if !delivered {
		r.stats.DownlinkLost++
	}
	peer := r.peer
	r.mu.Unlock()

	var reply []byte
	if delivered && peer != nil {
		reply = peer.Respond(s.Transmit)
	}

	r.mu.Lock()
	if reply != nil && r.sim != nil && !r.sim.ShouldPacketSucceed() {
		r.stats.UplinkLost++
		reply = nil
	}
	if reply == nil {
		r.stats.Timeouts++
		r.now = r.anchor + s.Timeout
	} else {
		r.now = r.anchor + TIFS
	}
	r.mu.Unlock()

	if reply == nil {
		events.Timeout()
		return true
	}
	n := copy(s.receive, reply)
	events.Received(s.receive[:n])
	return true
}

// Run steps until ctx is done, nothing is scheduled or maxEvents were run
// (0 means no limit). It returns the number of events run.
func (r *SimRadio) Run(ctx context.Context, maxEvents int) int {
	n := 0
	for maxEvents == 0 || n < maxEvents {
		select {
		case <-ctx.Done():
			return n
		default:
		}
		if !r.Step() {
			return n
		}
		n++
	}
	return n
}

// Scheduled reports whether an event is waiting to be run
func (r *SimRadio) Scheduled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Last returns the most recently executed schedule
func (r *SimRadio) Last() Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Now returns the simulated time
func (r *SimRadio) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Stats returns the air interface counters
func (r *SimRadio) Stats() SimStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
