package wire

import (
	"sync"

	"github.com/user/gatt-dispatch/logger"
	"github.com/user/gatt-dispatch/wire/att"
	"github.com/user/gatt-dispatch/wire/gatt"
	"github.com/user/gatt-dispatch/wire/l2cap"
	"github.com/user/gatt-dispatch/wire/ll"
	"github.com/user/gatt-dispatch/wire/notify"
)

// SimValue is a notification or indication the simulated client received
type SimValue struct {
	Kind   notify.Kind
	Handle uint16
	Value  []byte
}

// SimCentral is a GATT client on the far end of a SimRadio. It keeps one
// ATT request outstanding at a time, confirms indications and records every
// value the server pushes.
type SimCentral struct {
	mu sync.Mutex

	name     string
	seq      ll.Sequence
	inFlight []byte
	unacked  bool

	requests    [][]byte
	outstanding bool
	confirms    int
	confirm     bool

	proposedMTU int
	mtu         int

	received []SimValue
	counts   map[notify.Kind]map[uint16]int
	errors   []att.ErrorResponse
}

// NewSimCentral creates a client that asks for mtu once the connection is up
// (0 skips the exchange) and confirms every indication
func NewSimCentral(name string, mtu int) *SimCentral {
	c := &SimCentral{
		name:    name,
		confirm: true,
		mtu:     DefaultMTU,
		counts:  make(map[notify.Kind]map[uint16]int),
	}
	if mtu > 0 {
		c.proposedMTU = mtu
		c.send(&att.ExchangeMTURequest{ClientRxMTU: uint16(mtu)})
	}
	return c
}

// SetConfirmIndications turns automatic confirmations on or off
func (c *SimCentral) SetConfirmIndications(confirm bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirm = confirm
}

// Subscribe writes slot's CCCD
func (c *SimCentral) Subscribe(slot gatt.Slot, notifyOn, indicateOn bool) {
	c.send(&att.WriteRequest{Handle: slot.CCCDHandle, Value: gatt.EncodeCCCDValue(notifyOn, indicateOn)})
}

// Send queues a raw ATT PDU
func (c *SimCentral) Send(pdu []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, append([]byte{}, pdu...))
}

func (c *SimCentral) send(pkt interface{}) {
	pdu, err := att.EncodePacket(pkt)
	if err != nil {
		logger.Error(c.name, "❌ encoding request: %v", err)
		return
	}
	c.Send(pdu)
}

// Respond implements Peer
func (c *SimCentral) Respond(frame []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	pdu, err := ll.Decode(frame)
	if err != nil {
		logger.Debug(c.name, "ignoring frame: %v", err)
		return nil
	}

	acked, fresh := c.seq.Receive(pdu)
	if acked {
		c.unacked = false
		c.inFlight = nil
	}
	if fresh && pdu.LLID() == ll.LLIDStart {
		c.handle(pdu.Payload())
	}

	if !c.unacked {
		c.inFlight = c.next()
		c.unacked = true
	}
	out, err := c.seq.Stamp(c.inFlight, false)
	if err != nil {
		logger.Error(c.name, "❌ %v", err)
		return nil
	}
	return out
}

// next picks the payload of a new PDU. Caller holds c.mu.
func (c *SimCentral) next() []byte {
	if c.confirms > 0 {
		c.confirms--
		return l2cap.EncodeATT([]byte{att.OpHandleValueConfirmation})
	}
	if len(c.requests) > 0 && !c.outstanding {
		pdu := c.requests[0]
		c.requests = c.requests[1:]
		if att.IsRequest(pdu[0]) || att.IsUnsupportedRequest(pdu[0]) {
			c.outstanding = true
		}
		return l2cap.EncodeATT(pdu)
	}
	return nil
}

func (c *SimCentral) handle(frame []byte) {
	pdu, ok, err := l2cap.DecodeATT(frame)
	if err != nil || !ok {
		return
	}

	pkt, err := att.DecodePacket(pdu)
	if err != nil {
		logger.Warn(c.name, "⚠️  %v", err)
		return
	}

	switch p := pkt.(type) {
	case *att.HandleValueNotification:
		c.record(notify.Notification, p.Handle, p.Value)
	case *att.HandleValueIndication:
		c.record(notify.Indication, p.Handle, p.Value)
		if c.confirm {
			c.confirms++
		}
	case *att.ExchangeMTUResponse:
		c.outstanding = false
		mtu := int(p.ServerRxMTU)
		if c.proposedMTU < mtu {
			mtu = c.proposedMTU
		}
		if mtu < DefaultMTU {
			mtu = DefaultMTU
		}
		c.mtu = mtu
	case *att.WriteResponse:
		c.outstanding = false
	case *att.ErrorResponse:
		c.outstanding = false
		c.errors = append(c.errors, *p)
	}
}

func (c *SimCentral) record(kind notify.Kind, handle uint16, value []byte) {
	c.received = append(c.received, SimValue{Kind: kind, Handle: handle, Value: append([]byte{}, value...)})
	if c.counts[kind] == nil {
		c.counts[kind] = make(map[uint16]int)
	}
	c.counts[kind][handle]++
}

// ConfirmIndication sends one confirmation by hand, for clients that do not confirm automatically
func (c *SimCentral) ConfirmIndication() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirms++
}

// Idle reports whether every queued request was answered
func (c *SimCentral) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests) == 0 && !c.outstanding && c.confirms == 0 && !(c.unacked && c.inFlight != nil)
}

// MTU returns the MTU the client settled on
func (c *SimCentral) MTU() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtu
}

// Received returns every value pushed by the server, in arrival order
func (c *SimCentral) Received() []SimValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SimValue{}, c.received...)
}

// Count returns how many values of kind arrived for handle
func (c *SimCentral) Count(kind notify.Kind, handle uint16) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind][handle]
}

// Errors returns the error responses the server sent
func (c *SimCentral) Errors() []att.ErrorResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]att.ErrorResponse{}, c.errors...)
}
