package wire

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/gatt-dispatch/logger"
	"github.com/user/gatt-dispatch/observability"
	"github.com/user/gatt-dispatch/wire/att"
	"github.com/user/gatt-dispatch/wire/debug"
	"github.com/user/gatt-dispatch/wire/gatt"
	"github.com/user/gatt-dispatch/wire/l2cap"
	"github.com/user/gatt-dispatch/wire/ll"
	"github.com/user/gatt-dispatch/wire/notify"
)

// LinkConfig holds the link layer settings of every connection a server accepts
type LinkConfig struct {
	Params              ConnectionParameters
	HopIncrement        uint
	ReceiveWindow       time.Duration
	ConfirmationTimeout time.Duration
	MTU                 int // largest ATT MTU the server accepts
	Scope               notify.ConfirmationScope
	Debug               bool // write JSONL logs and frame captures per connection
}

// DefaultLinkConfig returns a 30ms interval, 6s supervision timeout link
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Params:              DefaultConnectionParameters(),
		HopIncrement:        DefaultHopIncrement,
		ReceiveWindow:       DefaultReceiveWindow,
		ConfirmationTimeout: att.DefaultTransactionTimeout,
		MTU:                 MaxMTU,
		Scope:               notify.ScopeConnection,
	}
}

// Validate checks the configuration before any connection uses it
func (lc LinkConfig) Validate() error {
	if err := lc.Params.Validate(); err != nil {
		return err
	}
	if lc.HopIncrement < MinHopIncrement || lc.HopIncrement > MaxHopIncrement {
		return fmt.Errorf("wire: hop increment out of range (%d-%d): %d", MinHopIncrement, MaxHopIncrement, lc.HopIncrement)
	}
	if lc.MTU < DefaultMTU || lc.MTU > MaxMTU {
		return fmt.Errorf("wire: MTU out of range (%d-%d): %d", DefaultMTU, MaxMTU, lc.MTU)
	}
	if lc.ReceiveWindow <= 0 {
		return fmt.Errorf("wire: receive window must be positive")
	}
	if lc.ConfirmationTimeout <= 0 {
		return fmt.Errorf("wire: confirmation timeout must be positive")
	}
	return nil
}

// Connection is the server side of one LE connection. The radio drives it
// through Timeout and Received; application goroutines queue notifications
// and indications concurrently.
type Connection struct {
	mu sync.Mutex

	peerID string
	prefix string
	bonded bool
	cfg    LinkConfig
	table  *gatt.Table
	radio  Radio
	bonds  *gatt.BondStore

	queue   *notify.SyncQueue
	cccds   *gatt.CCCDManager
	tracker *att.ConfirmationTracker
	debug   *debug.DebugLogger

	state     ConnectionState
	reason    DisconnectReason
	seq       ll.Sequence
	inFlight  []byte // L2CAP frame of the unacknowledged PDU, nil when it was empty
	unacked   bool
	responses [][]byte // ATT PDUs waiting for a transmit opportunity
	mtu       int
	channel   uint
	events    uint64
	missed    int
	rx        []byte

	onDisconnect func(c *Connection, reason DisconnectReason)
}

func newConnection(peerID string, bonded bool, table *gatt.Table, radio Radio, bonds *gatt.BondStore, cfg LinkConfig) *Connection {
	c := &Connection{
		peerID:  peerID,
		prefix:  shortHash(peerID) + " ll",
		bonded:  bonded,
		cfg:     cfg,
		table:   table,
		radio:   radio,
		bonds:   bonds,
		queue:   notify.NewSync(table.Slots.TierSizes(), notify.WithConfirmationScope(cfg.Scope)),
		cccds:   gatt.NewCCCDManager(),
		tracker: att.NewConfirmationTracker(cfg.ConfirmationTimeout),
		debug:   debug.NewDebugLogger(peerID, cfg.Debug),
		state:   StateConnected,
		mtu:     DefaultMTU,
		rx:      make([]byte, ll.HeaderLen+ll.MaxPayload),
	}
	if cfg.Scope == notify.ScopeTier {
		c.tracker.SetCapacity(c.queue.TierCount())
	}
	c.tracker.SetTimeoutCallback(c.confirmationTimedOut)
	return c
}

// PeerID returns the identifier the connection was opened with
func (c *Connection) PeerID() string { return c.peerID }

// Bonded reports whether subscriptions survive the connection
func (c *Connection) Bonded() bool { return c.bonded }

// Queue exposes the connection's dispatch queue
func (c *Connection) Queue() *notify.SyncQueue { return c.queue }

// Subscriptions exposes the connection's CCCD state
func (c *Connection) Subscriptions() *gatt.CCCDManager { return c.cccds }

// State returns whether the connection is still up
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns why the connection ended, empty while connected
func (c *Connection) Reason() DisconnectReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// MTU returns the negotiated ATT MTU
func (c *Connection) MTU() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtu
}

// Events returns the number of connection events scheduled so far
func (c *Connection) Events() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// PendingConfirmation returns the oldest indication waiting for its confirmation
func (c *Connection) PendingConfirmation() (handle uint16, slot int, ok bool) {
	handle, slot, _, ok = c.tracker.GetPendingInfo()
	return handle, slot, ok
}

// QueueNotification queues a notification of slot if the client enabled notifications for it
func (c *Connection) QueueNotification(slot gatt.Slot) bool {
	if c.State() != StateConnected || !c.cccds.IsNotifyEnabled(slot.ValueHandle) {
		return false
	}

	queued := c.queue.QueueNotification(slot.Index)
	result := observability.ResultQueued
	if !queued {
		result = observability.ResultMerged
	}
	observability.RecordQueueRequest(notify.Notification.String(), result)
	return queued
}

// QueueIndication queues an indication of slot if the client enabled indications for it.
// It is refused while the slot's previous indication awaits its confirmation.
func (c *Connection) QueueIndication(slot gatt.Slot) bool {
	if c.State() != StateConnected || !c.cccds.IsIndicateEnabled(slot.ValueHandle) {
		return false
	}

	queued, state := c.queue.RequestIndication(slot.Index)
	result := observability.ResultQueued
	if !queued {
		result = observability.ResultMerged
		if state.AwaitingConfirmation {
			result = observability.ResultRefused
			logger.Debug(c.prefix, "⏳ indication of %s refused, previous one unconfirmed", slot.Label())
		}
	}
	observability.RecordQueueRequest(notify.Indication.String(), result)
	return queued
}

// Start schedules the first connection event
func (c *Connection) Start() {
	logger.Info(c.prefix, "🔗 connected (interval %v, supervision %v, bonded %v)",
		c.cfg.Params.IntervalDuration(), c.cfg.Params.SupervisionDuration(), c.bonded)
	c.ConnectionEvent()
}

// ConnectionEvent builds the next PDU and schedules it on the radio.
// An unacknowledged PDU is sent again; otherwise a pending ATT response goes
// first, then whatever the dispatch queue yields, else an empty PDU.
func (c *Connection) ConnectionEvent() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}

	if !c.unacked {
		c.inFlight = c.nextPayload()
		c.unacked = true
	} else if c.inFlight != nil {
		observability.RecordRetransmission()
		logger.Debug(c.prefix, "🔁 retransmitting %d byte frame", len(c.inFlight))
	}

	pdu, err := c.seq.Stamp(c.inFlight, false)
	if err != nil {
		c.mu.Unlock()
		logger.Error(c.prefix, "❌ cannot frame payload: %v", err)
		c.Disconnect(ReasonLocal)
		return
	}

	c.events++
	c.channel = nextChannel(c.channel, c.cfg.HopIncrement)
	channel := c.channel
	c.debug.LogFrame("tx", channel, pdu)
	logger.Trace(c.prefix, "event %d channel %d: % X", c.events, channel, []byte(pdu))
	c.mu.Unlock()

	c.radio.ScheduleTransmitAndReceive(channel, pdu, c.cfg.Params.IntervalDuration(), c.rx, c.cfg.ReceiveWindow)
}

// nextPayload picks the L2CAP frame of a new PDU. Caller holds c.mu.
func (c *Connection) nextPayload() []byte {
	if len(c.responses) > 0 {
		pdu := c.responses[0]
		c.responses = c.responses[1:]
		return l2cap.EncodeATT(pdu)
	}

	for {
		kind, index := c.queue.DequeueIndicationOrConfirmation()
		if kind == notify.Empty {
			return nil
		}
		if frame := c.handleValueFrame(kind, index); frame != nil {
			return frame
		}
	}
}

// handleValueFrame turns a dequeued slot into a Handle Value PDU. It returns
// nil when the client unsubscribed after the slot was queued.
func (c *Connection) handleValueFrame(kind notify.Kind, index int) []byte {
	slot := c.table.Slots.Slot(index)

	var subscribed bool
	if kind == notify.Indication {
		subscribed = c.cccds.IsIndicateEnabled(slot.ValueHandle)
	} else {
		subscribed = c.cccds.IsNotifyEnabled(slot.ValueHandle)
	}

	value, err := c.table.DB.ReadValue(slot.ValueHandle, -1)
	if err != nil {
		logger.Error(c.prefix, "❌ reading %s: %v", slot.Label(), err)
		subscribed = false
	}
	if !subscribed {
		if kind == notify.Indication {
			// nothing goes on air, so nothing will be confirmed
			c.queue.ReleaseConfirmation(index)
		}
		logger.Debug(c.prefix, "⏭️  skipping %s of %s", kind, slot.Label())
		return nil
	}

	limit := att.MaxValueLen(c.mtu)
	truncated := len(value) > limit
	if truncated {
		value = value[:limit]
	}

	var pkt interface{}
	if kind == notify.Indication {
		pkt = &att.HandleValueIndication{Handle: slot.ValueHandle, Value: value}
	} else {
		pkt = &att.HandleValueNotification{Handle: slot.ValueHandle, Value: value}
	}

	pdu, err := att.EncodePacket(pkt)
	if err != nil {
		logger.Error(c.prefix, "❌ encoding %s: %v", kind, err)
		if kind == notify.Indication {
			c.queue.ReleaseConfirmation(index)
		}
		return nil
	}
	if kind == notify.Indication {
		if err := c.tracker.Start(slot.ValueHandle, index); err != nil {
			logger.Error(c.prefix, "❌ %v", err)
		}
	}

	tier := c.queue.TierOf(index)
	c.debug.LogATTPacket("tx", pkt, pdu)
	c.debug.LogDispatch(debug.DispatchLog{
		Event:     c.events + 1,
		Kind:      kind.String(),
		Slot:      index,
		Tier:      tier,
		Handle:    handleString(slot.ValueHandle),
		ValueLen:  len(value),
		Truncated: truncated,
	})
	observability.RecordDispatch(kind.String(), tier)
	logger.Debug(c.prefix, "📤 %s %s (slot %d, tier %d, %d bytes)", kind, slot.Label(), index, tier, len(value))

	return l2cap.EncodeATT(pdu)
}

// Timeout is called by the radio when the peer did not answer
func (c *Connection) Timeout() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.missed++
	missed := c.missed
	exceeded := missed >= c.cfg.Params.MissedEventLimit()
	c.mu.Unlock()

	if exceeded {
		logger.Warn(c.prefix, "📵 no answer for %d events", missed)
		c.Disconnect(ReasonSupervisionTimeout)
		return
	}
	c.ConnectionEvent()
}

// Received is called by the radio with the peer's answer
func (c *Connection) Received(frame []byte) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}

	pdu, err := ll.Decode(frame)
	if err != nil {
		c.mu.Unlock()
		logger.Warn(c.prefix, "⚠️  dropping frame: %v", err)
		c.Timeout()
		return
	}

	c.missed = 0
	c.debug.LogFrame("rx", c.channel, pdu)

	acked, fresh := c.seq.Receive(pdu)
	if acked {
		c.unacked = false
		c.inFlight = nil
	}
	if fresh && pdu.LLID() == ll.LLIDStart {
		c.handleL2CAP(pdu.Payload())
	}
	c.mu.Unlock()

	c.ConnectionEvent()
}

// handleL2CAP processes a complete L2CAP frame. Caller holds c.mu.
func (c *Connection) handleL2CAP(frame []byte) {
	pdu, ok, err := l2cap.DecodeATT(frame)
	if err != nil {
		logger.Warn(c.prefix, "⚠️  %v", err)
		return
	}
	if !ok {
		logger.Debug(c.prefix, "ignoring L2CAP frame outside the ATT channel")
		return
	}
	if len(pdu) == 0 {
		return
	}
	c.handleATT(pdu)
}

// handleATT answers a client ATT PDU. Caller holds c.mu.
func (c *Connection) handleATT(pdu []byte) {
	opcode := pdu[0]

	pkt, err := att.DecodePacket(pdu)
	if err != nil {
		switch {
		case att.IsUnsupportedRequest(opcode):
			c.respondError(att.NewError(att.ErrRequestNotSupported, opcode, 0))
		case att.IsRequest(opcode):
			c.respondError(att.NewError(att.ErrInvalidPDU, opcode, 0))
		default:
			logger.Debug(c.prefix, "ignoring ATT opcode 0x%02X: %v", opcode, err)
		}
		return
	}
	c.debug.LogATTPacket("rx", pkt, pdu)

	switch p := pkt.(type) {
	case *att.HandleValueConfirmation:
		c.confirmed()

	case *att.ExchangeMTURequest:
		c.exchangeMTU(p)

	case *att.WriteRequest:
		if err := c.writeCCCD(att.OpWriteRequest, p.Handle, p.Value); err != nil {
			c.respondError(err)
			return
		}
		c.respond(&att.WriteResponse{})

	case *att.WriteCommand:
		if err := c.writeCCCD(att.OpWriteCommand, p.Handle, p.Value); err != nil {
			logger.Debug(c.prefix, "ignoring write command: %v", err)
		}

	case *att.ReadRequest:
		c.respondError(att.NewError(att.ErrRequestNotSupported, att.OpReadRequest, p.Handle))

	default:
		logger.Debug(c.prefix, "ignoring %s from client", att.OpcodeNames[opcode])
	}
}

// confirmed completes the oldest unconfirmed indication and reopens the
// confirmation gate of its tier only
func (c *Connection) confirmed() {
	handle, slot, latency, err := c.tracker.Confirm()
	if err != nil {
		logger.Warn(c.prefix, "⚠️  %v", err)
		return
	}
	c.queue.ReleaseConfirmation(slot)
	observability.RecordConfirmation(latency)
	logger.Debug(c.prefix, "✅ confirmed handle %s (slot %d) after %v", handleString(handle), slot, latency)
}

func (c *Connection) exchangeMTU(req *att.ExchangeMTURequest) {
	mtu := int(req.ClientRxMTU)
	if mtu < DefaultMTU {
		mtu = DefaultMTU
	}
	if mtu > c.cfg.MTU {
		mtu = c.cfg.MTU
	}
	c.mtu = mtu

	c.respond(&att.ExchangeMTUResponse{ServerRxMTU: uint16(c.cfg.MTU)})
	logger.Debug(c.prefix, "📏 MTU %d (client %d, server %d)", mtu, req.ClientRxMTU, c.cfg.MTU)
}

// writeCCCD applies a client write. Only CCCDs are writable.
func (c *Connection) writeCCCD(opcode uint8, handle uint16, value []byte) *att.Error {
	slot, ok := c.table.Slots.ByCCCDHandle(handle)
	if !ok {
		if _, err := c.table.DB.GetAttribute(handle); err != nil {
			return att.NewError(att.ErrInvalidHandle, opcode, handle)
		}
		return att.NewError(att.ErrWriteNotPermitted, opcode, handle)
	}

	notifyOn, indicateOn, err := gatt.DecodeCCCDValue(value)
	if err != nil {
		return att.NewError(att.ErrInvalidAttributeValueLength, opcode, handle)
	}
	if (notifyOn && !slot.CanNotify()) || (indicateOn && !slot.CanIndicate()) {
		return att.NewError(att.ErrCCCDImproperlyConfigured, opcode, handle)
	}

	c.cccds.SetSubscription(slot.ValueHandle, value)
	logger.Info(c.prefix, "🔔 %s notify=%v indicate=%v", slot.Label(), notifyOn, indicateOn)
	return nil
}

// respond queues an ATT PDU for the next free transmit opportunity. Caller holds c.mu.
func (c *Connection) respond(pkt interface{}) {
	pdu, err := att.EncodePacket(pkt)
	if err != nil {
		logger.Error(c.prefix, "❌ encoding response: %v", err)
		return
	}
	c.debug.LogATTPacket("tx", pkt, pdu)
	c.responses = append(c.responses, pdu)
}

func (c *Connection) respondError(e *att.Error) {
	logger.Debug(c.prefix, "🚫 %v", e)
	c.respond(e.Response())
}

func (c *Connection) confirmationTimedOut(handle uint16, slot int) {
	observability.RecordConfirmationTimeout()
	logger.Warn(c.prefix, "⏰ indication on %s (slot %d) not confirmed within %v",
		handleString(handle), slot, c.cfg.ConfirmationTimeout)
	c.Disconnect(ReasonConfirmationTimeout)
}

// Disconnect ends the connection: pending notifications and indications are
// dropped, a bonded peer's subscriptions are saved and the radio is no longer
// scheduled. Calling it again has no effect.
func (c *Connection) Disconnect(reason DisconnectReason) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.reason = reason
	c.queue.ClearIndicationsAndConfirmations()
	c.tracker.Cancel()
	c.inFlight, c.unacked, c.responses = nil, false, nil
	events := c.events
	cb := c.onDisconnect
	c.mu.Unlock()

	if c.bonded && c.bonds != nil {
		if err := c.bonds.Save(c.peerID, c.cccds.Snapshot()); err != nil {
			logger.Error(c.prefix, "❌ saving bond: %v", err)
		}
	}
	c.cccds.Clear()

	observability.RecordDisconnect(string(reason))
	logger.Info(c.prefix, "🔌 disconnected (%s) after %d events", reason, events)

	if cb != nil {
		cb(c, reason)
	}
}
