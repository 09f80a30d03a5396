package wire

import (
	"fmt"
	"sort"
	"sync"

	"github.com/user/gatt-dispatch/logger"
	"github.com/user/gatt-dispatch/wire/gatt"
)

// Server owns the attribute table and the connections of a peripheral.
// The application changes characteristic values through it; each connection
// queues and dispatches them on its own link.
type Server struct {
	mu    sync.RWMutex
	table *gatt.Table
	link  LinkConfig
	bonds *gatt.BondStore
	conns map[string]*Connection
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithBondStore persists the subscriptions of bonded peers
func WithBondStore(bs *gatt.BondStore) ServerOption {
	return func(s *Server) {
		s.bonds = bs
	}
}

// WithDebug enables per connection debug logs and frame captures
func WithDebug(enabled bool) ServerOption {
	return func(s *Server) {
		s.link.Debug = enabled
	}
}

// NewServer creates a server for table
func NewServer(table *gatt.Table, link LinkConfig, opts ...ServerOption) (*Server, error) {
	if table == nil || table.Slots == nil {
		return nil, fmt.Errorf("wire: server needs a built attribute table")
	}
	if err := link.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		table: table,
		link:  link,
		conns: make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Table returns the server's attribute table
func (s *Server) Table() *gatt.Table {
	return s.table
}

// Connect accepts a connection from peerID over radio and schedules its first event.
// A bonded peer gets the subscriptions it had when it last disconnected.
func (s *Server) Connect(peerID string, bonded bool, radio Radio) (*Connection, error) {
	if peerID == "" {
		return nil, fmt.Errorf("wire: empty peer id")
	}

	s.mu.Lock()
	if _, exists := s.conns[peerID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("wire: %s is already connected", peerID)
	}

	conn := newConnection(peerID, bonded, s.table, radio, s.bonds, s.link)
	conn.onDisconnect = s.connectionClosed
	s.conns[peerID] = conn
	s.mu.Unlock()

	if bonded && s.bonds != nil {
		snap, err := s.bonds.Load(peerID)
		if err != nil {
			logger.Warn(shortHash(peerID)+" server", "⚠️  starting without saved subscriptions: %v", err)
		} else {
			conn.cccds.Restore(snap)
			if len(snap) > 0 {
				logger.Info(shortHash(peerID)+" server", "🔐 restored %d subscriptions", len(snap))
			}
		}
	}

	conn.Start()
	return conn, nil
}

func (s *Server) connectionClosed(conn *Connection, reason DisconnectReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[conn.peerID] == conn {
		delete(s.conns, conn.peerID)
	}
}

// Connection returns the live connection to peerID
func (s *Server) Connection(peerID string) (*Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.conns[peerID]
	return conn, ok
}

// Connections returns all live connections ordered by peer id
func (s *Server) Connections() []*Connection {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].peerID < conns[j].peerID
	})
	return conns
}

// Disconnect closes the connection to peerID
func (s *Server) Disconnect(peerID string) error {
	conn, ok := s.Connection(peerID)
	if !ok {
		return fmt.Errorf("wire: %s is not connected", peerID)
	}
	conn.Disconnect(ReasonLocal)
	return nil
}

// Close disconnects every peer
func (s *Server) Close() {
	for _, conn := range s.Connections() {
		conn.Disconnect(ReasonShutdown)
	}
}

func (s *Server) slot(uuid []byte) (gatt.Slot, error) {
	slot, ok := s.table.Slots.ByUUID(uuid)
	if !ok {
		return gatt.Slot{}, fmt.Errorf("wire: characteristic %s neither notifies nor indicates", gatt.UUIDString(uuid))
	}
	return slot, nil
}

// Notify queues a notification of the characteristic's current value on
// every connection subscribed to it. It returns how many connections gained
// a pending notification.
func (s *Server) Notify(uuid []byte) (int, error) {
	slot, err := s.slot(uuid)
	if err != nil {
		return 0, err
	}
	if !slot.CanNotify() {
		return 0, fmt.Errorf("wire: characteristic %s does not notify", slot.Label())
	}

	queued := 0
	for _, conn := range s.Connections() {
		if conn.QueueNotification(slot) {
			queued++
		}
	}
	return queued, nil
}

// Indicate queues an indication of the characteristic's current value on
// every connection subscribed to it. It returns how many connections accepted it.
func (s *Server) Indicate(uuid []byte) (int, error) {
	slot, err := s.slot(uuid)
	if err != nil {
		return 0, err
	}
	if !slot.CanIndicate() {
		return 0, fmt.Errorf("wire: characteristic %s does not indicate", slot.Label())
	}

	queued := 0
	for _, conn := range s.Connections() {
		if conn.QueueIndication(slot) {
			queued++
		}
	}
	return queued, nil
}

// Update stores a new value and queues it to every subscriber, as a
// notification, an indication or both depending on what each enabled.
// The value is read when the PDU is built, so a later Update overtakes a
// queued one.
func (s *Server) Update(uuid []byte, value []byte) (int, error) {
	slot, err := s.slot(uuid)
	if err != nil {
		return 0, err
	}
	if err := s.table.DB.SetAttributeValue(slot.ValueHandle, value); err != nil {
		return 0, err
	}

	queued := 0
	for _, conn := range s.Connections() {
		n := conn.QueueNotification(slot)
		i := conn.QueueIndication(slot)
		if n || i {
			queued++
		}
	}
	return queued, nil
}
