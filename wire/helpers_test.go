package wire

import (
	"testing"

	"github.com/user/gatt-dispatch/wire/att"
	"github.com/user/gatt-dispatch/wire/gatt"
	"github.com/user/gatt-dispatch/wire/notify"
)

var (
	uuidServiceChanged = gatt.UUID16(0x2A05)
	uuidHeartRate      = gatt.UUID16(0x2A37)
	uuidControl        = gatt.UUID16(0x2A39)
	uuidBattery        = gatt.UUID16(0x2A19)
)

// testTable yields four slots: service-changed and control at priority 0,
// hr at 1 and battery at 2
func testTable(t *testing.T) *gatt.Table {
	t.Helper()

	table, err := gatt.BuildAttributeDatabase([]gatt.Service{
		gatt.NewGenericAccessService("Test Sensor", 0x0341),
		gatt.NewGenericAttributeService(),
		{
			UUID:    gatt.UUID16(0x180D),
			Primary: true,
			Characteristics: []gatt.Characteristic{
				{UUID: uuidHeartRate, Name: "hr", Properties: gatt.PropRead | gatt.PropNotify, Priority: 1, Value: []byte{0x00}},
				{UUID: uuidControl, Name: "control", Properties: gatt.PropWrite | gatt.PropNotify | gatt.PropIndicate, Priority: 0},
				{UUID: uuidBattery, Name: "battery", Properties: gatt.PropRead | gatt.PropNotify, Priority: 2, Value: []byte{100}},
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to build attribute table: %v", err)
	}
	return table
}

var (
	uuidAlert  = gatt.UUID16(0x2A46)
	uuidStatus = gatt.UUID16(0x2A3F)
	uuidWeight = gatt.UUID16(0x2A9D)
)

// newTierScopeServer gives every tier its own confirmation gate: alert and
// status share priority 0, weight sits alone at priority 1
func newTierScopeServer(t *testing.T, link LinkConfig) *Server {
	t.Helper()

	table, err := gatt.BuildAttributeDatabase([]gatt.Service{
		{
			UUID:    gatt.UUID16(0x1811),
			Primary: true,
			Characteristics: []gatt.Characteristic{
				{UUID: uuidAlert, Name: "alert", Properties: gatt.PropIndicate, Priority: 0, Value: []byte{0x01}},
				{UUID: uuidStatus, Name: "status", Properties: gatt.PropIndicate, Priority: 0, Value: []byte{0x02}},
				{UUID: uuidWeight, Name: "weight", Properties: gatt.PropIndicate, Priority: 1, Value: []byte{0x03}},
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to build attribute table: %v", err)
	}

	link.Scope = notify.ScopeTier
	server, err := NewServer(table, link)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T, link LinkConfig, opts ...ServerOption) *Server {
	t.Helper()

	server, err := NewServer(testTable(t), link, opts...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(server.Close)
	return server
}

type testLink struct {
	conn    *Connection
	radio   *SimRadio
	central *SimCentral
}

func connectPeer(t *testing.T, server *Server, peerID string, bonded bool, mtu int, sim *Simulator) *testLink {
	t.Helper()

	central := NewSimCentral(peerID, mtu)
	radio := NewSimRadio(central, sim)
	conn, err := server.Connect(peerID, bonded, radio)
	if err != nil {
		t.Fatalf("Failed to connect %s: %v", peerID, err)
	}
	radio.Attach(conn)
	return &testLink{conn: conn, radio: radio, central: central}
}

func testSlot(t *testing.T, server *Server, uuid []byte) gatt.Slot {
	t.Helper()

	slot, ok := server.Table().Slots.ByUUID(uuid)
	if !ok {
		t.Fatalf("No slot for %s", gatt.UUIDString(uuid))
	}
	return slot
}

func (l *testLink) idle() bool {
	l.conn.mu.Lock()
	busy := len(l.conn.responses) > 0 || (l.conn.unacked && l.conn.inFlight != nil)
	l.conn.mu.Unlock()
	return !busy && l.conn.Queue().Pending() == 0 && l.central.Idle()
}

// settle runs connection events until neither side has anything left to send
func (l *testLink) settle(t *testing.T) {
	t.Helper()

	for i := 0; i < 5000; i++ {
		if l.idle() {
			// flush the last acknowledgements
			l.radio.Step()
			l.radio.Step()
			return
		}
		if !l.radio.Step() {
			t.Fatalf("Expected a scheduled connection event after %d steps", i)
		}
	}
	t.Fatalf("Link did not settle")
}

// stepUntil runs connection events until cond holds
func (l *testLink) stepUntil(t *testing.T, limit int, cond func() bool) {
	t.Helper()

	for i := 0; i < limit; i++ {
		if cond() {
			return
		}
		if !l.radio.Step() {
			t.Fatalf("Expected a scheduled connection event after %d steps", i)
		}
	}
	if !cond() {
		t.Fatalf("Condition not met after %d connection events", limit)
	}
}

func mustEncode(t *testing.T, pkt interface{}) []byte {
	t.Helper()

	pdu, err := att.EncodePacket(pkt)
	if err != nil {
		t.Fatalf("Failed to encode %T: %v", pkt, err)
	}
	return pdu
}
