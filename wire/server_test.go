package wire

import (
	"testing"

	"github.com/user/gatt-dispatch/wire/gatt"
	"github.com/user/gatt-dispatch/wire/notify"
)

func TestNewServerValidation(t *testing.T) {
	bad := DefaultLinkConfig()
	bad.HopIncrement = 0

	if _, err := NewServer(nil, DefaultLinkConfig()); err == nil {
		t.Error("Expected error for missing table")
	}
	if _, err := NewServer(testTable(t), bad); err == nil {
		t.Error("Expected error for invalid link config")
	}
}

func TestServerConnect(t *testing.T) {
	server := newTestServer(t, DefaultLinkConfig())

	connectPeer(t, server, "peer-b", false, 0, nil)
	connectPeer(t, server, "peer-a", false, 0, nil)

	if _, err := server.Connect("peer-a", false, NewSimRadio(nil, nil)); err == nil {
		t.Error("Expected error connecting the same peer twice")
	}
	if _, err := server.Connect("", false, NewSimRadio(nil, nil)); err == nil {
		t.Error("Expected error for empty peer id")
	}

	conns := server.Connections()
	if len(conns) != 2 {
		t.Fatalf("Expected 2 connections, got %d", len(conns))
	}
	if conns[0].PeerID() != "peer-a" || conns[1].PeerID() != "peer-b" {
		t.Errorf("Expected connections ordered by peer id, got %s, %s", conns[0].PeerID(), conns[1].PeerID())
	}

	if err := server.Disconnect("nobody"); err == nil {
		t.Error("Expected error disconnecting an unknown peer")
	}

	server.Close()
	for _, conn := range conns {
		if conn.Reason() != ReasonShutdown {
			t.Errorf("Expected %s to be shut down, got %q", conn.PeerID(), conn.Reason())
		}
	}
	if len(server.Connections()) != 0 {
		t.Error("Expected no connections after Close")
	}
}

func TestServerRejectsUnsuitableCharacteristics(t *testing.T) {
	server := newTestServer(t, DefaultLinkConfig())

	tests := []struct {
		name string
		call func() (int, error)
	}{
		{"Notify without CCCD", func() (int, error) { return server.Notify(gatt.UUID16(0x2A00)) }},
		{"Notify indicate-only", func() (int, error) { return server.Notify(uuidServiceChanged) }},
		{"Indicate notify-only", func() (int, error) { return server.Indicate(uuidHeartRate) }},
		{"Update unknown", func() (int, error) { return server.Update(gatt.UUID16(0xFFFF), []byte{1}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.call(); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestServerFansOutToSubscribers(t *testing.T) {
	server := newTestServer(t, DefaultLinkConfig())
	hr := testSlot(t, server, uuidHeartRate)
	control := testSlot(t, server, uuidControl)

	notifier := connectPeer(t, server, "notifier", false, 0, nil)
	notifier.central.Subscribe(hr, true, false)
	notifier.central.Subscribe(control, true, false)
	notifier.settle(t)

	indicated := connectPeer(t, server, "indicated", false, 0, nil)
	indicated.central.Subscribe(control, false, true)
	indicated.settle(t)

	idle := connectPeer(t, server, "idle", false, 0, nil)
	idle.settle(t)

	tests := []struct {
		name     string
		call     func() (int, error)
		expected int
	}{
		{"Notify hr", func() (int, error) { return server.Notify(uuidHeartRate) }, 1},
		{"Notify hr again merges", func() (int, error) { return server.Notify(uuidHeartRate) }, 0},
		{"Indicate control", func() (int, error) { return server.Indicate(uuidControl) }, 1},
		{"Update control", func() (int, error) { return server.Update(uuidControl, []byte{0x07}) }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.call()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if n != tt.expected {
				t.Errorf("Expected %d connections to queue, got %d", tt.expected, n)
			}
		})
	}

	for _, l := range []*testLink{notifier, indicated, idle} {
		l.settle(t)
	}

	if got := notifier.central.Count(notify.Notification, hr.ValueHandle); got != 1 {
		t.Errorf("Expected 1 hr notification, got %d", got)
	}
	if got := notifier.central.Count(notify.Notification, control.ValueHandle); got != 1 {
		t.Errorf("Expected 1 control notification, got %d", got)
	}
	if got := indicated.central.Count(notify.Indication, control.ValueHandle); got != 1 {
		t.Errorf("Expected 1 control indication, got %d", got)
	}
	if got := len(idle.central.Received()); got != 0 {
		t.Errorf("Expected idle peer to receive nothing, got %d", got)
	}
}
