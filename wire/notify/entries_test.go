package notify

import "testing"

func TestEntriesLen(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{1, 1},
		{3, 1},
		{4, 1},
		{5, 2},
		{8, 2},
		{9, 3},
		{17, 5},
	}

	for _, tt := range tests {
		if got := entriesLen(tt.size); got != tt.want {
			t.Errorf("entriesLen(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestEntriesAddReportsNewBits(t *testing.T) {
	e := make(entries, entriesLen(6))

	if !e.add(5, notificationBit) {
		t.Fatal("Expected first add to report a newly set bit")
	}
	if e.add(5, notificationBit) {
		t.Fatal("Expected second add of the same bit to report false")
	}
	if !e.add(5, indicationBit) {
		t.Fatal("Expected indication bit to be newly set next to the notification bit")
	}
	if got := e.at(5); got != notificationBit|indicationBit {
		t.Errorf("Expected entry 0x03, got 0x%02X", got)
	}
}

func TestEntriesNeighboursUntouched(t *testing.T) {
	e := make(entries, entriesLen(8))

	for i := 0; i < 8; i++ {
		if i%2 == 0 {
			e.add(i, indicationBit)
		} else {
			e.add(i, notificationBit)
		}
	}

	e.remove(3, notificationBit)
	e.remove(4, indicationBit)

	want := []uint8{
		indicationBit, notificationBit, indicationBit, 0,
		0, notificationBit, indicationBit, notificationBit,
	}
	for i, w := range want {
		if got := e.at(i); got != w {
			t.Errorf("slot %d: expected 0x%02X, got 0x%02X", i, w, got)
		}
	}

	// packed layout: two bits per slot, four slots per byte
	if e[0] != 0x26 {
		t.Errorf("Expected first byte 0x26, got 0x%02X", e[0])
	}
}

func TestEntriesRemoveOnlyRequestedBits(t *testing.T) {
	e := make(entries, 1)
	e.add(2, notificationBit|indicationBit)
	e.remove(2, indicationBit)

	if got := e.at(2); got != notificationBit {
		t.Errorf("Expected only notification bit left, got 0x%02X", got)
	}
}

func TestEntriesReset(t *testing.T) {
	e := make(entries, entriesLen(12))
	for i := 0; i < 12; i++ {
		e.add(i, notificationBit|indicationBit)
	}
	e.reset()

	for i := 0; i < 12; i++ {
		if got := e.at(i); got != 0 {
			t.Errorf("slot %d: expected empty after reset, got 0x%02X", i, got)
		}
	}
}
