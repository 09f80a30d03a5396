package gatt

import (
	"reflect"
	"testing"
)

func TestSlotsOrderedByPriority(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{
		NewGenericAttributeService(), // service-changed, priority 0
		{
			UUID:    UUID16(0x180D),
			Primary: true,
			Characteristics: []Characteristic{
				NewNotifyCharacteristic(UUID16(0x2A37), 2, nil),
				NewIndicateCharacteristic(UUID16(0x2A39), 0, nil),
				NewNotifyCharacteristic(UUID16(0x2A3A), 2, nil),
			},
		},
	})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	st := table.Slots
	want := []uint16{0x2A05, 0x2A39, 0x2A37, 0x2A3A}
	if st.Len() != len(want) {
		t.Fatalf("Expected %d slots, got %d", len(want), st.Len())
	}
	for i, short := range want {
		slot := st.Slot(i)
		if UUIDString(slot.UUID) != UUIDString(UUID16(short)) {
			t.Errorf("Slot %d: expected %04X, got %s", i, short, UUIDString(slot.UUID))
		}
		if slot.Index != i {
			t.Errorf("Slot %d: expected Index %d, got %d", i, i, slot.Index)
		}
	}

	// priority 1 is unused and stays as an empty tier
	if got := st.TierSizes(); !reflect.DeepEqual(got, []int{2, 0, 2}) {
		t.Errorf("Expected tier sizes [2 0 2], got %v", got)
	}
}

func TestSlotLookups(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{heartRateService()})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}
	st := table.Slots

	control, ok := st.ByUUID(UUID16(0x2A39))
	if !ok {
		t.Fatal("Expected control point slot")
	}
	if control.Index != 0 || !control.CanIndicate() || control.CanNotify() {
		t.Errorf("Unexpected control point slot %+v", control)
	}
	if control.Label() != "control" {
		t.Errorf("Expected label 'control', got %q", control.Label())
	}

	byValue, ok := st.ByValueHandle(control.ValueHandle)
	if !ok || byValue.Index != control.Index {
		t.Errorf("Expected value handle lookup to find slot %d", control.Index)
	}
	byCCCD, ok := st.ByCCCDHandle(control.CCCDHandle)
	if !ok || byCCCD.Index != control.Index {
		t.Errorf("Expected CCCD handle lookup to find slot %d", control.Index)
	}

	if _, ok := st.ByValueHandle(control.CCCDHandle); ok {
		t.Error("Expected CCCD handle to miss the value handle index")
	}
	if _, ok := st.ByUUID(UUID16(0x2A38)); ok {
		t.Error("Expected read-only characteristic to have no slot")
	}

	sizes := st.TierSizes()
	sizes[0] = 99
	if st.TierSizes()[0] == 99 {
		t.Error("Expected TierSizes to return a copy")
	}
}

func TestSlotLabelFallsBackToUUID(t *testing.T) {
	s := Slot{UUID: UUID16(0x2A37)}
	if s.Label() != "2A37" {
		t.Errorf("Expected 2A37, got %q", s.Label())
	}
}

func TestSlotPriorityRange(t *testing.T) {
	tests := []struct {
		name     string
		priority int
		wantErr  bool
	}{
		{"Highest", 0, false},
		{"Lowest", MaxPriority, false},
		{"Negative", -1, true},
		{"Beyond lowest", MaxPriority + 1, true},
		{"Huge", 100000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := BuildAttributeDatabase([]Service{{
				UUID:            UUID16(0x180D),
				Primary:         true,
				Characteristics: []Characteristic{NewNotifyCharacteristic(UUID16(0x2A37), tt.priority, nil)},
			}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if err == nil && len(table.Slots.TierSizes()) != tt.priority+1 {
				t.Errorf("Expected %d tiers, got %d", tt.priority+1, len(table.Slots.TierSizes()))
			}
		})
	}
}
