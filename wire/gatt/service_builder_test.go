package gatt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func heartRateService() Service {
	return Service{
		UUID:    UUID16(0x180D),
		Primary: true,
		Characteristics: []Characteristic{
			{
				UUID:       UUID16(0x2A37), // Heart Rate Measurement
				Name:       "hr",
				Properties: PropNotify,
				Priority:   1,
				Value:      []byte{0x00, 72},
			},
			{
				UUID:       UUID16(0x2A38), // Body Sensor Location
				Properties: PropRead,
				Value:      []byte{0x01},
			},
			{
				UUID:       UUID16(0x2A39), // Control Point
				Name:       "control",
				Properties: PropWrite | PropIndicate,
				Priority:   0,
				Value:      []byte{0x00},
			},
		},
	}
}

func TestBuildSimpleService(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{NewGenericAccessService("Test Device", 0x0340)})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	// service decl + 2 x (decl + value)
	if table.DB.Count() != 5 {
		t.Errorf("Expected 5 attributes, got %d", table.DB.Count())
	}

	info := table.Services[0]
	if info.StartHandle != 1 || info.EndHandle != 5 {
		t.Errorf("Expected handles 1..5, got %d..%d", info.StartHandle, info.EndHandle)
	}

	handle, err := FindCharacteristicHandle(info, UUID16(0x2A00))
	if err != nil {
		t.Fatalf("Failed to find characteristic handle: %v", err)
	}
	value, _ := table.DB.ReadValue(handle, -1)
	if string(value) != "Test Device" {
		t.Errorf("Expected 'Test Device', got %q", value)
	}

	if table.Slots.Len() != 0 {
		t.Errorf("Expected no slots for read-only characteristics, got %d", table.Slots.Len())
	}
}

func TestCharacteristicDeclarationPointsAtValue(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{heartRateService()})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	decls := table.DB.FindAttributesByType(1, 0xFFFF, UUIDCharacteristic)
	if len(decls) != 3 {
		t.Fatalf("Expected 3 characteristic declarations, got %d", len(decls))
	}

	for _, decl := range decls {
		attr, _ := table.DB.GetAttribute(decl)
		valueHandle := binary.LittleEndian.Uint16(attr.Value[1:3])
		if valueHandle != decl+1 {
			t.Errorf("Declaration 0x%04X points at 0x%04X, expected 0x%04X", decl, valueHandle, decl+1)
		}

		value, _ := table.DB.GetAttribute(valueHandle)
		if !bytes.Equal(value.Type, attr.Value[3:]) {
			t.Errorf("Expected value type % X, got % X", attr.Value[3:], value.Type)
		}
	}
}

func TestNotifyCharacteristicAddsCCCD(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{heartRateService()})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	cccds := table.DB.FindAttributesByType(1, 0xFFFF, UUIDClientCharacteristicConfig)
	if len(cccds) != 2 {
		t.Fatalf("Expected 2 CCCDs, got %d", len(cccds))
	}

	for _, handle := range cccds {
		attr, _ := table.DB.GetAttribute(handle)
		if !bytes.Equal(attr.Value, []byte{0x00, 0x00}) {
			t.Errorf("Expected CCCD 0x%04X to start disabled, got % X", handle, attr.Value)
		}
		if attr.Permissions&PermWritable == 0 {
			t.Errorf("Expected CCCD 0x%04X to be writable", handle)
		}
	}
}

func TestDescriptorsFollowCCCD(t *testing.T) {
	service := NewGenericAttributeService()
	service.Characteristics[0].Descriptors = []Descriptor{
		{UUID: UUIDCharUserDescription, Value: []byte("changes")},
	}

	table, err := BuildAttributeDatabase([]Service{service})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	slot, ok := table.Slots.ByUUID(UUID16(0x2A05))
	if !ok {
		t.Fatal("Expected Service Changed to have a slot")
	}
	if slot.CCCDHandle != slot.ValueHandle+1 {
		t.Errorf("Expected CCCD right after value, got value 0x%04X cccd 0x%04X", slot.ValueHandle, slot.CCCDHandle)
	}

	desc, _ := table.DB.GetAttribute(slot.CCCDHandle + 1)
	if string(desc.Value) != "changes" {
		t.Errorf("Expected user description after CCCD, got %q", desc.Value)
	}
}

func TestMultipleServices(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{
		NewGenericAccessService("Device A", 0),
		heartRateService(),
	})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	first, second := table.Services[0], table.Services[1]
	if first.EndHandle >= second.StartHandle {
		t.Errorf("Expected non-overlapping services, got %d..%d and %d..%d",
			first.StartHandle, first.EndHandle, second.StartHandle, second.EndHandle)
	}
	if second.EndHandle != uint16(table.DB.Count()) {
		t.Errorf("Expected last service to end at %d, got %d", table.DB.Count(), second.EndHandle)
	}

	if _, err := FindCharacteristicHandle(first, UUID16(0x2A37)); err == nil {
		t.Error("Expected heart rate characteristic to be missing from Generic Access")
	}
}

func TestSecondaryService(t *testing.T) {
	table, err := BuildAttributeDatabase([]Service{{UUID: UUID16(0x1234), Primary: false}})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	attr, _ := table.DB.GetAttribute(table.Services[0].ServiceHandle)
	if !bytes.Equal(attr.Type, UUIDSecondaryService) {
		t.Errorf("Expected secondary service declaration, got % X", attr.Type)
	}
}

func TestBuildRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		services []Service
	}{
		{"service uuid", []Service{{UUID: []byte{1, 2, 3}}}},
		{"characteristic uuid", []Service{{
			UUID:            UUID16(0x1234),
			Characteristics: []Characteristic{{UUID: []byte{1}, Properties: PropRead}},
		}}},
		{"negative priority", []Service{{
			UUID:            UUID16(0x1234),
			Characteristics: []Characteristic{NewNotifyCharacteristic(UUID16(0x5678), -1, nil)},
		}}},
		{"duplicate slot", []Service{{
			UUID: UUID16(0x1234),
			Characteristics: []Characteristic{
				NewNotifyCharacteristic(UUID16(0x5678), 0, nil),
				NewIndicateCharacteristic(UUID16(0x5678), 1, nil),
			},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildAttributeDatabase(tt.services); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
