package gatt

import (
	"encoding/binary"
	"fmt"
)

// Service represents a high-level GATT service definition
type Service struct {
	UUID            []byte           // Service UUID (2 or 16 bytes)
	Primary         bool             // true = primary service, false = secondary
	Characteristics []Characteristic // List of characteristics in this service
}

// Characteristic represents a high-level GATT characteristic definition
type Characteristic struct {
	UUID        []byte       // Characteristic UUID (2 or 16 bytes)
	Name        string       // Optional, used in logs
	Properties  uint8        // Characteristic properties (read, write, notify, etc.)
	Priority    int          // Dispatch priority for notify/indicate, 0 is highest
	Value       []byte       // Initial value
	Descriptors []Descriptor // Optional descriptors (user description, etc.)
}

// Descriptor represents a GATT descriptor
type Descriptor struct {
	UUID  []byte // Descriptor UUID (2 or 16 bytes)
	Value []byte // Descriptor value
}

// ServiceHandleInfo stores the handle ranges for a built service
type ServiceHandleInfo struct {
	ServiceHandle uint16            // Handle of the service declaration
	StartHandle   uint16            // First handle in the service
	EndHandle     uint16            // Last handle in the service
	CharHandles   map[string]uint16 // UUID -> characteristic value handle
}

// Table is a built attribute table: the database, where each service landed
// and the dispatch slots of its notify/indicate characteristics.
type Table struct {
	DB       *AttributeDatabase
	Services []*ServiceHandleInfo
	Slots    *SlotTable
}

// BuildAttributeDatabase converts high-level service definitions into an attribute database
func BuildAttributeDatabase(services []Service) (*Table, error) {
	db := NewAttributeDatabase()
	table := &Table{DB: db}

	var candidates []Slot
	for _, service := range services {
		if !IsUUID16(service.UUID) && !IsUUID128(service.UUID) {
			return nil, fmt.Errorf("gatt: service UUID must be 2 or 16 bytes, got %d", len(service.UUID))
		}

		info, slots, err := buildService(db, service)
		if err != nil {
			return nil, err
		}
		table.Services = append(table.Services, info)
		candidates = append(candidates, slots...)
	}

	slots, err := newSlotTable(candidates)
	if err != nil {
		return nil, err
	}
	table.Slots = slots

	return table, nil
}

// buildService adds a single service and its characteristics to the database
func buildService(db *AttributeDatabase, service Service) (*ServiceHandleInfo, []Slot, error) {
	info := &ServiceHandleInfo{
		CharHandles: make(map[string]uint16),
	}

	serviceType := UUIDSecondaryService
	if service.Primary {
		serviceType = UUIDPrimaryService
	}

	info.ServiceHandle = db.AddAttribute(serviceType, service.UUID, PermReadable)
	info.StartHandle = info.ServiceHandle

	var slots []Slot
	for _, char := range service.Characteristics {
		if !IsUUID16(char.UUID) && !IsUUID128(char.UUID) {
			return nil, nil, fmt.Errorf("gatt: characteristic UUID must be 2 or 16 bytes, got %d", len(char.UUID))
		}

		charInfo := buildCharacteristic(db, char)
		info.CharHandles[uuidKey(char.UUID)] = charInfo.ValueHandle

		if charInfo.CCCDHandle != 0 {
			slots = append(slots, Slot{
				Priority:    char.Priority,
				UUID:        append([]byte{}, char.UUID...),
				Name:        char.Name,
				Properties:  char.Properties,
				ValueHandle: charInfo.ValueHandle,
				CCCDHandle:  charInfo.CCCDHandle,
			})
		}
	}

	info.EndHandle = db.NextHandle() - 1

	return info, slots, nil
}

// charHandleInfo stores handle information for a characteristic
type charHandleInfo struct {
	DeclarationHandle uint16   // Handle of the characteristic declaration
	ValueHandle       uint16   // Handle of the characteristic value
	CCCDHandle        uint16   // 0 unless the characteristic notifies or indicates
	DescriptorHandles []uint16 // Handles of the other descriptors
}

// buildCharacteristic adds a characteristic and its descriptors to the database
func buildCharacteristic(db *AttributeDatabase, char Characteristic) *charHandleInfo {
	info := &charHandleInfo{}

	// Format: [Properties: 1 byte][Value Handle: 2 bytes][UUID: 2 or 16 bytes]
	declValue := make([]byte, 3+len(char.UUID))
	declValue[0] = char.Properties
	binary.LittleEndian.PutUint16(declValue[1:3], db.NextHandle()+1) // Next handle will be the value
	copy(declValue[3:], char.UUID)

	info.DeclarationHandle = db.AddAttribute(UUIDCharacteristic, declValue, PermReadable)
	info.ValueHandle = db.AddAttribute(char.UUID, char.Value, determinePermissions(char.Properties))

	if char.Properties&(PropNotify|PropIndicate) != 0 {
		// CCCD starts with notifications and indications disabled
		info.CCCDHandle = db.AddAttribute(UUIDClientCharacteristicConfig, []byte{0x00, 0x00}, PermReadable|PermWritable)
	}

	for _, desc := range char.Descriptors {
		descHandle := db.AddAttribute(desc.UUID, desc.Value, PermReadable)
		info.DescriptorHandles = append(info.DescriptorHandles, descHandle)
	}

	return info
}

// determinePermissions converts characteristic properties to attribute permissions
func determinePermissions(properties uint8) uint8 {
	var perms uint8

	if properties&PropRead != 0 {
		perms |= PermReadable
	}

	if properties&(PropWrite|PropWriteWithoutResponse) != 0 {
		perms |= PermWritable
	}

	return perms
}

// uuidKey converts a UUID byte slice to a string for map keys
func uuidKey(uuid []byte) string {
	return fmt.Sprintf("%x", uuid)
}

// NewGenericAccessService creates the mandatory Generic Access service (0x1800)
func NewGenericAccessService(deviceName string, appearance uint16) Service {
	return Service{
		UUID:    UUID16(0x1800),
		Primary: true,
		Characteristics: []Characteristic{
			{
				UUID:       UUID16(0x2A00), // Device Name
				Properties: PropRead,
				Value:      []byte(deviceName),
			},
			{
				UUID:       UUID16(0x2A01), // Appearance
				Properties: PropRead,
				Value:      []byte{byte(appearance), byte(appearance >> 8)},
			},
		},
	}
}

// NewGenericAttributeService creates the Generic Attribute service (0x1801)
// with an indicating Service Changed characteristic at top priority
func NewGenericAttributeService() Service {
	return Service{
		UUID:    UUID16(0x1801),
		Primary: true,
		Characteristics: []Characteristic{
			{
				UUID:       UUID16(0x2A05),
				Name:       "service-changed",
				Properties: PropIndicate,
				Value:      []byte{0x00, 0x00, 0x00, 0x00}, // Start handle, end handle
			},
		},
	}
}

// NewNotifyCharacteristic creates a characteristic with read/notify properties
func NewNotifyCharacteristic(uuid []byte, priority int, initialValue []byte) Characteristic {
	return Characteristic{
		UUID:       uuid,
		Properties: PropRead | PropNotify,
		Priority:   priority,
		Value:      initialValue,
	}
}

// NewIndicateCharacteristic creates a characteristic with read/indicate properties
func NewIndicateCharacteristic(uuid []byte, priority int, initialValue []byte) Characteristic {
	return Characteristic{
		UUID:       uuid,
		Properties: PropRead | PropIndicate,
		Priority:   priority,
		Value:      initialValue,
	}
}

// FindCharacteristicHandle finds the value handle for a characteristic UUID in a service
func FindCharacteristicHandle(serviceInfo *ServiceHandleInfo, charUUID []byte) (uint16, error) {
	key := uuidKey(charUUID)
	handle, ok := serviceInfo.CharHandles[key]
	if !ok {
		return 0, fmt.Errorf("gatt: characteristic %s not found in service", UUIDString(charUUID))
	}
	return handle, nil
}
