package gatt

import (
	"bytes"
	"fmt"
	"sync"
)

// Well-known GATT UUIDs (16-bit, little-endian)
var (
	UUIDPrimaryService   = []byte{0x00, 0x28} // 0x2800
	UUIDSecondaryService = []byte{0x01, 0x28} // 0x2801
	UUIDCharacteristic   = []byte{0x03, 0x28} // 0x2803

	UUIDCharUserDescription        = []byte{0x01, 0x29} // 0x2901
	UUIDClientCharacteristicConfig = []byte{0x02, 0x29} // 0x2902 (CCCD)
)

// Characteristic Properties (bitmask)
const (
	PropBroadcast            = 0x01
	PropRead                 = 0x02
	PropWriteWithoutResponse = 0x04
	PropWrite                = 0x08
	PropNotify               = 0x10
	PropIndicate             = 0x20
)

// Attribute permissions (not transmitted over the air, server-side only)
const (
	PermReadable = 0x01
	PermWritable = 0x02
)

// Attribute represents a single GATT attribute with a handle
type Attribute struct {
	Handle      uint16 // ATT handle (1-based, 0x0000 is reserved)
	Type        []byte // UUID (2 or 16 bytes)
	Value       []byte // Current value
	Permissions uint8  // Read/Write permissions
}

// AttributeDatabase is the server's attribute table.
// Values change at runtime (characteristic updates) while the layout is fixed
// once built.
type AttributeDatabase struct {
	mu         sync.RWMutex
	attributes []*Attribute // index = handle - 1
}

// NewAttributeDatabase creates an empty attribute database
func NewAttributeDatabase() *AttributeDatabase {
	return &AttributeDatabase{}
}

// NextHandle returns the handle the next AddAttribute call will assign
func (db *AttributeDatabase) NextHandle() uint16 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return uint16(len(db.attributes) + 1)
}

// AddAttribute adds an attribute and assigns it the next handle
func (db *AttributeDatabase) AddAttribute(attrType []byte, value []byte, permissions uint8) uint16 {
	db.mu.Lock()
	defer db.mu.Unlock()

	handle := uint16(len(db.attributes) + 1)
	db.attributes = append(db.attributes, &Attribute{
		Handle:      handle,
		Type:        append([]byte{}, attrType...), // Copy to avoid aliasing
		Value:       append([]byte{}, value...),
		Permissions: permissions,
	})

	return handle
}

func (db *AttributeDatabase) lookup(handle uint16) (*Attribute, error) {
	if handle == 0 || int(handle) > len(db.attributes) {
		return nil, fmt.Errorf("gatt: invalid handle 0x%04X", handle)
	}
	return db.attributes[handle-1], nil
}

// GetAttribute retrieves a copy of an attribute by handle
func (db *AttributeDatabase) GetAttribute(handle uint16) (*Attribute, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	attr, err := db.lookup(handle)
	if err != nil {
		return nil, err
	}

	return &Attribute{
		Handle:      attr.Handle,
		Type:        append([]byte{}, attr.Type...),
		Value:       append([]byte{}, attr.Value...),
		Permissions: attr.Permissions,
	}, nil
}

// ReadValue copies up to max bytes of an attribute value (max < 0 copies all)
func (db *AttributeDatabase) ReadValue(handle uint16, max int) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	attr, err := db.lookup(handle)
	if err != nil {
		return nil, err
	}

	value := attr.Value
	if max >= 0 && len(value) > max {
		value = value[:max]
	}
	return append([]byte{}, value...), nil
}

// SetAttributeValue updates an attribute's value
func (db *AttributeDatabase) SetAttributeValue(handle uint16, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	attr, err := db.lookup(handle)
	if err != nil {
		return err
	}

	attr.Value = append([]byte{}, value...)
	return nil
}

// FindAttributesByType returns all handles with matching type UUID in a range
func (db *AttributeDatabase) FindAttributesByType(startHandle, endHandle uint16, attrType []byte) []uint16 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var handles []uint16
	for _, attr := range db.attributes {
		if attr.Handle < startHandle || attr.Handle > endHandle {
			continue
		}
		if bytes.Equal(attr.Type, attrType) {
			handles = append(handles, attr.Handle)
		}
	}

	return handles
}

// Count returns the number of attributes in the database
func (db *AttributeDatabase) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.attributes)
}
