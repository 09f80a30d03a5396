package gatt

import (
	"encoding/binary"
	"sync"
)

// CCCD (Client Characteristic Configuration Descriptor) values
// These are written by clients to enable/disable notifications and indications
const (
	CCCDNotificationsDisabled = 0x0000
	CCCDNotificationsEnabled  = 0x0001
	CCCDIndicationsEnabled    = 0x0002
	CCCDBothEnabled           = 0x0003 // Both notifications and indications
)

// SubscriptionState represents the subscription state for a characteristic
type SubscriptionState struct {
	Handle          uint16 // Characteristic value handle
	NotifyEnabled   bool   // Notifications enabled
	IndicateEnabled bool   // Indications enabled
}

// Value returns the CCCD value for the state
func (s SubscriptionState) Value() uint16 {
	var v uint16
	if s.NotifyEnabled {
		v |= CCCDNotificationsEnabled
	}
	if s.IndicateEnabled {
		v |= CCCDIndicationsEnabled
	}
	return v
}

// CCCDManager manages CCCD subscriptions for one connection.
// State is never shared between connections; for bonded peers it outlives
// the connection through Snapshot and Restore.
type CCCDManager struct {
	mu sync.RWMutex
	// Map: characteristic value handle -> subscription state
	subscriptions map[uint16]*SubscriptionState
}

// NewCCCDManager creates a new CCCD manager for a connection
func NewCCCDManager() *CCCDManager {
	return &CCCDManager{
		subscriptions: make(map[uint16]*SubscriptionState),
	}
}

// SetSubscription updates the subscription state for a characteristic
// Takes the CCCD value (2 bytes, little-endian) written by the client
func (cm *CCCDManager) SetSubscription(charHandle uint16, cccdValue []byte) error {
	notify, indicate, err := DecodeCCCDValue(cccdValue)
	if err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.set(charHandle, notify, indicate)
	return nil
}

func (cm *CCCDManager) set(charHandle uint16, notify, indicate bool) {
	if !notify && !indicate {
		delete(cm.subscriptions, charHandle)
		return
	}

	state, exists := cm.subscriptions[charHandle]
	if !exists {
		state = &SubscriptionState{Handle: charHandle}
		cm.subscriptions[charHandle] = state
	}
	state.NotifyEnabled = notify
	state.IndicateEnabled = indicate
}

// GetSubscription returns the subscription state for a characteristic
func (cm *CCCDManager) GetSubscription(charHandle uint16) (SubscriptionState, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	state, exists := cm.subscriptions[charHandle]
	if !exists {
		return SubscriptionState{Handle: charHandle}, false
	}
	return *state, true
}

// IsSubscribed returns true if notifications or indications are enabled for a characteristic
func (cm *CCCDManager) IsSubscribed(charHandle uint16) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	_, exists := cm.subscriptions[charHandle]
	return exists
}

// IsNotifyEnabled returns true if notifications are enabled for a characteristic
func (cm *CCCDManager) IsNotifyEnabled(charHandle uint16) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	state, exists := cm.subscriptions[charHandle]
	return exists && state.NotifyEnabled
}

// IsIndicateEnabled returns true if indications are enabled for a characteristic
func (cm *CCCDManager) IsIndicateEnabled(charHandle uint16) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	state, exists := cm.subscriptions[charHandle]
	return exists && state.IndicateEnabled
}

// Snapshot returns the CCCD value of every active subscription, keyed by value handle
func (cm *CCCDManager) Snapshot() map[uint16]uint16 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	snap := make(map[uint16]uint16, len(cm.subscriptions))
	for handle, state := range cm.subscriptions {
		snap[handle] = state.Value()
	}
	return snap
}

// Restore replaces all subscriptions with a snapshot
func (cm *CCCDManager) Restore(snap map[uint16]uint16) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.subscriptions = make(map[uint16]*SubscriptionState, len(snap))
	for handle, value := range snap {
		cm.set(handle, value&CCCDNotificationsEnabled != 0, value&CCCDIndicationsEnabled != 0)
	}
}

// Clear removes all subscriptions (called when connection is closed)
func (cm *CCCDManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.subscriptions = make(map[uint16]*SubscriptionState)
}

// Count returns the number of active subscriptions
func (cm *CCCDManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return len(cm.subscriptions)
}

// EncodeCCCDValue converts subscription state to CCCD value bytes (little-endian)
func EncodeCCCDValue(notifyEnabled, indicateEnabled bool) []byte {
	cccdValue := make([]byte, 2)
	binary.LittleEndian.PutUint16(cccdValue, SubscriptionState{
		NotifyEnabled:   notifyEnabled,
		IndicateEnabled: indicateEnabled,
	}.Value())
	return cccdValue
}

// DecodeCCCDValue parses CCCD value bytes to notification/indication flags
func DecodeCCCDValue(cccdValue []byte) (notifyEnabled, indicateEnabled bool, err error) {
	if len(cccdValue) != 2 {
		return false, false, ErrInvalidAttributeValueLength
	}

	value := binary.LittleEndian.Uint16(cccdValue)
	notifyEnabled = (value & CCCDNotificationsEnabled) != 0
	indicateEnabled = (value & CCCDIndicationsEnabled) != 0

	return notifyEnabled, indicateEnabled, nil
}

// ErrInvalidAttributeValueLength is returned when CCCD value has incorrect length
var ErrInvalidAttributeValueLength = &Error{Code: 0x0D, Description: "Invalid Attribute Value Length"}

// Error represents a GATT error carrying its ATT error code
type Error struct {
	Code        uint8
	Description string
}

func (e *Error) Error() string {
	return e.Description
}
