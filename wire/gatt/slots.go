package gatt

import (
	"fmt"
	"sort"
)

// MaxPriority is the lowest dispatch priority a characteristic may use
const MaxPriority = 255

// Slot is a notify/indicate characteristic's position in the dispatch queue.
// Slots are numbered by priority: all priority 0 slots first, then priority 1
// and so on, in declaration order within a priority.
type Slot struct {
	Index       int
	Priority    int
	UUID        []byte
	Name        string
	Properties  uint8
	ValueHandle uint16
	CCCDHandle  uint16
}

// CanNotify reports whether the characteristic declares PropNotify
func (s Slot) CanNotify() bool { return s.Properties&PropNotify != 0 }

// CanIndicate reports whether the characteristic declares PropIndicate
func (s Slot) CanIndicate() bool { return s.Properties&PropIndicate != 0 }

// Label is Name, or the UUID when the characteristic has no name
func (s Slot) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return UUIDString(s.UUID)
}

// SlotTable maps characteristics to queue slots and back
type SlotTable struct {
	slots     []Slot
	tierSizes []int
	byValue   map[uint16]int
	byCCCD    map[uint16]int
	byUUID    map[string]int
}

func newSlotTable(candidates []Slot) (*SlotTable, error) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	st := &SlotTable{
		slots:   candidates,
		byValue: make(map[uint16]int, len(candidates)),
		byCCCD:  make(map[uint16]int, len(candidates)),
		byUUID:  make(map[string]int, len(candidates)),
	}

	for i := range st.slots {
		s := &st.slots[i]
		if s.Priority < 0 || s.Priority > MaxPriority {
			return nil, fmt.Errorf("gatt: characteristic %s priority %d out of range (0-%d)", s.Label(), s.Priority, MaxPriority)
		}

		key := uuidKey(s.UUID)
		if _, dup := st.byUUID[key]; dup {
			return nil, fmt.Errorf("gatt: characteristic %s is declared twice", UUIDString(s.UUID))
		}

		s.Index = i
		st.byValue[s.ValueHandle] = i
		st.byCCCD[s.CCCDHandle] = i
		st.byUUID[key] = i

		for len(st.tierSizes) <= s.Priority {
			st.tierSizes = append(st.tierSizes, 0)
		}
		st.tierSizes[s.Priority]++
	}

	return st, nil
}

// Len returns the number of slots
func (st *SlotTable) Len() int { return len(st.slots) }

// TierSizes returns the slot count per priority, highest priority first.
// Priorities nobody uses show up as zero-sized tiers.
func (st *SlotTable) TierSizes() []int {
	return append([]int{}, st.tierSizes...)
}

// Slot returns slot i
func (st *SlotTable) Slot(i int) Slot {
	return st.slots[i]
}

// ByValueHandle looks a slot up by characteristic value handle
func (st *SlotTable) ByValueHandle(handle uint16) (Slot, bool) {
	i, ok := st.byValue[handle]
	if !ok {
		return Slot{}, false
	}
	return st.slots[i], true
}

// ByCCCDHandle looks a slot up by the handle of its CCCD
func (st *SlotTable) ByCCCDHandle(handle uint16) (Slot, bool) {
	i, ok := st.byCCCD[handle]
	if !ok {
		return Slot{}, false
	}
	return st.slots[i], true
}

// ByUUID looks a slot up by characteristic UUID
func (st *SlotTable) ByUUID(uuid []byte) (Slot, bool) {
	i, ok := st.byUUID[uuidKey(uuid)]
	if !ok {
		return Slot{}, false
	}
	return st.slots[i], true
}
