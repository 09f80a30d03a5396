package notify

// Per-slot entry bits. Each characteristic slot occupies bitsPerSlot bits of
// a tier's entry vector.
const (
	notificationBit uint8 = 0x01
	indicationBit   uint8 = 0x02

	bitsPerSlot = 2
	slotMask    = (1 << bitsPerSlot) - 1
)

// entries is a packed vector of 2-bit slot entries
// Layout: slot i lives in byte i/4 at bit offset (i%4)*2
type entries []byte

// entriesLen returns the number of bytes needed to store size slots
func entriesLen(size int) int {
	return (size*bitsPerSlot + 7) / 8
}

func (e entries) locate(index int) (byteOffset int, bitOffset uint) {
	return index * bitsPerSlot / 8, uint(index*bitsPerSlot) % 8
}

// at returns the entry bits of slot index
func (e entries) at(index int) uint8 {
	byteOffset, bitOffset := e.locate(index)
	return (e[byteOffset] >> bitOffset) & slotMask
}

// add sets bits for slot index and reports whether any of them was unset before
func (e entries) add(index int, bits uint8) bool {
	byteOffset, bitOffset := e.locate(index)
	mask := (bits & slotMask) << bitOffset

	added := e[byteOffset]&mask != mask
	e[byteOffset] |= mask
	return added
}

// remove clears bits for slot index
func (e entries) remove(index int, bits uint8) {
	byteOffset, bitOffset := e.locate(index)
	e[byteOffset] &^= (bits & slotMask) << bitOffset
}

// reset clears every slot
func (e entries) reset() {
	for i := range e {
		e[i] = 0
	}
}
