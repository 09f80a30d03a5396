package notify

// noConfirmation marks a tier (or queue) without an unconfirmed indication
const noConfirmation = -1

// tier is a fixed-size group of slots sharing one round-robin cursor and one
// outstanding-confirmation marker. All indices are tier-local.
type tier struct {
	offset int // first global index of this tier
	size   int

	next        int // slot examined first by the next scan
	outstanding int // tier-local slot awaiting confirmation, or noConfirmation
	queue       entries
}

func newTier(offset, size int, storage entries) tier {
	t := tier{
		offset: offset,
		size:   size,
		queue:  storage,
	}
	t.clear()
	return t
}

func (t *tier) queueNotification(i int) bool {
	return t.queue.add(i, notificationBit)
}

// queueIndication refuses to queue while slot i's previous indication awaits confirmation
func (t *tier) queueIndication(i int) bool {
	if t.outstanding == i {
		return false
	}
	return t.queue.add(i, indicationBit)
}

func (t *tier) indicationConfirmed() {
	t.outstanding = noConfirmation
}

func (t *tier) awaitingConfirmation() bool {
	return t.outstanding != noConfirmation
}

// dequeue performs one circular scan starting at the cursor.
// gateOpen tells whether an indication may be handed out; notifications are
// never gated.
func (t *tier) dequeue(gateOpen bool) (Kind, int) {
	for n, i := 0, t.next; n < t.size; n++ {
		entry := t.queue.at(i)

		if entry&indicationBit != 0 && gateOpen {
			t.outstanding = i
			t.next = (i + 1) % t.size
			t.queue.remove(i, indicationBit)
			return Indication, i
		}

		if entry&notificationBit != 0 {
			t.next = (i + 1) % t.size
			t.queue.remove(i, notificationBit)
			return Notification, i
		}

		if i++; i == t.size {
			i = 0
		}
	}

	return Empty, 0
}

func (t *tier) clear() {
	t.next = 0
	t.outstanding = noConfirmation
	t.queue.reset()
}
