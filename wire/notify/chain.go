package notify

import "fmt"

// chain is an ordered list of tiers, highest dispatch priority first.
// The global index space is the concatenation of the tier ranges.
type chain struct {
	tiers []tier
	size  int
}

// newChain lays out one tier per non-zero size over a single backing array
func newChain(sizes []int) chain {
	total, storage, count := 0, 0, 0
	for _, size := range sizes {
		if size < 0 {
			panic(fmt.Sprintf("notify: negative tier size %d", size))
		}
		if size == 0 {
			continue
		}
		total += size
		storage += entriesLen(size)
		count++
	}

	c := chain{
		tiers: make([]tier, 0, count),
		size:  total,
	}
	backing := make(entries, storage)

	offset, pos := 0, 0
	for _, size := range sizes {
		if size == 0 {
			continue
		}
		n := entriesLen(size)
		c.tiers = append(c.tiers, newTier(offset, size, backing[pos:pos+n:pos+n]))
		offset += size
		pos += n
	}

	return c
}

// route returns the position of the tier owning the global index and the
// tier-local index
func (c *chain) route(index int) (int, int) {
	local := index
	for k := range c.tiers {
		if local < 0 {
			break
		}
		if local < c.tiers[k].size {
			return k, local
		}
		local -= c.tiers[k].size
	}
	panic(fmt.Sprintf("notify: slot index %d out of range [0, %d)", index, c.size))
}

func (c *chain) queueNotification(index int) bool {
	k, i := c.route(index)
	return c.tiers[k].queueNotification(i)
}

func (c *chain) queueIndication(index int) bool {
	k, i := c.route(index)
	return c.tiers[k].queueIndication(i)
}

func (c *chain) indicationConfirmed() {
	for k := range c.tiers {
		c.tiers[k].indicationConfirmed()
	}
}

// awaitingConfirmation reports whether any tier has an unconfirmed indication
func (c *chain) awaitingConfirmation() bool {
	for k := range c.tiers {
		if c.tiers[k].awaitingConfirmation() {
			return true
		}
	}
	return false
}

// dequeue asks each tier in priority order and returns the first hit,
// re-based to the global index space. With connectionGate set, one
// unconfirmed indication anywhere closes the gate for every tier.
func (c *chain) dequeue(connectionGate bool) (Kind, int) {
	blocked := connectionGate && c.awaitingConfirmation()

	for k := range c.tiers {
		t := &c.tiers[k]

		gateOpen := !t.awaitingConfirmation()
		if connectionGate {
			gateOpen = !blocked
		}

		if kind, i := t.dequeue(gateOpen); kind != Empty {
			return kind, i + t.offset
		}
	}

	return Empty, 0
}

func (c *chain) clear() {
	for k := range c.tiers {
		c.tiers[k].clear()
	}
}
