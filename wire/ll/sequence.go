package ll

// Sequence is one side's acknowledgement state [Vol 6, Part B, 4.5.9].
// A PDU is new data when its SN equals our NESN; our last PDU was
// acknowledged when the peer's NESN differs from our SN.
type Sequence struct {
	sn   bool
	nesn bool
}

// Stamp encodes payload with the current SN and NESN
func (s *Sequence) Stamp(payload []byte, md bool) (PDU, error) {
	return Encode(s.sn, s.nesn, md, payload)
}

// Receive processes the header of a PDU received from the peer
func (s *Sequence) Receive(p PDU) (acked, fresh bool) {
	if p.NESN() != s.sn {
		s.sn = !s.sn
		acked = true
	}
	if p.SN() == s.nesn {
		s.nesn = !s.nesn
		fresh = true
	}
	return acked, fresh
}

// Reset returns to the state at connection setup
func (s *Sequence) Reset() {
	s.sn, s.nesn = false, false
}
