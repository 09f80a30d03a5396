package ll

import "testing"

// exchange models one connection event: a transmits, b answers
func exchange(t *testing.T, a, b *Sequence, aPayload, bPayload []byte, dropDown, dropUp bool) (aAcked, aFresh, bAcked, bFresh bool) {
	t.Helper()
	down, _ := a.Stamp(aPayload, false)
	if dropDown {
		return
	}
	bAcked, bFresh = b.Receive(down)
	up, _ := b.Stamp(bPayload, false)
	if dropUp {
		return
	}
	aAcked, aFresh = a.Receive(up)
	return
}

func TestSequenceLossless(t *testing.T) {
	var server, central Sequence

	for i := 0; i < 4; i++ {
		sAcked, sFresh, cAcked, cFresh := exchange(t, &server, &central, []byte{byte(i)}, nil, false, false)
		if !cFresh {
			t.Errorf("Event %d: expected central to see new data", i)
		}
		if !sAcked || !sFresh {
			t.Errorf("Event %d: expected server acked and fresh, got %v %v", i, sAcked, sFresh)
		}
		// the first central PDU has nothing of the central's to acknowledge
		if i > 0 && !cAcked {
			t.Errorf("Event %d: expected central's previous PDU to be acknowledged", i)
		}
	}
}

func TestSequenceDownlinkLoss(t *testing.T) {
	var server, central Sequence

	exchange(t, &server, &central, []byte{1}, nil, true, false)

	// retransmission carries the same SN and is fresh to the central
	_, _, _, cFresh := exchange(t, &server, &central, []byte{1}, nil, false, false)
	if !cFresh {
		t.Error("Expected retransmission after downlink loss to be new to the central")
	}
}

func TestSequenceUplinkLossFiltersDuplicate(t *testing.T) {
	var server, central Sequence

	_, _, _, cFresh := exchange(t, &server, &central, []byte{1}, []byte{9}, false, true)
	if !cFresh {
		t.Fatal("Expected first delivery to be fresh")
	}

	// server did not hear the answer, so it retransmits; the central must
	// recognise the duplicate and the server must now see the answer as new
	sAcked, sFresh, _, cFresh := exchange(t, &server, &central, []byte{1}, []byte{9}, false, false)
	if cFresh {
		t.Error("Expected retransmitted PDU to be a duplicate for the central")
	}
	if !sAcked || !sFresh {
		t.Errorf("Expected server acked and fresh, got %v %v", sAcked, sFresh)
	}
}

func TestSequenceReset(t *testing.T) {
	s := Sequence{sn: true, nesn: true}
	s.Reset()
	p, _ := s.Stamp(nil, false)
	if p.SN() || p.NESN() {
		t.Error("Expected reset sequence to stamp SN=0 NESN=0")
	}
}
