package ll

import "fmt"

// LL data channel PDU [Vol 6, Part B, 2.4]
// Header byte 0: LLID bits 0-1, NESN bit 2, SN bit 3, MD bit 4
// Header byte 1: payload length
const HeaderLen = 2

// MaxPayload is the largest payload with the LE Data Length Extension
const MaxPayload = 251

// LLID values
const (
	LLIDContinuation = 0x01 // continuation fragment or empty PDU
	LLIDStart        = 0x02 // start of an L2CAP message
	LLIDControl      = 0x03 // LL control PDU
)

const (
	llidMask = 0x03
	nesnBit  = 0x04
	snBit    = 0x08
	mdBit    = 0x10
)

// PDU is an encoded data channel PDU
type PDU []byte

func (p PDU) LLID() uint8     { return p[0] & llidMask }
func (p PDU) NESN() bool      { return p[0]&nesnBit != 0 }
func (p PDU) SN() bool        { return p[0]&snBit != 0 }
func (p PDU) MD() bool        { return p[0]&mdBit != 0 }
func (p PDU) Len() int        { return int(p[1]) }
func (p PDU) Payload() []byte { return p[HeaderLen : HeaderLen+p.Len()] }
func (p PDU) IsEmpty() bool   { return p.LLID() == LLIDContinuation && p.Len() == 0 }

// Encode builds a PDU carrying a complete L2CAP frame, or an empty PDU when
// payload is empty
func Encode(sn, nesn, md bool, payload []byte) (PDU, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("ll: payload of %d bytes exceeds %d", len(payload), MaxPayload)
	}

	hdr := uint8(LLIDStart)
	if len(payload) == 0 {
		hdr = LLIDContinuation
	}
	if nesn {
		hdr |= nesnBit
	}
	if sn {
		hdr |= snBit
	}
	if md {
		hdr |= mdBit
	}

	p := make(PDU, HeaderLen+len(payload))
	p[0] = hdr
	p[1] = uint8(len(payload))
	copy(p[HeaderLen:], payload)
	return p, nil
}

// Decode validates a received frame
func Decode(frame []byte) (PDU, error) {
	if len(frame) < HeaderLen {
		return nil, fmt.Errorf("ll: PDU too short (%d bytes)", len(frame))
	}
	p := PDU(frame)
	if p.LLID() == 0 {
		return nil, fmt.Errorf("ll: reserved LLID")
	}
	if len(frame) < HeaderLen+p.Len() {
		return nil, fmt.Errorf("ll: incomplete PDU (claimed %d, got %d)", p.Len(), len(frame)-HeaderLen)
	}
	return p[:HeaderLen+p.Len()], nil
}
