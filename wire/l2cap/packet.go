package l2cap

import (
	"encoding/binary"
	"fmt"
)

// L2CAP fixed channel IDs used on an LE-U logical link
const (
	ChannelATT      uint16 = 0x0004 // Attribute Protocol
	ChannelLESignal uint16 = 0x0005 // LE L2CAP Signaling
	ChannelSMP      uint16 = 0x0006 // Security Manager Protocol
)

// HeaderLen is Length (2 bytes) + Channel ID (2 bytes)
const HeaderLen = 4

// Packet represents an L2CAP basic frame
// Format: [Length: 2 bytes] [Channel ID: 2 bytes] [Payload: N bytes]
type Packet struct {
	ChannelID uint16 // L2CAP channel identifier
	Payload   []byte // The actual data (ATT/SMP/etc.)
}

// Encode serializes an L2CAP packet to binary format
func (p *Packet) Encode() []byte {
	buf := make([]byte, HeaderLen+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(p.Payload)))
	binary.LittleEndian.PutUint16(buf[2:4], p.ChannelID)
	copy(buf[4:], p.Payload)
	return buf
}

// Decode parses binary data into an L2CAP packet
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderLen {
		return nil, fmt.Errorf("l2cap: packet too short (need at least %d bytes, got %d)", HeaderLen, len(data))
	}

	length := binary.LittleEndian.Uint16(data[0:2])
	channelID := binary.LittleEndian.Uint16(data[2:4])

	if len(data) < HeaderLen+int(length) {
		return nil, fmt.Errorf("l2cap: incomplete packet (claimed length %d, got %d)", length, len(data)-HeaderLen)
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderLen:HeaderLen+int(length)])

	return &Packet{
		ChannelID: channelID,
		Payload:   payload,
	}, nil
}

// NewATTPacket creates an L2CAP packet for the ATT channel
func NewATTPacket(payload []byte) *Packet {
	return &Packet{
		ChannelID: ChannelATT,
		Payload:   payload,
	}
}

// EncodeATT frames an ATT PDU for the ATT channel
func EncodeATT(pdu []byte) []byte {
	return NewATTPacket(pdu).Encode()
}

// DecodeATT unframes an ATT PDU. ok is false for frames on other channels.
func DecodeATT(data []byte) (pdu []byte, ok bool, err error) {
	pkt, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	if pkt.ChannelID != ChannelATT {
		return nil, false, nil
	}
	return pkt.Payload, true, nil
}
