package wire

import (
	"time"

	"github.com/user/gatt-dispatch/wire/att"
	"github.com/user/gatt-dispatch/wire/l2cap"
	"github.com/user/gatt-dispatch/wire/ll"
)

// Link layer timing
const (
	// TIFS is the inter frame space between a PDU and its answer
	TIFS = 150 * time.Microsecond

	// DefaultReceiveWindow is how long the radio listens for the answer
	DefaultReceiveWindow = 2 * time.Millisecond
)

// Data channel hopping (channel selection algorithm #1)
const (
	NumDataChannels     = 37
	MinHopIncrement     = 5
	MaxHopIncrement     = 16
	DefaultHopIncrement = 7
)

// MTU limits - an ATT PDU plus its L2CAP header must fit into one LL PDU
const (
	DefaultMTU = att.DefaultMTU
	MaxMTU     = ll.MaxPayload - l2cap.HeaderLen // 247
)

// ConnectionState represents BLE connection states
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// DisconnectReason says why a connection ended
type DisconnectReason string

const (
	ReasonLocal               DisconnectReason = "local"
	ReasonSupervisionTimeout  DisconnectReason = "supervision_timeout"
	ReasonConfirmationTimeout DisconnectReason = "confirmation_timeout"
	ReasonShutdown            DisconnectReason = "shutdown"
)
