package att

// ATT Opcodes (Bluetooth Core Spec v5.3 Vol 3, Part F, Section 3.4)
// Only the opcodes a notifying server handles are listed.
const (
	OpErrorResponse = 0x01

	// MTU Exchange
	OpExchangeMTURequest  = 0x02
	OpExchangeMTUResponse = 0x03

	// Read, answered with Request Not Supported by the dispatch server
	OpReadRequest  = 0x0A
	OpReadResponse = 0x0B

	// Write (used for CCCD configuration)
	OpWriteRequest  = 0x12
	OpWriteResponse = 0x13
	OpWriteCommand  = 0x52

	// Server-initiated
	OpHandleValueNotification = 0x1B
	OpHandleValueIndication   = 0x1D
	OpHandleValueConfirmation = 0x1E
)

// Header sizes of the server-initiated PDUs
const (
	// HandleValueHeaderLen is opcode (1) + handle (2)
	HandleValueHeaderLen = 3

	DefaultMTU = 23
	MaxMTU     = 517
)

// OpcodeNames maps opcodes to human-readable names (useful for debugging)
var OpcodeNames = map[uint8]string{
	OpErrorResponse:           "Error Response",
	OpExchangeMTURequest:      "Exchange MTU Request",
	OpExchangeMTUResponse:     "Exchange MTU Response",
	OpReadRequest:             "Read Request",
	OpReadResponse:            "Read Response",
	OpWriteRequest:            "Write Request",
	OpWriteResponse:           "Write Response",
	OpWriteCommand:            "Write Command",
	OpHandleValueNotification: "Handle Value Notification",
	OpHandleValueIndication:   "Handle Value Indication",
	OpHandleValueConfirmation: "Handle Value Confirmation",
}

// IsRequest returns true if the opcode expects a response or confirmation
func IsRequest(opcode uint8) bool {
	switch opcode {
	case OpExchangeMTURequest,
		OpReadRequest,
		OpWriteRequest,
		OpHandleValueIndication:
		return true
	default:
		return false
	}
}

// IsUnsupportedRequest reports whether an opcode this package cannot decode
// still expects an answer. Every request opcode is even and lacks the
// command flag; responses and server-initiated PDUs are odd.
func IsUnsupportedRequest(opcode uint8) bool {
	if _, known := OpcodeNames[opcode]; known {
		return false
	}
	return opcode&CommandFlag == 0 && opcode%2 == 0
}

// IsNotification returns true if the opcode is a notification (no confirmation expected)
func IsNotification(opcode uint8) bool {
	return opcode == OpHandleValueNotification
}

// CommandFlag is set in every command opcode; commands are never answered,
// not even with an Error Response
const CommandFlag = 0x40

// IsCommand returns true if the opcode is a command (no response expected)
func IsCommand(opcode uint8) bool {
	return opcode&CommandFlag != 0
}

// GetResponseOpcode returns the expected response opcode for a given request opcode
// Returns 0 if the opcode doesn't have a response
func GetResponseOpcode(requestOpcode uint8) uint8 {
	switch requestOpcode {
	case OpExchangeMTURequest:
		return OpExchangeMTUResponse
	case OpReadRequest:
		return OpReadResponse
	case OpWriteRequest:
		return OpWriteResponse
	case OpHandleValueIndication:
		return OpHandleValueConfirmation
	default:
		return 0
	}
}

// MaxValueLen returns how many value bytes fit into a Handle Value PDU at the given MTU
func MaxValueLen(mtu int) int {
	if mtu < DefaultMTU {
		mtu = DefaultMTU
	}
	return mtu - HandleValueHeaderLen
}
