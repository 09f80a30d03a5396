package debug

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/gatt-dispatch/util"
	"github.com/user/gatt-dispatch/wire/att"
)

// Files written into the debug directory
const (
	ATTPacketsFile = "att_packets.jsonl"
	DispatchFile   = "dispatch.jsonl"
	CaptureFile    = "frames.capture"
)

// DebugLogger writes human-readable JSON logs of what a connection sent and
// why, plus a binary capture of every link layer frame.
// These files are WRITE-ONLY and never read by production code.
type DebugLogger struct {
	peerID   string
	debugDir string
	enabled  bool
	mu       sync.Mutex
}

// ATTPacketLog represents a logged ATT packet
type ATTPacketLog struct {
	Timestamp  string                 `json:"timestamp"`
	Direction  string                 `json:"direction"` // "tx" or "rx"
	PeerID     string                 `json:"peer_id"`
	Opcode     string                 `json:"opcode"`
	OpcodeName string                 `json:"opcode_name"`
	Data       map[string]interface{} `json:"data,omitempty"`
	RawHex     string                 `json:"raw_hex"`
}

// DispatchLog records one dequeue from the notification queue
type DispatchLog struct {
	Timestamp string `json:"timestamp"`
	PeerID    string `json:"peer_id"`
	Event     uint64 `json:"event"`
	Kind      string `json:"kind"`
	Slot      int    `json:"slot"`
	Tier      int    `json:"tier"`
	Handle    string `json:"handle"`
	ValueLen  int    `json:"value_len"`
	Truncated bool   `json:"truncated,omitempty"`
}

// NewDebugLogger creates a new debug logger for a connection
func NewDebugLogger(peerID string, enabled bool) *DebugLogger {
	if !enabled {
		return &DebugLogger{enabled: false}
	}

	return NewDebugLoggerAt(util.GetDebugDir(peerID), peerID)
}

// NewDebugLoggerAt writes into an explicit directory
func NewDebugLoggerAt(dir, peerID string) *DebugLogger {
	os.MkdirAll(dir, 0755)
	return &DebugLogger{
		peerID:   peerID,
		debugDir: dir,
		enabled:  true,
	}
}

// Enabled reports whether anything is written
func (d *DebugLogger) Enabled() bool {
	return d != nil && d.enabled
}

// Dir returns the directory the logs are written to
func (d *DebugLogger) Dir() string {
	return d.debugDir
}

// LogATTPacket logs an ATT packet to att_packets.jsonl
func (d *DebugLogger) LogATTPacket(direction string, packet interface{}, rawBytes []byte) {
	if !d.Enabled() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opcode, opcodeName, data := decodeATTPacket(packet)

	d.appendJSONL(ATTPacketsFile, ATTPacketLog{
		Timestamp:  time.Now().Format(time.RFC3339Nano),
		Direction:  direction,
		PeerID:     d.peerID,
		Opcode:     fmt.Sprintf("0x%02X", opcode),
		OpcodeName: opcodeName,
		Data:       data,
		RawHex:     hex.EncodeToString(rawBytes),
	})
}

// LogDispatch logs a dequeued notification or indication to dispatch.jsonl
func (d *DebugLogger) LogDispatch(entry DispatchLog) {
	if !d.Enabled() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry.Timestamp = time.Now().Format(time.RFC3339Nano)
	entry.PeerID = d.peerID
	d.appendJSONL(DispatchFile, entry)
}

// LogFrame appends a link layer frame to the binary capture
func (d *DebugLogger) LogFrame(direction string, channel uint, frame []byte) {
	if !d.Enabled() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.appendBytes(CaptureFile, appendCaptureRecord(nil, CapturedFrame{
		Timestamp: time.Now(),
		Direction: direction,
		Channel:   channel,
		Frame:     frame,
	}))
}

// appendJSONL appends a JSON line to a file
func (d *DebugLogger) appendJSONL(filename string, data interface{}) {
	line, err := json.Marshal(data)
	if err != nil {
		return
	}
	d.appendBytes(filename, append(line, '\n'))
}

func (d *DebugLogger) appendBytes(filename string, data []byte) {
	path := filepath.Join(d.debugDir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return // Silently fail - debug logging is best-effort
	}
	defer f.Close()

	f.Write(data)
}

func handleHex(handle uint16) string {
	return fmt.Sprintf("0x%04X", handle)
}

// decodeATTPacket extracts opcode, name, and data from an ATT packet
func decodeATTPacket(packet interface{}) (opcode uint8, name string, data map[string]interface{}) {
	data = make(map[string]interface{})

	switch p := packet.(type) {
	case *att.ExchangeMTURequest:
		opcode = att.OpExchangeMTURequest
		data["client_rx_mtu"] = p.ClientRxMTU

	case *att.ExchangeMTUResponse:
		opcode = att.OpExchangeMTUResponse
		data["server_rx_mtu"] = p.ServerRxMTU

	case *att.ReadRequest:
		opcode = att.OpReadRequest
		data["handle"] = handleHex(p.Handle)

	case *att.WriteRequest:
		opcode = att.OpWriteRequest
		data["handle"] = handleHex(p.Handle)
		data["value_hex"] = hex.EncodeToString(p.Value)

	case *att.WriteResponse:
		opcode = att.OpWriteResponse

	case *att.WriteCommand:
		opcode = att.OpWriteCommand
		data["handle"] = handleHex(p.Handle)
		data["value_hex"] = hex.EncodeToString(p.Value)

	case *att.HandleValueNotification:
		opcode = att.OpHandleValueNotification
		data["handle"] = handleHex(p.Handle)
		data["value_len"] = len(p.Value)

	case *att.HandleValueIndication:
		opcode = att.OpHandleValueIndication
		data["handle"] = handleHex(p.Handle)
		data["value_len"] = len(p.Value)

	case *att.HandleValueConfirmation:
		opcode = att.OpHandleValueConfirmation

	case *att.ErrorResponse:
		opcode = att.OpErrorResponse
		data["request_opcode"] = fmt.Sprintf("0x%02X", p.RequestOpcode)
		data["request_opcode_name"] = att.OpcodeNames[p.RequestOpcode]
		data["handle"] = handleHex(p.Handle)
		data["error_code"] = fmt.Sprintf("0x%02X", p.ErrorCode)
		data["error_name"] = att.ErrorNames[p.ErrorCode]

	default:
		return 0xFF, "Unknown", data
	}

	return opcode, att.OpcodeNames[opcode], data
}
