package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/user/gatt-dispatch/util"
	"github.com/user/gatt-dispatch/wire/att"
	"github.com/user/gatt-dispatch/wire/debug"
	"github.com/user/gatt-dispatch/wire/l2cap"
	"github.com/user/gatt-dispatch/wire/ll"
)

func main() {
	capturePath := pflag.String("capture", "", "Path to a frames.capture file")
	peerID := pflag.String("peer", "", "Read the capture of this peer from the data directory")
	emptyFrames := pflag.Bool("empty", false, "Also print empty PDUs")
	pflag.Parse()

	path := *capturePath
	if path == "" && *peerID != "" {
		path = filepath.Join(util.GetDataDir(), "debug", *peerID, debug.CaptureFile)
	}
	if path == "" {
		fmt.Println("Usage: replay --capture <frames.capture> | --peer <peer id>")
		fmt.Println("\nCaptures are written by gatt-sim when debug is enabled in the config.")
		os.Exit(1)
	}

	frames, err := debug.ReadCapture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Replaying %s: %d frames ===\n\n", path, len(frames))

	for i, f := range frames {
		line, empty := describe(f.Frame)
		if empty && !*emptyFrames {
			continue
		}
		offset := f.Timestamp.Sub(frames[0].Timestamp)
		fmt.Printf("%6d %10v %-2s ch%-2d %s\n", i, offset, f.Direction, f.Channel, line)
	}
}

// describe renders one LL PDU with its L2CAP and ATT contents
func describe(frame []byte) (string, bool) {
	pdu, err := ll.Decode(frame)
	if err != nil {
		return fmt.Sprintf("❌ %v", err), false
	}

	hdr := fmt.Sprintf("SN=%d NESN=%d", bit(pdu.SN()), bit(pdu.NESN()))
	if pdu.IsEmpty() {
		return hdr + " (empty)", true
	}

	payload, ok, err := l2cap.DecodeATT(pdu.Payload())
	if err != nil {
		return fmt.Sprintf("%s ❌ %v", hdr, err), false
	}
	if !ok || len(payload) == 0 {
		return hdr + " non-ATT L2CAP frame", false
	}

	name, known := att.OpcodeNames[payload[0]]
	if !known {
		name = fmt.Sprintf("opcode 0x%02X", payload[0])
	}
	return fmt.Sprintf("%s %-26s % X", hdr, name, payload[1:]), false
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
