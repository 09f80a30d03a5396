package debug

import (
	"fmt"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// The capture file is a sequence of length-delimited records, each a
// protobuf-encoded message:
//
//	1: timestamp, unix nanoseconds (varint)
//	2: direction, 0 = tx, 1 = rx (varint)
//	3: radio channel (varint)
//	4: frame (bytes)
//
// so that any protobuf decoder can read it without this package.
const (
	fieldTimestamp protowire.Number = 1
	fieldDirection protowire.Number = 2
	fieldChannel   protowire.Number = 3
	fieldFrame     protowire.Number = 4
)

// CapturedFrame is one record of the capture file
type CapturedFrame struct {
	Timestamp time.Time
	Direction string
	Channel   uint
	Frame     []byte
}

func appendCaptureRecord(b []byte, f CapturedFrame) []byte {
	var dir uint64
	if f.Direction == "rx" {
		dir = 1
	}

	var msg []byte
	msg = protowire.AppendTag(msg, fieldTimestamp, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(f.Timestamp.UnixNano()))
	msg = protowire.AppendTag(msg, fieldDirection, protowire.VarintType)
	msg = protowire.AppendVarint(msg, dir)
	msg = protowire.AppendTag(msg, fieldChannel, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(f.Channel))
	msg = protowire.AppendTag(msg, fieldFrame, protowire.BytesType)
	msg = protowire.AppendBytes(msg, f.Frame)

	return protowire.AppendBytes(b, msg)
}

// ReadCapture decodes every record of a capture file
func ReadCapture(path string) ([]CapturedFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeCapture(data)
}

// DecodeCapture decodes a capture held in memory
func DecodeCapture(data []byte) ([]CapturedFrame, error) {
	var frames []CapturedFrame
	for len(data) > 0 {
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return frames, fmt.Errorf("debug: corrupt capture record: %w", protowire.ParseError(n))
		}
		data = data[n:]

		frame, err := decodeCaptureRecord(msg)
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func decodeCaptureRecord(msg []byte) (CapturedFrame, error) {
	frame := CapturedFrame{Direction: "tx"}
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return frame, fmt.Errorf("debug: corrupt capture field: %w", protowire.ParseError(n))
		}
		msg = msg[n:]

		switch {
		case num == fieldFrame && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(msg)
			if m < 0 {
				return frame, fmt.Errorf("debug: corrupt frame bytes: %w", protowire.ParseError(m))
			}
			frame.Frame = append([]byte{}, v...)
			n = m
		case typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			if m < 0 {
				return frame, fmt.Errorf("debug: corrupt varint: %w", protowire.ParseError(m))
			}
			switch num {
			case fieldTimestamp:
				frame.Timestamp = time.Unix(0, int64(v))
			case fieldDirection:
				if v == 1 {
					frame.Direction = "rx"
				}
			case fieldChannel:
				frame.Channel = uint(v)
			}
			n = m
		default:
			// unknown fields are skipped
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return frame, fmt.Errorf("debug: corrupt field %d: %w", num, protowire.ParseError(n))
			}
		}
		msg = msg[n:]
	}
	return frame, nil
}
