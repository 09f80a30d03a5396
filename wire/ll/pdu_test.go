package ll

import (
	"bytes"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name         string
		sn, nesn, md bool
		payload      []byte
		want         []byte
	}{
		{"empty", false, false, false, nil, []byte{0x01, 0x00}},
		{"empty acked", false, true, false, nil, []byte{0x05, 0x00}},
		{"data", true, false, false, []byte{0xAA}, []byte{0x0A, 0x01, 0xAA}},
		{"more data", true, true, true, []byte{0xAA, 0xBB}, []byte{0x1E, 0x02, 0xAA, 0xBB}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.sn, tt.nesn, tt.md, tt.payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Expected % X, got % X", tt.want, []byte(got))
			}
		})
	}
}

func TestEncodeTooLong(t *testing.T) {
	if _, err := Encode(false, false, false, make([]byte, MaxPayload+1)); err == nil {
		t.Fatal("Expected error for oversized payload")
	}
}

func TestDecode(t *testing.T) {
	p, err := Decode([]byte{0x0E, 0x01, 0x42, 0xFF})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if p.LLID() != LLIDStart || !p.SN() || !p.NESN() || p.MD() {
		t.Errorf("Unexpected header fields in % X", []byte(p))
	}
	if !bytes.Equal(p.Payload(), []byte{0x42}) {
		t.Errorf("Expected payload 42, got % X", p.Payload())
	}
	if len(p) != 3 {
		t.Errorf("Expected trailing bytes to be dropped, got %d bytes", len(p))
	}

	empty, _ := Decode([]byte{0x01, 0x00})
	if !empty.IsEmpty() {
		t.Error("Expected empty PDU")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"short", []byte{0x01}},
		{"reserved llid", []byte{0x00, 0x00}},
		{"incomplete", []byte{0x02, 0x05, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.frame); err == nil {
				t.Errorf("Expected error for % X", tt.frame)
			}
		})
	}
}
