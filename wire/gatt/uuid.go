package gatt

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// bluetoothBase is 00000000-0000-1000-8000-00805F9B34FB in little-endian order
var bluetoothBase = [16]byte{
	0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00, 0x00, 0x80,
	0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// UUID16 creates a 16-bit UUID in little-endian format
func UUID16(val uint16) []byte {
	return []byte{byte(val), byte(val >> 8)}
}

// UUID128 expands a 16-bit short UUID onto the Bluetooth base UUID (little-endian)
func UUID128(shortUUID uint16) []byte {
	u := bluetoothBase
	u[12] = byte(shortUUID)
	u[13] = byte(shortUUID >> 8)
	return u[:]
}

// ParseUUID parses "2A37", "0x2A37" or a 128-bit UUID string into
// little-endian wire order
func ParseUUID(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")

	if len(trimmed) == 4 {
		v, err := strconv.ParseUint(trimmed, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("gatt: invalid 16-bit UUID %q: %w", s, err)
		}
		return UUID16(uint16(v)), nil
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("gatt: invalid UUID %q: %w", s, err)
	}

	le := make([]byte, 16)
	for i := range u {
		le[15-i] = u[i]
	}
	return le, nil
}

// UUIDString formats a little-endian wire UUID for humans
func UUIDString(b []byte) string {
	switch len(b) {
	case 2:
		return fmt.Sprintf("%04X", uint16(b[0])|uint16(b[1])<<8)
	case 16:
		var u uuid.UUID
		for i := range u {
			u[i] = b[15-i]
		}
		return strings.ToUpper(u.String())
	default:
		return hex.EncodeToString(b)
	}
}

// IsUUID16 checks if a UUID is 16-bit (2 bytes)
func IsUUID16(b []byte) bool {
	return len(b) == 2
}

// IsUUID128 checks if a UUID is 128-bit (16 bytes)
func IsUUID128(b []byte) bool {
	return len(b) == 16
}
