package wire

import "fmt"

// shortHash safely returns up to the first 8 characters of a string (or the full string if shorter)
func shortHash(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func handleString(handle uint16) string {
	return fmt.Sprintf("0x%04X", handle)
}
