package util

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides the data directory
const DataDirEnv = "GATT_DISPATCH_DIR"

// GetDataDir returns the data directory path
func GetDataDir() string {
	if envDir := os.Getenv(DataDirEnv); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".gatt-dispatch")
}

// GetBondDir returns the directory where bonded peers' CCCD state is stored
func GetBondDir() string {
	return filepath.Join(GetDataDir(), "bonds")
}

// GetDebugDir returns the directory for JSONL logs and frame captures of a connection
func GetDebugDir(peerID string) string {
	debugDir := filepath.Join(GetDataDir(), "debug", peerID)
	// Ensure the directory exists
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		panic(err)
	}
	return debugDir
}
