package util

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SetRandom points the data directory at a fresh directory under the
// system temp dir, so each test run starts without bonds or debug logs.
// It returns the new directory.
func SetRandom() string {
	dir := filepath.Join(os.TempDir(), "gatt-dispatch-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		panic(err)
	}
	os.Setenv(DataDirEnv, dir)
	return dir
}
