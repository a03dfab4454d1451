package main

import (
	"os"
	"path/filepath"
)

// defaultSocketPath prefers the per-user runtime dir over the shared tmp.
func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "enginelog.sock")
	}
	return filepath.Join(os.TempDir(), "enginelog.sock")
}
