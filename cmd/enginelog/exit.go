package main

import (
	"errors"
	"os/exec"
)

// exitCode propagates a plugin's exit status; every other failure exits 1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}
