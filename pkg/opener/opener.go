// pkg/opener/opener.go

// Package opener hands files to the desktop's default application.
package opener

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ErrMissing is returned when the file to open does not exist.
var ErrMissing = errors.New("opener: file does not exist")

// Open launches the default viewer for path without waiting for it.
func Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrMissing, path)
	}
	name, args := command(runtime.GOOS, path)
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("opener: %s: %w", name, err)
	}
	return nil
}

func command(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	case "darwin":
		return "open", []string{path}
	default: // linux and other unix
		return "xdg-open", []string{path}
	}
}
