//go:build darwin

package screen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type darwinBackend struct{}

func (darwinBackend) name() string { return "screencapture" }

func (darwinBackend) captureRaw(ctx context.Context, path string) error {
	// -x: no sound, -m: main display only
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-m", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// New creates a platform-specific screen source.
func New() Source {
	return newExecSource(darwinBackend{})
}
