//go:build linux

package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type linuxBackend struct {
	tool string
}

func (l *linuxBackend) name() string { return l.tool }

func (l *linuxBackend) captureRaw(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch l.tool {
	case "grim":
		cmd = exec.CommandContext(ctx, "grim", path)
	case "gnome-screenshot":
		cmd = exec.CommandContext(ctx, "gnome-screenshot", "-f", path)
	case "scrot":
		cmd = exec.CommandContext(ctx, "scrot", "-o", path)
	case "import":
		cmd = exec.CommandContext(ctx, "import", "-window", "root", path)
	default:
		return errors.New("no screenshot tool found (install grim, gnome-screenshot, scrot or imagemagick)")
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// New creates a platform-specific screen source.
func New() Source {
	tool := ""
	for _, candidate := range []string{"grim", "gnome-screenshot", "scrot", "import"} {
		if _, err := exec.LookPath(candidate); err == nil {
			tool = candidate
			break
		}
	}
	return newExecSource(&linuxBackend{tool: tool})
}
