//go:build windows

package screen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// psCapture copies the primary screen into a PNG using System.Drawing.
const psCapture = `Add-Type -AssemblyName System.Windows.Forms,System.Drawing;` +
	`$b=[System.Windows.Forms.Screen]::PrimaryScreen.Bounds;` +
	`$bmp=New-Object System.Drawing.Bitmap $b.Width,$b.Height;` +
	`$g=[System.Drawing.Graphics]::FromImage($bmp);` +
	`$g.CopyFromScreen($b.Left,$b.Top,0,0,$bmp.Size);` +
	`$bmp.Save('%s',[System.Drawing.Imaging.ImageFormat]::Png)`

type windowsBackend struct{}

func (windowsBackend) name() string { return "powershell" }

func (windowsBackend) captureRaw(ctx context.Context, path string) error {
	script := fmt.Sprintf(psCapture, strings.ReplaceAll(path, "'", "''"))
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// New creates a platform-specific screen source.
func New() Source {
	return newExecSource(windowsBackend{})
}
