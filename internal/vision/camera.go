// Package vision answers one question for the medication workflow: is the
// pouch the user is holding up the color we expect. A camera produces JPEG
// frames, a remote classifier names the dominant color, and a small voting
// pass turns noisy answers into a single verdict.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Camera produces one JPEG frame per call.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ExecCamera shells out to a still-capture tool (libcamera-jpeg, fswebcam).
// The argv's "{out}" placeholder is replaced with a temp output path.
type ExecCamera struct {
	argv []string
}

func NewExecCamera(argv []string) *ExecCamera {
	return &ExecCamera{argv: argv}
}

func (c *ExecCamera) Capture(ctx context.Context) ([]byte, error) {
	if len(c.argv) == 0 {
		return nil, errors.New("no capture command configured")
	}

	out := filepath.Join(os.TempDir(), fmt.Sprintf("saathi-frame-%d.jpg", time.Now().UnixNano()))
	defer os.Remove(out)

	argv := make([]string, len(c.argv))
	for i, a := range c.argv {
		argv[i] = strings.ReplaceAll(a, "{out}", out)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if b, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("capture command: %w (%s)", err, strings.TrimSpace(string(b)))
	}

	frame, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read captured frame: %w", err)
	}
	return frame, nil
}
