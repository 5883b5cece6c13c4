package compress

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single tool invocation so a stuck or adversarial
// input cannot hang a worker indefinitely.
const DefaultTimeout = 60 * time.Second

// ToolUnavailableError reports that the external compression tool cannot be
// located on the process search path.
type ToolUnavailableError struct {
	Tool string
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("%s not found on PATH; install Ghostscript to enable compression", e.Tool)
}

// Runner executes the external compression tool with a bounded deadline and
// returns its captured output. Tests substitute a fake implementation.
type Runner interface {
	Available() error
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// Ghostscript runs the gs binary located via the process search path.
type Ghostscript struct {
	Binary  string
	Timeout time.Duration
}

// NewGhostscript returns a Ghostscript runner with sane defaults.
func NewGhostscript(binary string, timeout time.Duration) *Ghostscript {
	if binary == "" {
		binary = "gs"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ghostscript{Binary: binary, Timeout: timeout}
}

// Available checks that the binary can be located without invoking it.
func (g *Ghostscript) Available() error {
	if _, err := exec.LookPath(g.Binary); err != nil {
		return &ToolUnavailableError{Tool: g.Binary}
	}
	return nil
}

// Run invokes the tool and returns its combined output, which callers keep
// for diagnostics regardless of outcome.
func (g *Ghostscript) Run(ctx context.Context, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, g.Binary, args...)
	output, err := cmd.CombinedOutput()

	if runCtx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("%s timed out after %v", g.Binary, g.Timeout)
	}
	if err != nil {
		return output, fmt.Errorf("%s: %w", g.Binary, err)
	}
	return output, nil
}
