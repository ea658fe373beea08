package source

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Cloner performs bounded shallow git clones via the git binary.
type Cloner struct {
	timeout time.Duration
}

// NewCloner creates a Cloner. timeout bounds each clone; zero means the
// caller's context is the only bound.
func NewCloner(timeout time.Duration) *Cloner {
	return &Cloner{timeout: timeout}
}

// Clone fetches url into destDir with depth 1. History is never needed for
// scanning, so a shallow clone keeps large repositories cheap.
func (c *Cloner) Clone(ctx context.Context, url, destDir string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", url, destDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("git clone: %w", ctx.Err())
		}
		return fmt.Errorf("git clone: %w: %s", err, out)
	}
	return nil
}
