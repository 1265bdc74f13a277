package pipeline

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Runner executes one external tool invocation inside a task's working
// directory, with stdout and stderr captured by the task's log sink. The
// interface exists so tests can run pipelines without real build tools.
type Runner interface {
	Run(ctx context.Context, dir string, output io.Writer, argv []string) error
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, output io.Writer, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 - argv comes from operator config
	cmd.Dir = dir
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
