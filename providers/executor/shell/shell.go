package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/providers/executor"
	"github.com/sirupsen/logrus"
)

var _ executor.Executor = new(Shell)

// Shell runs steps as child processes of the worker.
type Shell struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	DryRun bool

	l *logrus.Logger
}

func NewShell(dryRun bool, l *logrus.Logger) *Shell {
	return &Shell{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		DryRun: dryRun,
		l:      l,
	}
}

// Execute blocks until the child exits. There is no timeout: a hung build
// blocks the worker.
func (s *Shell) Execute(_ context.Context, step model.CommandStep) (bool, error) {
	fields := logrus.Fields{"stage": step.Stage, "program": step.Program}
	if s.DryRun {
		s.l.WithFields(fields).Infof("[DRY RUN] %s %s", step.Program, quoteArgs(step.Args))
		return true, nil
	}
	s.l.WithFields(fields).Infof("executing: %s %s", step.Program, quoteArgs(step.Args))

	// not CommandContext: a spawned step is always waited for
	cmd := exec.Command(step.Program, step.Args...)
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("%w: %s: %w", executor.ErrSpawn, step.Program, err)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.l.WithFields(fields).Errorf("command exited with status %d", exitErr.ExitCode())
			return false, nil
		}
		s.l.WithFields(fields).Errorf("waiting for command: %v", err)
		return false, nil
	}
	return true, nil
}

func (s *Shell) Output(ctx context.Context, program string, args ...string) ([]byte, error) {
	s.l.Debugf("capturing output of: %s %s", program, quoteArgs(args))

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &out
	cmd.Stderr = io.MultiWriter(&errOut, s.Stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", executor.ErrSpawn, program, err)
	}
	if err := cmd.Wait(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %s: %w: %s", program, quoteArgs(args), err, strings.TrimSpace(errOut.String()))
	}
	return out.Bytes(), nil
}

// quoteArgs renders args the way a shell would need them typed.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'`$\\*?[]{}()<>|&;") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
