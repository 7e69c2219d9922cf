package executor

import (
	"context"
	"errors"

	"github.com/chiliseed/build-worker/model"
)

// ErrSpawn means the program could not be started at all. It points at the
// environment, not at the build.
var ErrSpawn = errors.New("unable to spawn process")

type Executor interface {
	// Execute runs the step with the caller's stdio attached and reports
	// whether it exited with status zero.
	Execute(ctx context.Context, step model.CommandStep) (bool, error)
	// Output runs the program and returns what it wrote to stdout.
	Output(ctx context.Context, program string, args ...string) ([]byte, error)
}
