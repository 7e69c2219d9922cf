package controller

import "errors"

var (
	ErrMissingRegistry   = errors.New("missing registry")
	ErrMissingExecutor   = errors.New("missing executor")
	ErrInexistingRootDir = errors.New("inexisting deployment root directory")
	ErrMissingDockerfile = errors.New("deployment dir has no dockerfile")
	ErrStepFailed        = errors.New("command failed")
	ErrIllegalTransition = errors.New("illegal state transition")
)
