package repo

import (
	"context"
	"errors"

	"github.com/chiliseed/build-worker/model"
)

type BuildRecorder interface {
	// CreateRecord stores a new run in the init state.
	CreateRecord(ctx context.Context, record model.BuildRecord) error
	UpdateStateByRunID(ctx context.Context, runID string, state model.BuildState, message string) (bool, error)
}

var (
	ErrNotFound error = errors.New("not found")
)
