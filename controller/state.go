package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/chiliseed/build-worker/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var transitions = map[model.BuildState][]model.BuildState{
	model.BuildStateInit:      {model.BuildStateValidated, model.BuildStateFailed},
	model.BuildStateValidated: {model.BuildStateSkipped, model.BuildStateLoggingIn, model.BuildStateFailed},
	model.BuildStateLoggingIn: {model.BuildStateBuilding, model.BuildStateFailed},
	model.BuildStateBuilding:  {model.BuildStateTagging, model.BuildStateFailed},
	model.BuildStateTagging:   {model.BuildStatePushing, model.BuildStateFailed},
	model.BuildStatePushing:   {model.BuildStateDone, model.BuildStateFailed},
}

func CanTransition(from, to model.BuildState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// run tracks one pass of the pipeline. Once it reaches a terminal state it
// cannot move again; a new run starts from init.
type run struct {
	id      string
	state   model.BuildState
	req     model.BuildRequest
	started time.Time
	record  bool

	c *Controller
	l *logrus.Entry
}

func (c *Controller) newRun(ctx context.Context, req model.BuildRequest, l *logrus.Entry) *run {
	r := &run{
		id:      uuid.NewString(),
		state:   model.BuildStateInit,
		req:     req,
		started: time.Now().UTC(),
		c:       c,
	}
	r.l = l.WithField("run", r.id)

	if c.BuildRecorder != nil {
		err := c.BuildRecorder.CreateRecord(ctx, model.BuildRecord{
			RunID:       r.id,
			ServiceName: req.ServiceName,
			Version:     req.Version,
			Environment: req.Environment,
			Image:       req.RemoteImage(),
			State:       r.state,
			StartedAt:   r.started,
			UpdatedAt:   r.started,
		})
		if err != nil {
			r.l.WithError(err).Warn("unable to create build record, continuing without it")
		} else {
			r.record = true
		}
	}
	return r
}

func (r *run) transition(ctx context.Context, to model.BuildState, message string) error {
	if !CanTransition(r.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.state, to)
	}
	r.l.Debugf("state %s -> %s", r.state, to)
	r.state = to

	if r.record {
		if _, err := r.c.BuildRecorder.UpdateStateByRunID(ctx, r.id, to, message); err != nil {
			r.l.WithError(err).Warnf("unable to record state %s", to)
		}
	}
	return nil
}

func (r *run) fail(ctx context.Context, stage model.Stage, err error) model.Outcome {
	r.l.WithField("stage", stage).Error(err)
	if !r.state.Terminal() {
		if terr := r.transition(ctx, model.BuildStateFailed, err.Error()); terr != nil {
			r.l.Error(terr)
		}
	}
	return r.finish(ctx, model.Outcome{
		Status:      model.ResponseStatusFailed,
		FailedStage: stage,
		Err:         err,
	})
}

func (r *run) finish(ctx context.Context, outcome model.Outcome) model.Outcome {
	if r.c.Publisher == nil {
		return outcome
	}

	response := model.BuildResponse{
		RunID:       r.id,
		ServiceName: r.req.ServiceName,
		Version:     r.req.Version,
		Environment: r.req.Environment,
		Image:       r.req.RemoteImage(),
		Status:      outcome.Status,
		FailedStage: outcome.FailedStage,
		FinishedAt:  time.Now().UTC(),
	}
	if outcome.Err != nil {
		response.Message = outcome.Err.Error()
	}
	if err := r.c.Publisher.SendResponse(ctx, response); err != nil {
		r.l.WithError(err).Warn("unable to publish build response")
	}
	return outcome
}
