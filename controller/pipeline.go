package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/providers/executor"
	"github.com/sirupsen/logrus"
)

// Run validates the request, checks the registry and, if the version is not
// published yet, executes login, build, tag and push in order. The first
// failing step ends the run; nothing is rolled back. A request that fails
// validation is neither recorded nor published.
func (c *Controller) Run(ctx context.Context, req model.BuildRequest) model.Outcome {
	l := c.l.WithFields(logrus.Fields{
		"service": req.ServiceName,
		"version": req.Version,
	})
	l.Infof("Deploying version %s for service %s in environment %s", req.Version, req.ServiceName, req.Environment)

	if c.Registry == nil {
		return reject(l, ErrMissingRegistry)
	}
	if c.Executor == nil {
		return reject(l, ErrMissingExecutor)
	}

	dockerfile, err := c.ValidatePreconditions(req)
	if err != nil {
		return reject(l, err)
	}

	r := c.newRun(ctx, req, l)
	if err := r.transition(ctx, model.BuildStateValidated, ""); err != nil {
		return r.fail(ctx, "", err)
	}

	exists, err := c.Registry.ImageTagExists(ctx, req.Version, req.RegistryURL)
	if err != nil {
		return r.fail(ctx, "", fmt.Errorf("checking registry: %w", err))
	}
	if exists {
		r.l.Infof("Image tag %s already exists in repo.", req.Version)
		if err := r.transition(ctx, model.BuildStateSkipped, "already published"); err != nil {
			return r.fail(ctx, "", err)
		}
		return r.finish(ctx, model.Outcome{Status: model.ResponseStatusSkipped})
	}

	plan, err := c.PlanCommands(req, dockerfile)
	if err != nil {
		return r.fail(ctx, "", err)
	}

	for _, step := range plan.Steps() {
		if err := r.transition(ctx, model.StateForStage(step.Stage), ""); err != nil {
			return r.fail(ctx, step.Stage, err)
		}

		ok, err := c.Executor.Execute(ctx, step)
		if err != nil {
			if errors.Is(err, executor.ErrSpawn) {
				r.l.Error("environment is misconfigured, the command could not be started")
			}
			return r.fail(ctx, step.Stage, fmt.Errorf("failed to execute: %s: %w", step, err))
		}
		if !ok {
			return r.fail(ctx, step.Stage, fmt.Errorf("failed to execute: %s: %w", step, ErrStepFailed))
		}
	}

	if err := r.transition(ctx, model.BuildStateDone, ""); err != nil {
		return r.fail(ctx, model.StagePush, err)
	}
	r.l.Infof("Image tag %s successfully pushed", req.Version)
	return r.finish(ctx, model.Outcome{Status: model.ResponseStatusSuccess})
}

func reject(l *logrus.Entry, err error) model.Outcome {
	l.Error(err)
	return model.Outcome{Status: model.ResponseStatusFailed, Err: err}
}
