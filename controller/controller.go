package controller

import (
	"context"

	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/providers/executor"
	"github.com/chiliseed/build-worker/providers/registry"
	"github.com/chiliseed/build-worker/repo"
	"github.com/sirupsen/logrus"
)

const DefaultDockerBin = "docker"

type Publisher interface {
	SendResponse(ctx context.Context, response model.BuildResponse) error
}

// Controller runs the build pipeline. Registry and Executor are required,
// BuildRecorder and Publisher are optional and only observe the run.
type Controller struct {
	Registry      registry.Provider
	Executor      executor.Executor
	BuildRecorder repo.BuildRecorder
	Publisher     Publisher
	DockerBin     string
	l             *logrus.Logger
}

func NewController(log *logrus.Logger) *Controller {
	return &Controller{
		DockerBin: DefaultDockerBin,
		l:         log,
	}
}

func (c *Controller) AddRegistry(reg registry.Provider) {
	c.Registry = reg
}

func (c *Controller) AddExecutor(exec executor.Executor) {
	c.Executor = exec
}
