package controller_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/chiliseed/build-worker/controller"
	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/pkg/logger"
	"github.com/chiliseed/build-worker/providers/executor"
	"github.com/chiliseed/build-worker/providers/registry"
	"gotest.tools/assert"
)

const registryURL = "123456789012.dkr.ecr.us-east-1.amazonaws.com/api"

type fakeRegistry struct {
	exists bool
	err    error
	calls  int
}

func (f *fakeRegistry) ImageTagExists(_ context.Context, tag, url string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.exists, nil
}

func (f *fakeRegistry) LoginStep(url string) (model.CommandStep, error) {
	ref, err := registry.ParseReference(url, ".com/")
	if err != nil {
		return model.CommandStep{}, err
	}
	return model.CommandStep{Stage: model.StageLogin, Program: "/bin/sh", Args: []string{"-c", "login " + ref.Host}}, nil
}

type fakeExecutor struct {
	executed []model.CommandStep
	failAt   model.Stage
	spawnAt  model.Stage
}

func (f *fakeExecutor) Execute(_ context.Context, step model.CommandStep) (bool, error) {
	f.executed = append(f.executed, step)
	if step.Stage == f.spawnAt {
		return false, fmt.Errorf("%w: %s", executor.ErrSpawn, step.Program)
	}
	return step.Stage != f.failAt, nil
}

func (f *fakeExecutor) Output(context.Context, string, ...string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeExecutor) stages() []model.Stage {
	var stages []model.Stage
	for _, s := range f.executed {
		stages = append(stages, s.Stage)
	}
	return stages
}

type fakePublisher struct {
	responses []model.BuildResponse
}

func (f *fakePublisher) SendResponse(_ context.Context, response model.BuildResponse) error {
	f.responses = append(f.responses, response)
	return nil
}

type fakeRecorder struct {
	created []model.BuildRecord
	states  []model.BuildState
}

func (f *fakeRecorder) CreateRecord(_ context.Context, record model.BuildRecord) error {
	f.created = append(f.created, record)
	return nil
}

func (f *fakeRecorder) UpdateStateByRunID(_ context.Context, _ string, state model.BuildState, _ string) (bool, error) {
	f.states = append(f.states, state)
	return true, nil
}

func newController(reg *fakeRegistry, exec *fakeExecutor) *controller.Controller {
	l := logger.NewLogger("debug", logger.TypeText)
	l.SetOutput(io.Discard)
	c := controller.NewController(l)
	c.AddRegistry(reg)
	c.AddExecutor(exec)
	return c
}

// deploymentRoot creates a build context holding a Dockerfile and returns
// the root together with the resolved Dockerfile path.
func deploymentRoot(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	dockerfile := filepath.Join(root, "Dockerfile")
	assert.NilError(t, os.WriteFile(dockerfile, []byte("FROM alpine:3.19\n"), 0o644))
	resolved, err := filepath.EvalSymlinks(dockerfile)
	assert.NilError(t, err)
	return root, resolved
}

func newRequest(root string) model.BuildRequest {
	return model.BuildRequest{
		ServiceName:    "api",
		Version:        "abc123",
		Environment:    "staging",
		RegistryURL:    registryURL,
		DeploymentRoot: root,
		DockerfilePath: "Dockerfile",
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("tag absent runs the full sequence", func(t *testing.T) {
		root, dockerfile := deploymentRoot(t)
		reg := &fakeRegistry{}
		exec := &fakeExecutor{}
		c := newController(reg, exec)

		outcome := c.Run(ctx, newRequest(root))
		assert.Equal(t, outcome.Status, model.ResponseStatusSuccess)
		assert.Equal(t, outcome.ExitCode(), 0)
		assert.Equal(t, reg.calls, 1)

		assert.DeepEqual(t, exec.executed, []model.CommandStep{
			{Stage: model.StageLogin, Program: "/bin/sh", Args: []string{"-c", "login 123456789012.dkr.ecr.us-east-1.amazonaws.com"}},
			{Stage: model.StageBuild, Program: "docker", Args: []string{"build", "-t", "api:abc123", "-f", dockerfile, root}},
			{Stage: model.StageTag, Program: "docker", Args: []string{"tag", "api:abc123", registryURL + ":abc123"}},
			{Stage: model.StagePush, Program: "docker", Args: []string{"push", registryURL + ":abc123"}},
		})
	})

	t.Run("tag present runs nothing", func(t *testing.T) {
		root, _ := deploymentRoot(t)
		exec := &fakeExecutor{}
		c := newController(&fakeRegistry{exists: true}, exec)

		outcome := c.Run(ctx, newRequest(root))
		assert.Equal(t, outcome.Status, model.ResponseStatusSkipped)
		assert.Equal(t, outcome.ExitCode(), 0)
		assert.Equal(t, len(exec.executed), 0)
	})

	t.Run("missing deployment root touches nothing", func(t *testing.T) {
		reg := &fakeRegistry{}
		exec := &fakeExecutor{}
		c := newController(reg, exec)

		outcome := c.Run(ctx, newRequest(filepath.Join(t.TempDir(), "missing")))
		assert.Equal(t, outcome.Status, model.ResponseStatusFailed)
		assert.Equal(t, outcome.ExitCode(), 1)
		assert.Assert(t, errors.Is(outcome.Err, controller.ErrInexistingRootDir))
		assert.Equal(t, reg.calls, 0)
		assert.Equal(t, len(exec.executed), 0)
	})

	t.Run("missing deployment root is neither recorded nor published", func(t *testing.T) {
		rec := &fakeRecorder{}
		pub := &fakePublisher{}
		c := newController(&fakeRegistry{}, &fakeExecutor{})
		c.BuildRecorder = rec
		c.Publisher = pub

		outcome := c.Run(ctx, newRequest(filepath.Join(t.TempDir(), "missing")))
		assert.Equal(t, outcome.ExitCode(), 1)
		assert.Equal(t, len(rec.created), 0)
		assert.Equal(t, len(rec.states), 0)
		assert.Equal(t, len(pub.responses), 0)
	})

	t.Run("missing dockerfile touches nothing", func(t *testing.T) {
		reg := &fakeRegistry{}
		exec := &fakeExecutor{}
		c := newController(reg, exec)

		outcome := c.Run(ctx, newRequest(t.TempDir()))
		assert.Equal(t, outcome.ExitCode(), 1)
		assert.Assert(t, errors.Is(outcome.Err, controller.ErrMissingDockerfile))
		assert.Equal(t, reg.calls, 0)
		assert.Equal(t, len(exec.executed), 0)
	})

	t.Run("malformed registry url is fatal", func(t *testing.T) {
		root, _ := deploymentRoot(t)
		exec := &fakeExecutor{}
		c := newController(&fakeRegistry{err: registry.ErrMalformedRegistryURL}, exec)

		outcome := c.Run(ctx, newRequest(root))
		assert.Equal(t, outcome.ExitCode(), 1)
		assert.Assert(t, errors.Is(outcome.Err, registry.ErrMalformedRegistryURL))
		assert.Equal(t, len(exec.executed), 0)
	})

	failures := []struct {
		stage    model.Stage
		executed []model.Stage
	}{
		{stage: model.StageLogin, executed: []model.Stage{model.StageLogin}},
		{stage: model.StageBuild, executed: []model.Stage{model.StageLogin, model.StageBuild}},
		{stage: model.StageTag, executed: []model.Stage{model.StageLogin, model.StageBuild, model.StageTag}},
		{stage: model.StagePush, executed: []model.Stage{model.StageLogin, model.StageBuild, model.StageTag, model.StagePush}},
	}
	for _, tt := range failures {
		t.Run(fmt.Sprintf("%s failure stops the sequence", tt.stage), func(t *testing.T) {
			root, _ := deploymentRoot(t)
			exec := &fakeExecutor{failAt: tt.stage}
			c := newController(&fakeRegistry{}, exec)

			outcome := c.Run(ctx, newRequest(root))
			assert.Equal(t, outcome.ExitCode(), 1)
			assert.Equal(t, outcome.FailedStage, tt.stage)
			assert.Assert(t, errors.Is(outcome.Err, controller.ErrStepFailed))
			assert.DeepEqual(t, exec.stages(), tt.executed)
		})
	}

	t.Run("spawn fault stops the sequence", func(t *testing.T) {
		root, _ := deploymentRoot(t)
		exec := &fakeExecutor{spawnAt: model.StageBuild}
		c := newController(&fakeRegistry{}, exec)

		outcome := c.Run(ctx, newRequest(root))
		assert.Equal(t, outcome.ExitCode(), 1)
		assert.Equal(t, outcome.FailedStage, model.StageBuild)
		assert.Assert(t, errors.Is(outcome.Err, executor.ErrSpawn))
		assert.DeepEqual(t, exec.stages(), []model.Stage{model.StageLogin, model.StageBuild})
	})

	t.Run("states are recorded", func(t *testing.T) {
		root, _ := deploymentRoot(t)
		rec := &fakeRecorder{}
		c := newController(&fakeRegistry{}, &fakeExecutor{})
		c.BuildRecorder = rec

		c.Run(ctx, newRequest(root))
		assert.Equal(t, len(rec.created), 1)
		assert.Equal(t, rec.created[0].State, model.BuildStateInit)
		assert.DeepEqual(t, rec.states, []model.BuildState{
			model.BuildStateValidated,
			model.BuildStateLoggingIn,
			model.BuildStateBuilding,
			model.BuildStateTagging,
			model.BuildStatePushing,
			model.BuildStateDone,
		})
	})

	t.Run("skipped run is recorded", func(t *testing.T) {
		root, _ := deploymentRoot(t)
		rec := &fakeRecorder{}
		c := newController(&fakeRegistry{exists: true}, &fakeExecutor{})
		c.BuildRecorder = rec

		c.Run(ctx, newRequest(root))
		assert.DeepEqual(t, rec.states, []model.BuildState{model.BuildStateValidated, model.BuildStateSkipped})
	})

	t.Run("outcome is published", func(t *testing.T) {
		root, _ := deploymentRoot(t)
		pub := &fakePublisher{}
		c := newController(&fakeRegistry{}, &fakeExecutor{failAt: model.StagePush})
		c.Publisher = pub

		c.Run(ctx, newRequest(root))
		assert.Equal(t, len(pub.responses), 1)
		assert.Equal(t, pub.responses[0].Status, model.ResponseStatusFailed)
		assert.Equal(t, pub.responses[0].FailedStage, model.StagePush)
		assert.Equal(t, pub.responses[0].Image, registryURL+":abc123")
		assert.Assert(t, pub.responses[0].RunID != "")
	})
}

func TestPlanCommands(t *testing.T) {
	root, dockerfile := deploymentRoot(t)
	c := newController(&fakeRegistry{}, &fakeExecutor{})

	t.Run("build args keep their order", func(t *testing.T) {
		req := newRequest(root)
		req.BuildArgs = []string{"A=1", "B=2"}

		plan, err := c.PlanCommands(req, dockerfile)
		assert.NilError(t, err)
		build, ok := plan.Step(model.StageBuild)
		assert.Assert(t, ok)
		assert.DeepEqual(t, build.Args, []string{
			"build", "-t", "api:abc123", "-f", dockerfile,
			"--build-arg", "A=1",
			"--build-arg", "B=2",
			root,
		})
	})

	t.Run("duplicate build args are kept", func(t *testing.T) {
		req := newRequest(root)
		req.BuildArgs = []string{"A=1", "A=1"}

		plan, err := c.PlanCommands(req, dockerfile)
		assert.NilError(t, err)
		build, _ := plan.Step(model.StageBuild)
		assert.Equal(t, len(build.Args), 10)
	})

	t.Run("target is selected when present", func(t *testing.T) {
		req := newRequest(root)
		req.BuildTarget = "release"

		plan, err := c.PlanCommands(req, dockerfile)
		assert.NilError(t, err)
		build, _ := plan.Step(model.StageBuild)
		assert.DeepEqual(t, build.Args, []string{"build", "-t", "api:abc123", "-f", dockerfile, "--target", "release", root})
	})

	t.Run("no target flag when absent", func(t *testing.T) {
		plan, err := c.PlanCommands(newRequest(root), dockerfile)
		assert.NilError(t, err)
		build, _ := plan.Step(model.StageBuild)
		for _, arg := range build.Args {
			assert.Assert(t, arg != "--target")
		}
	})

	t.Run("steps are ordered", func(t *testing.T) {
		plan, err := c.PlanCommands(newRequest(root), dockerfile)
		assert.NilError(t, err)
		assert.Equal(t, plan.Len(), 4)

		var stages []model.Stage
		for _, s := range plan.Steps() {
			stages = append(stages, s.Stage)
		}
		assert.DeepEqual(t, stages, []model.Stage{model.StageLogin, model.StageBuild, model.StageTag, model.StagePush})
	})

	t.Run("custom docker binary", func(t *testing.T) {
		custom := newController(&fakeRegistry{}, &fakeExecutor{})
		custom.DockerBin = "/usr/local/bin/docker"

		plan, err := custom.PlanCommands(newRequest(root), dockerfile)
		assert.NilError(t, err)
		push, _ := plan.Step(model.StagePush)
		assert.Equal(t, push.Program, "/usr/local/bin/docker")
	})
}

func TestValidatePreconditions(t *testing.T) {
	c := newController(&fakeRegistry{}, &fakeExecutor{})

	t.Run("resolves symlinked dockerfile", func(t *testing.T) {
		root, dockerfile := deploymentRoot(t)
		link := filepath.Join(root, "Dockerfile.prod")
		assert.NilError(t, os.Symlink(dockerfile, link))

		req := newRequest(root)
		req.DockerfilePath = "Dockerfile.prod"
		resolved, err := c.ValidatePreconditions(req)
		assert.NilError(t, err)
		assert.Equal(t, resolved, dockerfile)
	})

	t.Run("absolute dockerfile path", func(t *testing.T) {
		root, dockerfile := deploymentRoot(t)
		req := newRequest(root)
		req.DockerfilePath = dockerfile

		resolved, err := c.ValidatePreconditions(req)
		assert.NilError(t, err)
		assert.Equal(t, resolved, dockerfile)
	})

	t.Run("deployment root is a file", func(t *testing.T) {
		_, dockerfile := deploymentRoot(t)
		_, err := c.ValidatePreconditions(newRequest(dockerfile))
		assert.Assert(t, errors.Is(err, controller.ErrInexistingRootDir))
	})

	t.Run("dockerfile is a directory", func(t *testing.T) {
		root := t.TempDir()
		assert.NilError(t, os.Mkdir(filepath.Join(root, "Dockerfile"), 0o755))
		_, err := c.ValidatePreconditions(newRequest(root))
		assert.Assert(t, errors.Is(err, controller.ErrMissingDockerfile))
	})
}

func TestCanTransition(t *testing.T) {
	assert.Assert(t, controller.CanTransition(model.BuildStateInit, model.BuildStateValidated))
	assert.Assert(t, controller.CanTransition(model.BuildStateValidated, model.BuildStateSkipped))
	assert.Assert(t, controller.CanTransition(model.BuildStateTagging, model.BuildStateFailed))
	assert.Assert(t, !controller.CanTransition(model.BuildStateInit, model.BuildStateBuilding))
	assert.Assert(t, !controller.CanTransition(model.BuildStateBuilding, model.BuildStatePushing))
	assert.Assert(t, !controller.CanTransition(model.BuildStateFailed, model.BuildStateInit))
	assert.Assert(t, !controller.CanTransition(model.BuildStateSkipped, model.BuildStateBuilding))
}
