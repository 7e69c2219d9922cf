package controller

import (
	"github.com/chiliseed/build-worker/model"
	orderedmap "github.com/wk8/go-ordered-map"
)

// BuildPlan holds the steps of a run in execution order, keyed by stage.
type BuildPlan struct {
	steps *orderedmap.OrderedMap
}

func newBuildPlan() *BuildPlan {
	return &BuildPlan{steps: orderedmap.New()}
}

func (p *BuildPlan) add(step model.CommandStep) {
	p.steps.Set(step.Stage, step)
}

func (p *BuildPlan) Len() int {
	return p.steps.Len()
}

func (p *BuildPlan) Step(stage model.Stage) (model.CommandStep, bool) {
	v, ok := p.steps.Get(stage)
	if !ok {
		return model.CommandStep{}, false
	}
	return v.(model.CommandStep), true
}

func (p *BuildPlan) Steps() []model.CommandStep {
	steps := make([]model.CommandStep, 0, p.steps.Len())
	for pair := p.steps.Oldest(); pair != nil; pair = pair.Next() {
		steps = append(steps, pair.Value.(model.CommandStep))
	}
	return steps
}

// PlanCommands assembles login, build, tag and push for the request.
// dockerfile must already be absolute.
func (c *Controller) PlanCommands(req model.BuildRequest, dockerfile string) (*BuildPlan, error) {
	if c.Registry == nil {
		return nil, ErrMissingRegistry
	}
	login, err := c.Registry.LoginStep(req.RegistryURL)
	if err != nil {
		return nil, err
	}

	plan := newBuildPlan()
	plan.add(login)
	plan.add(model.CommandStep{
		Stage:   model.StageBuild,
		Program: c.DockerBin,
		Args:    buildArgs(req, dockerfile),
	})
	plan.add(model.CommandStep{
		Stage:   model.StageTag,
		Program: c.DockerBin,
		Args:    []string{"tag", req.LocalImage(), req.RemoteImage()},
	})
	plan.add(model.CommandStep{
		Stage:   model.StagePush,
		Program: c.DockerBin,
		Args:    []string{"push", req.RemoteImage()},
	})
	return plan, nil
}

func buildArgs(req model.BuildRequest, dockerfile string) []string {
	args := []string{"build", "-t", req.LocalImage(), "-f", dockerfile}
	if req.HasTarget() {
		args = append(args, "--target", req.BuildTarget)
	}
	for _, arg := range req.BuildArgs {
		args = append(args, "--build-arg", arg)
	}
	return append(args, req.DeploymentRoot)
}
