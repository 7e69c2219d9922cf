package registry

import (
	"context"

	"github.com/chiliseed/build-worker/model"
)

type (
	// Checker answers whether a tag is already published. A failed query is
	// reported as absent; only a malformed registry url is an error.
	Checker interface {
		ImageTagExists(ctx context.Context, tag, registryURL string) (bool, error)
	}

	Authenticator interface {
		LoginStep(registryURL string) (model.CommandStep, error)
	}

	Provider interface {
		Checker
		Authenticator
	}
)

// LoginOptions configures the login step every provider builds.
type LoginOptions struct {
	Docker   string
	AWS      string
	Shell    string
	Region   string
	Username string
	// Command replaces the provider's default login script.
	Command string
}

func (o LoginOptions) shellStep(script string) model.CommandStep {
	if o.Command != "" {
		script = o.Command
	}
	return model.CommandStep{
		Stage:   model.StageLogin,
		Program: o.Shell,
		Args:    []string{"-c", script},
	}
}
