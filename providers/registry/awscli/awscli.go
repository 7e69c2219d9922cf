package awscli

import (
	"context"
	"fmt"
	"strings"

	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/providers/registry"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const ProviderName = "awscli"

var _ registry.Provider = new(AWSCLI)

type OutputRunner interface {
	Output(ctx context.Context, program string, args ...string) ([]byte, error)
}

// AWSCLI asks ECR through the aws binary instead of the SDK, for hosts where
// the cli is already configured with a profile the SDK does not pick up.
type AWSCLI struct {
	runner    OutputRunner
	separator string
	login     registry.LoginOptions
	l         *logrus.Logger
}

func NewAWSCLI(runner OutputRunner, separator string, login registry.LoginOptions, l *logrus.Logger) *AWSCLI {
	return &AWSCLI{
		runner:    runner,
		separator: separator,
		login:     login,
		l:         l,
	}
}

func (a *AWSCLI) ImageTagExists(ctx context.Context, tag, registryURL string) (bool, error) {
	ref, err := registry.ParseReference(registryURL, a.separator)
	if err != nil {
		return false, err
	}
	registry.LogQuery(a.l, ProviderName, ref, tag)

	args := []string{
		"ecr", "describe-images",
		"--repository-name", ref.Repository,
		"--image-ids", "imageTag=" + tag,
		"--output", "json",
	}
	if a.login.Region != "" {
		args = append(args, "--region", a.login.Region)
	}

	out, err := a.runner.Output(ctx, a.login.AWS, args...)
	if err != nil {
		if strings.Contains(err.Error(), "ImageNotFoundException") {
			registry.LogAbsent(a.l, ref, tag, nil)
			return false, nil
		}
		registry.LogAbsent(a.l, ref, tag, err)
		return false, nil
	}

	if !gjson.ValidBytes(out) {
		registry.LogAbsent(a.l, ref, tag, fmt.Errorf("unexpected describe-images output: %.200s", out))
		return false, nil
	}
	count := gjson.GetBytes(out, "imageDetails.#").Int()
	if count == 0 {
		registry.LogAbsent(a.l, ref, tag, nil)
		return false, nil
	}
	a.l.Debugf("found %d image(s) tagged %s in %s, pushed at %s", count, tag, ref.Repository,
		gjson.GetBytes(out, "imageDetails.0.imagePushedAt").String())
	return true, nil
}

func (a *AWSCLI) LoginStep(registryURL string) (model.CommandStep, error) {
	ref, err := registry.ParseReference(registryURL, a.separator)
	if err != nil {
		return model.CommandStep{}, err
	}
	return registry.ECRLoginStep(a.login, ref), nil
}
