package cmd

import (
	"context"
	"fmt"

	"github.com/chiliseed/build-worker/config"
	"github.com/chiliseed/build-worker/providers/executor"
	"github.com/chiliseed/build-worker/providers/registry"
	"github.com/chiliseed/build-worker/providers/registry/awscli"
	"github.com/chiliseed/build-worker/providers/registry/docker"
	"github.com/chiliseed/build-worker/providers/registry/ecr"
	"github.com/sirupsen/logrus"
)

func newProvider(ctx context.Context, conf *config.Config, exec executor.Executor, l *logrus.Logger) (registry.Provider, error) {
	login := registry.LoginOptions{
		Docker:   conf.Tools.Docker,
		AWS:      conf.Tools.AWS,
		Shell:    conf.Tools.Shell,
		Region:   conf.Registry.Region,
		Username: conf.Registry.Username,
		Command:  conf.Registry.LoginCommand,
	}

	switch conf.Registry.Provider {
	case config.ProviderECR:
		l.Info("using the aws sdk to query ecr")
		e, err := ecr.NewECR(ctx, conf.Registry.Separator, login, l)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.ProviderAWSCLI:
		l.Info("using the aws cli to query ecr")
		return awscli.NewAWSCLI(exec, conf.Registry.Separator, login, l), nil
	case config.ProviderDocker:
		l.Info("using the docker daemon to query the registry")
		r, err := docker.NewRegistry(conf.Registry.Username, conf.Registry.Password, conf.Registry.Separator, login, l)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("registry provider %q not supported", conf.Registry.Provider)
}
