package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chiliseed/build-worker/config"
	"github.com/chiliseed/build-worker/controller"
	"github.com/chiliseed/build-worker/handlers/rabbitmq"
	"github.com/chiliseed/build-worker/pkg/logger"
	gitConnector "github.com/chiliseed/build-worker/providers/connectors/git"
	"github.com/chiliseed/build-worker/providers/executor/shell"
	"github.com/chiliseed/build-worker/repo/mongo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configPath     string
	serviceName    string
	version        string
	environment    string
	registryURL    string
	provider       string
	deploymentRoot string
	dockerfile     string
	target         string
	buildArgs      []string
	logLevel       string
	dryRun         bool
}

// Execute runs the worker with the process arguments and returns the exit
// code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:])
}

// Run executes the root command with args. A nil args does not fall back to
// os.Args.
func Run(ctx context.Context, args []string) int {
	code := 0
	root := NewRootCommand(&code)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return 1
	}
	return code
}

func NewRootCommand(code *int) *cobra.Command {
	o := new(options)
	cmd := &cobra.Command{
		Use:   "build-worker",
		Short: "Build, tag and push a service image unless its version is already published",
		Long: `build-worker builds the Dockerfile found in the deployment root, tags the
image with the service version and pushes it to the registry. If the registry
already holds that version nothing is built.

Every flag can also be set through the environment (CHILISEED_SERVICE_NAME,
CHILISEED_VERSION, CHILISEED_ECR_URL, DOCKERFILE_TARGET, BUILD_ARGS, ...).`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewConfig(o.configPath)
			if err != nil {
				return err
			}
			o.apply(cmd.Flags(), conf)

			l := logger.NewLogger(conf.Log.Level, conf.Log.Type)
			l.Debug("initialized logger")

			*code, err = run(cmd.Context(), conf, l)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "path to a yaml config file")
	f.StringVar(&o.serviceName, "service-name", "", "name of the service, used for the local image")
	f.StringVar(&o.version, "version", "", "version to publish, defaults to the short HEAD hash of the deployment root")
	f.StringVar(&o.environment, "env", "", "environment the image is built for")
	f.StringVar(&o.registryURL, "registry-url", "", "registry host and repository, e.g. 123456789012.dkr.ecr.us-east-1.amazonaws.com/api")
	f.StringVar(&o.provider, "registry-provider", "", "registry to query: ecr, awscli or docker")
	f.StringVar(&o.deploymentRoot, "deployment-root", "", "build context directory")
	f.StringVarP(&o.dockerfile, "file", "f", "", "Dockerfile, relative to the deployment root unless absolute")
	f.StringVar(&o.target, "target", "", "build stage to stop at")
	f.StringArrayVar(&o.buildArgs, "build-arg", nil, "KEY=VALUE passed to docker build, repeatable")
	f.StringVar(&o.logLevel, "log-level", "", "log level")
	f.BoolVar(&o.dryRun, "dry-run", false, "log the commands instead of running them")

	return cmd
}

// apply lets flags that were set on the command line win over the config.
func (o *options) apply(f *pflag.FlagSet, conf *config.Config) {
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("service-name", &conf.Build.ServiceName, o.serviceName)
	set("version", &conf.Build.Version, o.version)
	set("env", &conf.Build.Environment, o.environment)
	set("registry-url", &conf.Registry.URL, o.registryURL)
	set("registry-provider", &conf.Registry.Provider, o.provider)
	set("deployment-root", &conf.Build.DeploymentRoot, o.deploymentRoot)
	set("file", &conf.Build.Dockerfile, o.dockerfile)
	set("target", &conf.Build.Target, o.target)
	set("log-level", &conf.Log.Level, o.logLevel)
	if f.Changed("build-arg") {
		conf.Build.Args = o.buildArgs
	}
	if f.Changed("dry-run") {
		conf.Build.DryRun = o.dryRun
	}
}

func run(ctx context.Context, conf *config.Config, l *logrus.Logger) (int, error) {
	wd, _ := os.Getwd()
	l.Infof("%s %s starting build in pwd: %s", conf.App.Name, conf.App.Version, wd)

	if conf.Build.Version == "" {
		version, err := gitConnector.NewGitConnector(gitConnector.DefaultShortHashLength, l).ResolveVersion(ctx, conf.Build.DeploymentRoot)
		if err != nil {
			l.WithError(err).Warn("no version configured and none could be read from git")
		} else {
			conf.Build.Version = version
		}
	}

	if err := conf.Validate(); err != nil {
		l.Error(err)
		return 1, err
	}

	req := conf.BuildRequest()
	c := controller.NewController(l)
	c.DockerBin = conf.Tools.Docker
	// nothing is dialed before the build context is known to be usable
	if _, err := c.ValidatePreconditions(req); err != nil {
		l.Error(err)
		return 1, err
	}

	exec := shell.NewShell(conf.Build.DryRun, l)
	provider, err := newProvider(ctx, conf, exec, l)
	if err != nil {
		l.Error(err)
		return 1, err
	}
	c.AddRegistry(provider)
	c.AddExecutor(exec)

	if conf.Database.URI != "" {
		client, err := mongo.Connect(ctx, conf.Database.URI)
		if err != nil {
			l.WithError(err).Warn("unable to connect to the database, builds will not be recorded")
		} else {
			defer client.Disconnect(context.Background())
			c.BuildRecorder = mongo.NewBuildRecorder(client.Database(conf.Database.Name).Collection(conf.Database.Collection))
			l.Info("recording builds in the database")
		}
	}

	if conf.RMQ.URI != "" {
		rmq := rabbitmq.NewRabbitMQ(conf.RMQ.URI, conf.RMQ.ResponseQueue, l)
		if err := rmq.Connect(); err != nil {
			l.WithError(err).Warn("unable to connect to rabbitmq, the outcome will not be published")
		} else {
			defer rmq.Close()
			c.Publisher = rmq
		}
	}

	outcome := c.Run(ctx, req)
	if outcome.Err != nil {
		return outcome.ExitCode(), fmt.Errorf("%s: %w", outcome.Status, outcome.Err)
	}
	return outcome.ExitCode(), nil
}
