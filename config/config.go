package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/chiliseed/build-worker/model"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		App      `yaml:"app"`
		Log      `yaml:"logger"`
		Build    `yaml:"build"`
		Registry `yaml:"registry"`
		Tools    `yaml:"tools"`
		RMQ      `yaml:"rmq"`
		Database `yaml:"database"`
	}

	App struct {
		Name    string `yaml:"name"    env:"APP_NAME"    env-default:"build-worker"`
		Version string `yaml:"version" env:"APP_VERSION" env-default:"dev"`
	}

	Log struct {
		Level string `yaml:"level" env:"CHILISEED_LOG" env-default:"info"`
		Type  string `yaml:"type"  env:"LOG_TYPE"      env-default:"text"`
	}

	Build struct {
		ServiceName    string   `yaml:"serviceName"    env:"CHILISEED_SERVICE_NAME"`
		Version        string   `yaml:"version"        env:"CHILISEED_VERSION"`
		Environment    string   `yaml:"environment"    env:"CHILISEED_ENV"`
		DeploymentRoot string   `yaml:"deploymentRoot" env:"DEPLOYMENT_ROOT" env-default:"/home/ubuntu/deployment/build"`
		Dockerfile     string   `yaml:"dockerfile"     env:"DOCKERFILE_PATH" env-default:"Dockerfile"`
		Target         string   `yaml:"target"         env:"DOCKERFILE_TARGET"`
		Args           []string `yaml:"args"           env:"BUILD_ARGS" env-separator:";"`
		DryRun         bool     `yaml:"dryRun"         env:"DRY_RUN"`
	}

	Registry struct {
		Provider     string `yaml:"provider"     env:"REGISTRY_PROVIDER"  env-default:"ecr"`
		URL          string `yaml:"url"          env:"CHILISEED_ECR_URL"`
		Separator    string `yaml:"separator"    env:"REGISTRY_SEPARATOR" env-default:".com/"`
		Region       string `yaml:"region"       env:"AWS_DEFAULT_REGION"`
		Username     string `yaml:"username"     env:"REGISTRY_USERNAME"`
		Password     string `yaml:"-"            env:"REGISTRY_PASSWORD"`
		LoginCommand string `yaml:"loginCommand" env:"REGISTRY_LOGIN_COMMAND"`
	}

	Tools struct {
		Docker string `yaml:"docker" env:"DOCKER_BIN" env-default:"docker"`
		AWS    string `yaml:"aws"    env:"AWS_BIN"    env-default:"aws"`
		Shell  string `yaml:"shell"  env:"SHELL_BIN"  env-default:"/bin/sh"`
	}

	RMQ struct {
		URI           string `yaml:"uri"           env:"RMQ_URI"`
		ResponseQueue string `yaml:"responseQueue" env:"RMQ_RESPONSE_QUEUE" env-default:"build-worker-responses"`
	}

	Database struct {
		URI        string `yaml:"uri"        env:"DATABASE_URI"`
		Name       string `yaml:"name"       env:"DATABASE_NAME"       env-default:"chiliseed"`
		Collection string `yaml:"collection" env:"DATABASE_COLLECTION" env-default:"builds"`
	}
)

const (
	ProviderECR    = "ecr"
	ProviderAWSCLI = "awscli"
	ProviderDocker = "docker"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// NewConfig reads an optional .env file, then the yaml file at path when
// one is given, then the environment.
func NewConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config error: loading .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg.Build.Args = compact(cfg.Build.Args)
	return cfg, nil
}

// Validate reports every missing or unsupported input at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Build.ServiceName) == "" {
		errs = append(errs, errors.New("service name is required (CHILISEED_SERVICE_NAME)"))
	}
	if strings.TrimSpace(c.Build.Version) == "" {
		errs = append(errs, errors.New("version is required (CHILISEED_VERSION)"))
	}
	if strings.TrimSpace(c.Registry.URL) == "" {
		errs = append(errs, errors.New("registry url is required (CHILISEED_ECR_URL)"))
	}
	if strings.TrimSpace(c.Build.DeploymentRoot) == "" {
		errs = append(errs, errors.New("deployment root is required (DEPLOYMENT_ROOT)"))
	}
	if c.Registry.Separator == "" {
		errs = append(errs, errors.New("registry separator must not be empty (REGISTRY_SEPARATOR)"))
	}
	switch c.Registry.Provider {
	case ProviderECR, ProviderAWSCLI, ProviderDocker:
	default:
		errs = append(errs, fmt.Errorf("unsupported registry provider %q (valid: ecr, awscli, docker)", c.Registry.Provider))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// BuildRequest derives the immutable request the pipeline runs on.
func (c *Config) BuildRequest() model.BuildRequest {
	args := make([]string, len(c.Build.Args))
	copy(args, c.Build.Args)
	return model.BuildRequest{
		ServiceName:    c.Build.ServiceName,
		Version:        c.Build.Version,
		Environment:    c.Build.Environment,
		RegistryURL:    c.Registry.URL,
		DeploymentRoot: c.Build.DeploymentRoot,
		DockerfilePath: c.Build.Dockerfile,
		BuildTarget:    c.Build.Target,
		BuildArgs:      args,
	}
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
