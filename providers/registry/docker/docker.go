package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/providers/registry"
	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/sirupsen/logrus"
)

const ProviderName = "docker"

var _ registry.Provider = new(Registry)

type DistributionInspector interface {
	DistributionInspect(ctx context.Context, imageRef, encodedRegistryAuth string) (registrytypes.DistributionInspect, error)
}

// Registry asks any v2 registry through the local docker daemon, which
// resolves the manifest without pulling it.
type Registry struct {
	username  string
	password  string
	separator string
	login     registry.LoginOptions

	dockerClient DistributionInspector
	l            *logrus.Logger
}

// if no authentication is required, leave username and password empty
func NewRegistry(username, password, separator string, login registry.LoginOptions, l *logrus.Logger) (*Registry, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return NewRegistryWithClient(cli, username, password, separator, login, l), nil
}

func NewRegistryWithClient(cli DistributionInspector, username, password, separator string, login registry.LoginOptions, l *logrus.Logger) *Registry {
	return &Registry{
		username:     username,
		password:     password,
		separator:    separator,
		login:        login,
		dockerClient: cli,
		l:            l,
	}
}

func (r *Registry) ImageTagExists(ctx context.Context, tag, registryURL string) (bool, error) {
	ref, err := registry.ParseReference(registryURL, r.separator)
	if err != nil {
		return false, err
	}
	registry.LogQuery(r.l, ProviderName, ref, tag)

	auth, err := r.encodedAuth(ref.Host)
	if err != nil {
		registry.LogAbsent(r.l, ref, tag, err)
		return false, nil
	}

	image := fmt.Sprintf("%s:%s", ref.URL, tag)
	inspect, err := r.dockerClient.DistributionInspect(ctx, image, auth)
	if err != nil {
		if isManifestUnknown(err) {
			registry.LogAbsent(r.l, ref, tag, nil)
			return false, nil
		}
		registry.LogAbsent(r.l, ref, tag, err)
		return false, nil
	}
	r.l.Debugf("%s resolves to %s", image, inspect.Descriptor.Digest)
	return true, nil
}

func (r *Registry) encodedAuth(host string) (string, error) {
	if r.username == "" && r.password == "" {
		return "", nil
	}
	return registrytypes.EncodeAuthConfig(registrytypes.AuthConfig{
		Username:      r.username,
		Password:      r.password,
		ServerAddress: host,
	})
}

// LoginStep lets docker prompt for the password on the inherited stdin,
// unless REGISTRY_PASSWORD is set.
func (r *Registry) LoginStep(registryURL string) (model.CommandStep, error) {
	ref, err := registry.ParseReference(registryURL, r.separator)
	if err != nil {
		return model.CommandStep{}, err
	}

	user := r.login.Username
	if user == "" {
		user = r.username
	}
	switch {
	case r.login.Command != "":
		return r.login.ShellStep(r.login.Command), nil
	case user != "" && r.password != "":
		return r.login.ShellStep(fmt.Sprintf(`printf '%%s' "$REGISTRY_PASSWORD" | %s login --username %s --password-stdin %s`,
			r.login.Docker, user, ref.Host)), nil
	}

	args := []string{"login"}
	if user != "" {
		args = append(args, "--username", user)
	}
	return model.CommandStep{
		Stage:   model.StageLogin,
		Program: r.login.Docker,
		Args:    append(args, ref.Host),
	}, nil
}

// isManifestUnknown matches only the registry's answer for a missing tag.
// Daemon, auth and credential helper errors are query failures.
func isManifestUnknown(err error) bool {
	if errdefs.IsNotFound(err) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "manifest unknown")
}
