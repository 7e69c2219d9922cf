package model

import "fmt"

type (
	// BuildRequest is built once at startup from the validated configuration
	// and passed by value from then on.
	BuildRequest struct {
		ServiceName    string
		Version        string
		Environment    string
		RegistryURL    string
		DeploymentRoot string
		DockerfilePath string
		BuildTarget    string   // empty means no target stage
		BuildArgs      []string // raw KEY=VALUE pairs, passed through verbatim
	}

	CommandStep struct {
		Stage   Stage
		Program string
		Args    []string
	}
)

type Stage string

const (
	StageLogin Stage = "login"
	StageBuild Stage = "build"
	StageTag   Stage = "tag"
	StagePush  Stage = "push"

	DefaultDeploymentRoot = "/home/ubuntu/deployment/build"
	DefaultDockerfile     = "Dockerfile"
)

// LocalImage is the reference of the image built on this host.
func (r BuildRequest) LocalImage() string {
	return fmt.Sprintf("%s:%s", r.ServiceName, r.Version)
}

// RemoteImage is the reference the image is published under.
func (r BuildRequest) RemoteImage() string {
	return fmt.Sprintf("%s:%s", r.RegistryURL, r.Version)
}

func (r BuildRequest) HasTarget() bool {
	return r.BuildTarget != ""
}

func (s CommandStep) String() string {
	return fmt.Sprintf("%s %v", s.Program, s.Args)
}
