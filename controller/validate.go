package controller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chiliseed/build-worker/model"
)

// ValidatePreconditions checks the build context and returns the Dockerfile
// as an absolute path with symlinks resolved.
func (c *Controller) ValidatePreconditions(req model.BuildRequest) (string, error) {
	info, err := os.Stat(req.DeploymentRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrInexistingRootDir, req.DeploymentRoot)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInexistingRootDir, req.DeploymentRoot)
	}

	dockerfile := req.DockerfilePath
	if dockerfile == "" {
		dockerfile = model.DefaultDockerfile
	}
	if !filepath.IsAbs(dockerfile) {
		dockerfile = filepath.Join(req.DeploymentRoot, dockerfile)
	}

	info, err = os.Stat(dockerfile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrMissingDockerfile, dockerfile)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrMissingDockerfile, dockerfile)
	}

	abs, err := filepath.Abs(dockerfile)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dockerfile, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", abs, err)
	}
	c.l.Debugf("using dockerfile %s", resolved)
	return resolved, nil
}
