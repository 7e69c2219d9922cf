package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/chiliseed/build-worker/providers/connectors"
	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
)

const DefaultShortHashLength = 7

var (
	_ connectors.VersionResolver = new(GitConnector)

	ErrNotARepository = errors.New("not a git repository")
)

// GitConnector reads the checked out revision of the repository the build
// context lives in.
type GitConnector struct {
	hashLength int
	l          *logrus.Logger
}

func NewGitConnector(hashLength int, l *logrus.Logger) *GitConnector {
	if hashLength <= 0 || hashLength > 40 {
		hashLength = DefaultShortHashLength
	}
	return &GitConnector{
		hashLength: hashLength,
		l:          l,
	}
}

// ResolveVersion returns the abbreviated HEAD hash of the repository that
// contains path, looking up parent directories for the .git folder.
func (g *GitConnector) ResolveVersion(_ context.Context, path string) (string, error) {
	g.l.Debugf("resolving version from git repository at %s", path)

	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return "", fmt.Errorf("opening repository at %s: %w", path, err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD of %s: %w", path, err)
	}

	version := head.Hash().String()[:g.hashLength]
	g.l.Infof("resolved version %s from %s", version, head.Name().Short())
	return version, nil
}
