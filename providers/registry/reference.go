package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chiliseed/build-worker/model"
	"github.com/sirupsen/logrus"
)

var ErrMalformedRegistryURL = errors.New("malformed registry url")

type Reference struct {
	URL        string
	Host       string
	Repository string
}

// ParseReference splits a registry url on the first occurrence of sep,
// e.g. ".com/" for 123.dkr.ecr.us-east-1.amazonaws.com/api.
func ParseReference(url, sep string) (Reference, error) {
	if sep == "" {
		return Reference{}, fmt.Errorf("%w: empty separator", ErrMalformedRegistryURL)
	}
	idx := strings.Index(url, sep)
	if idx <= 0 {
		return Reference{}, fmt.Errorf("%w: %q has no %q between host and repository", ErrMalformedRegistryURL, url, sep)
	}

	host := strings.TrimSuffix(url[:idx+len(sep)], "/")
	repo := strings.Trim(url[idx+len(sep):], "/")
	if repo == "" {
		return Reference{}, fmt.Errorf("%w: %q has no repository", ErrMalformedRegistryURL, url)
	}
	return Reference{URL: url, Host: host, Repository: repo}, nil
}

// ECRLoginStep pipes a short lived ECR password into docker login. Shared by
// the ecr and awscli providers.
func ECRLoginStep(opts LoginOptions, ref Reference) model.CommandStep {
	region := ""
	if opts.Region != "" {
		region = " --region " + opts.Region
	}
	return opts.shellStep(fmt.Sprintf("%s ecr get-login-password%s | %s login --username AWS --password-stdin %s",
		opts.AWS, region, opts.Docker, ref.Host))
}

// ShellStep wraps script in a login step run through the configured shell.
func (o LoginOptions) ShellStep(script string) model.CommandStep {
	return o.shellStep(script)
}

func LogQuery(l *logrus.Logger, provider string, ref Reference, tag string) {
	l.WithFields(logrus.Fields{
		"provider":   provider,
		"host":       ref.Host,
		"repository": ref.Repository,
	}).Infof("checking if image tag %s exists in repo %s", tag, ref.Repository)
}

// LogAbsent keeps "not published" and "could not ask" apart in the logs, even
// though both let the build go ahead.
func LogAbsent(l *logrus.Logger, ref Reference, tag string, queryErr error) {
	if queryErr == nil {
		l.Infof("image tag %s not found in repo %s", tag, ref.Repository)
		return
	}
	l.WithError(queryErr).Warnf("unable to check image tag %s in repo %s, assuming it is not published", tag, ref.Repository)
}
