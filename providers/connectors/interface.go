package connectors

import "context"

// VersionResolver finds the version to publish when none was configured.
type VersionResolver interface {
	ResolveVersion(ctx context.Context, path string) (string, error)
}
