package fsops

import "context"

// pathResolver maps virtual paths to real paths inside the sandbox.
type pathResolver interface {
	Resolve(ctx context.Context, virtual string) (string, error)
	ResolveTarget(ctx context.Context, virtual string) (string, error)
	LinkTarget(ctx context.Context, link, target string) (string, error)
}
