package pluginengine

import "context"

// ScopeProvider is the application-scoped resource collaborator. The host
// supplies one so the engine can run each plugin's Init inside whatever
// scope the surrounding application requires (a request context, a database
// session, a unit of work). The engine does not know or care what the scope
// represents; it only guarantees acquisition before Init and release on
// every exit path.
type ScopeProvider interface {
	// RunInScope acquires the application scope, runs fn inside it, and
	// releases the scope when fn returns or panics. The context passed to
	// fn may carry scope-specific values.
	RunInScope(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopScopeProvider is the default ScopeProvider; it runs fn without
// acquiring anything.
type NoopScopeProvider struct{}

// RunInScope implements ScopeProvider.
func (NoopScopeProvider) RunInScope(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
