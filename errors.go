package pluginengine

import (
	"errors"
	"fmt"
)

// Engine errors
var (
	// ErrPluginsAlreadyLoaded is returned when LoadPlugins is called a
	// second time on the same Engine instance. Loading is single-shot.
	ErrPluginsAlreadyLoaded = errors.New("plugins already loaded")

	// ErrUnresolvableDependencies is returned when the resolver cannot make
	// progress: a required-dependency cycle, or a required dependency
	// referencing a name that never became a valid candidate.
	ErrUnresolvableDependencies = errors.New("could not resolve dependencies between plugins")

	// ErrPluginContextMismatch indicates a scoped pop returned a different
	// plugin than the one pushed. This is an internal consistency violation
	// and causes a panic rather than a recoverable error.
	ErrPluginContextMismatch = errors.New("plugin context mismatch")

	// ErrEngineNotConfigured is returned when LoadPlugins runs without a
	// namespace or loader configured.
	ErrEngineNotConfigured = errors.New("engine not configured")
)

// Config errors
var (
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
	ErrConfigNamespaceMissing  = errors.New("config namespace is missing")
)

// Loader errors
var (
	ErrFactoryNil          = errors.New("registration factory is nil")
	ErrUnknownHandle       = errors.New("unknown plugin handle")
	ErrManifestNameMissing = errors.New("manifest name is missing")
	ErrNoFactoryForPlugin  = errors.New("no factory registered for plugin")
)

// FailureReason classifies why a requested plugin name ended up in the
// failed set.
type FailureReason string

const (
	// FailureNotFound means discovery returned zero candidates for the name.
	FailureNotFound FailureReason = "not_found"

	// FailureAmbiguous means discovery returned more than one candidate for
	// the name. This is a configuration error in the surrounding system.
	FailureAmbiguous FailureReason = "ambiguous"

	// FailureMaterialize means the loader could not produce a working
	// implementation for the candidate.
	FailureMaterialize FailureReason = "materialize_failed"

	// FailureContract means the materialized implementation does not
	// satisfy the Plugin interface.
	FailureContract FailureReason = "contract_violation"

	// FailureInit means the plugin's Init hook returned an error.
	FailureInit FailureReason = "init_failed"

	// FailureDependency means a required dependency of the plugin failed to
	// initialize earlier in the same load pass.
	FailureDependency FailureReason = "dependency_failed"
)

// LoadError records why a single plugin name could not be loaded. Per-name
// failures never abort the load pass on their own; they are collected and
// reported through Engine.LoadErrors and Engine.GetFailedPlugins.
type LoadError struct {
	// Name is the configured plugin key that failed.
	Name string

	// Reason classifies the failure.
	Reason FailureReason

	// Err holds the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("plugin %s: %s", e.Name, e.Reason)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
