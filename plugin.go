// Package pluginengine provides a plugin registry for Go applications.
// It discovers a declared set of named extension components through a
// pluggable loader, resolves their load order from declared hard and soft
// dependencies, initializes them in that order, and tracks which ones
// succeeded or failed.
//
// A plugin is any value satisfying the Plugin interface. Plugins can
// optionally declare dependencies, a version, and documentation by
// implementing additional interfaces like DependencyAware, Versioned, etc.
//
// Basic usage:
//
//	loader := pluginengine.NewStaticLoader()
//	loader.Register("myapp", "espresso", pluginengine.Registration{
//		Factory: func() (any, error) { return &EspressoPlugin{}, nil },
//		Info:    pluginengine.PackageInfo{PackageName: "espresso", PackageVersion: "1.2.3"},
//	})
//
//	engine := pluginengine.New("myapp", pluginengine.WithLoader(loader))
//	engine.Configure("myapp", []string{"espresso"})
//	ok, err := engine.LoadPlugins(context.Background(), true)
package pluginengine

import "context"

// Plugin is the capability contract every loadable implementation must
// satisfy. The engine validates materialized implementations against this
// interface; anything else is recorded as a load failure for its name.
//
// Init is invoked exactly once per successful load, in dependency order,
// with the plugin pushed onto the execution context stack and inside the
// host's application scope. Plugins that need no initialization should
// return nil.
type Plugin interface {
	// Init initializes the plugin at load time. The engine passed in is
	// the one performing the load; plugins may look up already-loaded
	// dependencies through it.
	Init(ctx context.Context, engine *Engine) error
}

// DependencyAware is an optional interface for plugins that require other
// plugins to be loaded first. A required dependency that is missing or
// failed prevents this plugin from loading.
type DependencyAware interface {
	// RequiredPlugins returns names of plugins that must successfully load
	// before this one. Names must match the configured plugin keys exactly.
	RequiredPlugins() []string
}

// SoftDependencyAware is an optional interface for plugins that prefer
// other plugins to be loaded first when possible. Unlike required
// dependencies, a soft dependency that is absent or failed never blocks
// loading.
type SoftDependencyAware interface {
	// UsedPlugins returns names of plugins preferred to load before this
	// one.
	UsedPlugins() []string
}

// Versioned is an optional interface for plugins that declare their own
// version. Plugins without it inherit the package version reported by the
// loader.
type Versioned interface {
	Version() string
}

// Documented is an optional interface for plugins that carry a
// documentation string. The first line becomes the plugin title; the
// remainder, trimmed of common leading indentation, becomes the
// description.
type Documented interface {
	Doc() string
}

// Dependencies holds the declared dependency sets of one candidate, as fed
// to the dependency resolver.
type Dependencies struct {
	// Required lists names that must appear strictly before the candidate.
	Required []string
	// Used lists names preferred to appear before the candidate whenever
	// they are part of the candidate set being resolved.
	Used []string
}

// pluginDependencies extracts the declared dependency sets from a plugin
// via its optional interfaces.
func pluginDependencies(p Plugin) Dependencies {
	var deps Dependencies
	if da, ok := p.(DependencyAware); ok {
		deps.Required = da.RequiredPlugins()
	}
	if sa, ok := p.(SoftDependencyAware); ok {
		deps.Used = sa.UsedPlugins()
	}
	return deps
}
