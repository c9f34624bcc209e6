package pluginengine

import (
	"context"
	"fmt"
	"sync"
)

// Handle identifies a discovered plugin candidate prior to materialization.
// Handles are produced by a Loader's Find and consumed by its Materialize
// and PackageInfo methods.
type Handle interface {
	// Name returns the plugin name the handle was discovered under.
	Name() string

	// Source identifies where the candidate came from. It is used only in
	// diagnostics, for example when a name resolves ambiguously.
	Source() string
}

// PackageInfo carries identity metadata about the package providing a
// plugin implementation.
type PackageInfo struct {
	// PackageName is the name of the providing package.
	PackageName string

	// PackageVersion is the version of the providing package. Plugins that
	// do not declare their own version inherit it.
	PackageVersion string

	// RootPath is the resolved filesystem root of the providing package,
	// when known.
	RootPath string
}

// Loader locates and materializes plugin implementations for the engine.
// The engine treats zero candidates, multiple candidates, and
// materialization failure as the three discovery-phase failure cases; the
// loader itself never decides whether a failure is fatal.
type Loader interface {
	// Find returns all candidates registered under the given name within a
	// namespace. Zero candidates and multiple candidates are both valid
	// results; the engine records them as failures.
	Find(ctx context.Context, namespace, name string) ([]Handle, error)

	// Materialize produces the implementation behind a handle. The returned
	// value must satisfy the Plugin interface to pass engine validation.
	Materialize(ctx context.Context, handle Handle) (any, error)

	// PackageInfo returns identity metadata for the package providing the
	// handle's implementation.
	PackageInfo(handle Handle) PackageInfo
}

// Registration describes one plugin candidate registered with a
// StaticLoader.
type Registration struct {
	// Factory constructs the implementation. It is invoked once per load
	// pass during materialization; an error marks the candidate as failed.
	Factory func() (any, error)

	// Source identifies the registration site for diagnostics. Optional.
	Source string

	// Info carries the providing package's identity metadata.
	Info PackageInfo
}

// staticHandle is the Handle implementation used by StaticLoader.
type staticHandle struct {
	namespace string
	name      string
	reg       Registration
}

func (h *staticHandle) Name() string { return h.name }

func (h *staticHandle) Source() string {
	if h.reg.Source != "" {
		return h.reg.Source
	}
	return h.reg.Info.PackageName
}

// StaticLoader is an in-memory Loader fed by explicit registrations.
// Hosts register plugin factories at startup, keyed by namespace and name;
// the engine then discovers them by name during the load pass.
//
// Registering the same name twice in one namespace keeps both candidates,
// which the engine reports as an ambiguous registration. That mirrors how
// conflicting registrations surface in entry-point style plugin systems
// instead of silently last-write-wins.
type StaticLoader struct {
	mu      sync.RWMutex
	entries map[string]map[string][]Registration // namespace -> name -> candidates
}

// NewStaticLoader creates an empty StaticLoader.
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{
		entries: make(map[string]map[string][]Registration),
	}
}

// Register adds a plugin candidate under the given namespace and name.
func (l *StaticLoader) Register(namespace, name string, reg Registration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ns := l.entries[namespace]
	if ns == nil {
		ns = make(map[string][]Registration)
		l.entries[namespace] = ns
	}
	ns[name] = append(ns[name], reg)
}

// Find implements Loader.
func (l *StaticLoader) Find(_ context.Context, namespace, name string) ([]Handle, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	regs := l.entries[namespace][name]
	handles := make([]Handle, 0, len(regs))
	for _, reg := range regs {
		handles = append(handles, &staticHandle{namespace: namespace, name: name, reg: reg})
	}
	return handles, nil
}

// Materialize implements Loader.
func (l *StaticLoader) Materialize(_ context.Context, handle Handle) (any, error) {
	sh, ok := handle.(*staticHandle)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownHandle, handle)
	}
	if sh.reg.Factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNil, sh.name)
	}
	return sh.reg.Factory()
}

// PackageInfo implements Loader.
func (l *StaticLoader) PackageInfo(handle Handle) PackageInfo {
	if sh, ok := handle.(*staticHandle); ok {
		return sh.reg.Info
	}
	return PackageInfo{}
}
