package pluginengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Engine discovers, orders, and initializes plugins, and holds the
// authoritative record of which ones loaded and which failed.
//
// An Engine is an explicitly constructed value owned by the host; there is
// no process-wide registry. Loading is single-shot: LoadPlugins may be
// called once per Engine. After the load pass completes the engine's state
// is immutable and safe to read concurrently.
type Engine struct {
	namespace     string
	pluginsToLoad []string

	loader Loader
	logger Logger
	scope  ScopeProvider

	observers *observerRegistry
	wrapCache sync.Map // callbackKey -> CallbackFunc

	mu      sync.RWMutex
	loaded  bool
	plugins map[string]*PluginInstance
	failed  map[string]*LoadError
}

// Option configures an Engine during construction.
type Option func(*Engine)

// WithLoader sets the discovery collaborator used to find and materialize
// plugin implementations.
func WithLoader(loader Loader) Option {
	return func(e *Engine) {
		e.loader = loader
	}
}

// WithLogger sets the logger used for load-pass diagnostics. The default
// logs through slog.Default().
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithScopeProvider sets the application-scoped resource acquired around
// each plugin's Init. The default acquires nothing.
func WithScopeProvider(scope ScopeProvider) Option {
	return func(e *Engine) {
		e.scope = scope
	}
}

// New creates an engine for the given plugin namespace. The namespace and
// plugin list can be changed with Configure any number of times before
// LoadPlugins runs.
func New(namespace string, opts ...Option) *Engine {
	e := &Engine{
		namespace: namespace,
		logger:    NewSlogLogger(nil),
		scope:     NoopScopeProvider{},
		plugins:   make(map[string]*PluginInstance),
		failed:    make(map[string]*LoadError),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.observers = newObserverRegistry(e.logger)
	return e
}

// Configure sets the namespace and the list of plugin names to load. It has
// no side effects beyond storing configuration and may be called repeatedly
// before LoadPlugins.
func (e *Engine) Configure(namespace string, names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.namespace = namespace
	e.pluginsToLoad = append([]string(nil), names...)
}

// ConfigureFromConfig applies a loaded Config to the engine.
func (e *Engine) ConfigureFromConfig(cfg Config) {
	e.Configure(cfg.Namespace, cfg.Plugins)
}

// LoadPlugins loads all configured plugins for the engine's namespace.
//
// Each configured name is resolved through the loader; names with zero
// candidates, ambiguous candidates, failed materialization, or
// implementations that do not satisfy the Plugin interface are recorded as
// failed and loading continues with the remaining names. If any name failed
// and skipFailed is false, the pass stops after discovery and nothing is
// initialized.
//
// Surviving candidates are initialized in dependency order, each inside the
// application scope with the plugin pushed on the execution context stack.
// After initialization a plugins-loaded event is announced to registered
// observers (fire and forget).
//
// The boolean result is true iff no plugin failed. A non-nil error is
// returned only for ErrPluginsAlreadyLoaded (LoadPlugins called twice) and
// ErrUnresolvableDependencies; both abort the pass outright.
func (e *Engine) LoadPlugins(ctx context.Context, skipFailed bool) (bool, error) {
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return false, ErrPluginsAlreadyLoaded
	}
	e.loaded = true
	namespace := e.namespace
	names := append([]string(nil), e.pluginsToLoad...)
	e.mu.Unlock()

	if e.loader == nil {
		return false, fmt.Errorf("%w: no loader", ErrEngineNotConfigured)
	}

	candidates := e.importPlugins(ctx, namespace, names)

	if e.failedCount() > 0 && !skipFailed {
		e.logger.Error("Aborting load, some plugins failed and skipFailed is disabled",
			"failed", e.GetFailedPlugins())
		return false, nil
	}

	deps := make(map[string]Dependencies, len(candidates))
	for name, cand := range candidates {
		deps[name] = pluginDependencies(cand.plugin)
	}
	order, err := resolveDependencies(deps)
	if err != nil {
		return false, err
	}
	e.logger.Debug("Plugin initialization order", "order", order)

	for _, name := range order {
		cand := candidates[name]
		if missing := e.missingRequired(deps[name].Required); missing != "" {
			e.recordFailure(name, FailureDependency,
				fmt.Errorf("required plugin %s failed to load", missing))
			continue
		}
		instance := newPluginInstance(e, name, cand.plugin, cand.info)
		if err := e.initPlugin(ctx, instance); err != nil {
			e.logger.Error("Could not initialize plugin", "plugin", name, "error", err)
			e.recordFailure(name, FailureInit, err)
			continue
		}
		e.mu.Lock()
		e.plugins[name] = instance
		e.mu.Unlock()
		e.announce(ctx, EventTypePluginLoaded, map[string]string{
			"name":    name,
			"version": instance.Version(),
		})
	}

	e.announce(ctx, EventTypePluginsLoaded, nil)
	return e.failedCount() == 0, nil
}

// candidate pairs a validated implementation with its package identity.
type candidate struct {
	plugin Plugin
	info   PackageInfo
}

// importPlugins runs the discovery phase: every configured name is resolved
// to exactly one validated implementation, or recorded as failed.
func (e *Engine) importPlugins(ctx context.Context, namespace string, names []string) map[string]candidate {
	candidates := make(map[string]candidate, len(names))
	for _, name := range names {
		handles, err := e.loader.Find(ctx, namespace, name)
		if err != nil {
			e.logger.Error("Could not search for plugin", "plugin", name, "error", err)
			e.recordFailure(name, FailureNotFound, err)
			continue
		}
		if len(handles) == 0 {
			e.logger.Error("Plugin does not exist", "plugin", name, "namespace", namespace)
			e.recordFailure(name, FailureNotFound, nil)
			continue
		}
		if len(handles) > 1 {
			sources := make([]string, 0, len(handles))
			for _, h := range handles {
				sources = append(sources, h.Source())
			}
			e.logger.Error("Plugin name is not unique",
				"plugin", name, "definedIn", strings.Join(sources, ", "))
			e.recordFailure(name, FailureAmbiguous, nil)
			continue
		}

		impl, err := e.loader.Materialize(ctx, handles[0])
		if err != nil {
			e.logger.Error("Could not load plugin", "plugin", name, "error", err)
			e.recordFailure(name, FailureMaterialize, err)
			continue
		}
		plugin, ok := impl.(Plugin)
		if !ok {
			e.logger.Error("Plugin does not satisfy the Plugin interface",
				"plugin", name, "type", fmt.Sprintf("%T", impl))
			e.recordFailure(name, FailureContract, nil)
			continue
		}
		candidates[name] = candidate{
			plugin: plugin,
			info:   e.loader.PackageInfo(handles[0]),
		}
	}
	return candidates
}

// initPlugin runs the plugin's Init hook inside the application scope with
// the plugin active on the execution context stack.
func (e *Engine) initPlugin(ctx context.Context, instance *PluginInstance) error {
	return e.scope.RunInScope(ctx, func(ctx context.Context) error {
		return RunWithPlugin(ctx, instance, func(ctx context.Context) error {
			return instance.plugin.Init(ctx, e)
		})
	})
}

// missingRequired returns the first required dependency that is not among
// the loaded plugins, or "" when all are present. During the ordered
// initialization phase a missing required dependency can only mean it
// failed earlier in the same pass.
func (e *Engine) missingRequired(required []string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, dep := range required {
		if _, ok := e.plugins[dep]; !ok {
			return dep
		}
	}
	return ""
}

func (e *Engine) recordFailure(name string, reason FailureReason, err error) {
	e.mu.Lock()
	e.failed[name] = &LoadError{Name: name, Reason: reason, Err: err}
	e.mu.Unlock()
	e.announce(context.Background(), EventTypePluginFailed, map[string]string{
		"name":   name,
		"reason": string(reason),
	})
}

func (e *Engine) failedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.failed)
}

// announce emits an engine event to observers without blocking the load
// pass; delivery failures are logged, never returned.
func (e *Engine) announce(ctx context.Context, eventType string, data interface{}) {
	event := NewCloudEvent(eventType, "pluginengine", data, nil)
	if err := e.observers.notify(ctx, event); err != nil {
		e.logger.Error("Failed to notify observers", "event", eventType, "error", err)
	}
}

// GetFailedPlugins returns the names of plugins that could not be loaded,
// in sorted order.
func (e *Engine) GetFailedPlugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.failed))
	for name := range e.failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadErrors returns the reason-tagged failure records for the load pass,
// keyed by plugin name. The returned map is a snapshot.
func (e *Engine) LoadErrors() map[string]*LoadError {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*LoadError, len(e.failed))
	for name, le := range e.failed {
		out[name] = le
	}
	return out
}

// GetActivePlugins returns the currently loaded plugins as a name-to-
// instance mapping. The returned map is a snapshot; mutating it does not
// affect the engine.
func (e *Engine) GetActivePlugins() map[string]*PluginInstance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*PluginInstance, len(e.plugins))
	for name, p := range e.plugins {
		out[name] = p
	}
	return out
}

// HasPlugin reports whether a plugin with the given name is loaded.
func (e *Engine) HasPlugin(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.plugins[name]
	return ok
}

// GetPlugin returns the loaded plugin instance with the given name, or nil
// when no such plugin is loaded.
func (e *Engine) GetPlugin(name string) *PluginInstance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.plugins[name]
}

// Namespace returns the engine's configured plugin namespace.
func (e *Engine) Namespace() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.namespace
}

// RegisterObserver adds an observer to receive engine notifications,
// optionally filtered by event type. An empty filter receives all events.
func (e *Engine) RegisterObserver(observer Observer, eventTypes ...string) {
	e.observers.register(observer, eventTypes...)
}

// UnregisterObserver removes an observer. It is idempotent.
func (e *Engine) UnregisterObserver(observer Observer) {
	e.observers.unregister(observer)
}

// NotifyObservers sends a CloudEvent to all registered observers. It is
// exported so plugins can broadcast their own events through the engine.
func (e *Engine) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	return e.observers.notify(ctx, event)
}

// GetObservers returns information about currently registered observers.
func (e *Engine) GetObservers() []ObserverInfo {
	return e.observers.info()
}

func (e *Engine) String() string {
	return fmt.Sprintf("<Engine(%s)>", e.Namespace())
}
