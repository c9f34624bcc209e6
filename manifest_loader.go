package pluginengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Manifest describes a plugin discovered on disk. One manifest lives in
// each plugin directory, as plugin.yaml or plugin.toml.
type Manifest struct {
	// Name is the plugin's unique key within the loader's namespace.
	Name string `yaml:"name" toml:"name"`

	// Version is the providing package's version.
	Version string `yaml:"version" toml:"version"`

	// Summary documents the plugin; the first line becomes the title.
	Summary string `yaml:"summary" toml:"summary"`

	// Requires lists plugins that must load before this one.
	Requires []string `yaml:"requires" toml:"requires"`

	// Uses lists plugins preferred to load before this one.
	Uses []string `yaml:"uses" toml:"uses"`
}

// manifestFileNames are probed in order inside each plugin directory.
var manifestFileNames = []string{"plugin.yaml", "plugin.yml", "plugin.toml"}

// parseManifest decodes a manifest file by extension.
func parseManifest(path string, data []byte) (*Manifest, error) {
	var m Manifest
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrManifestNameMissing, path)
	}
	return &m, nil
}

// manifestHandle is the Handle implementation used by ManifestLoader.
type manifestHandle struct {
	manifest *Manifest
	dir      string
	factory  func() (any, error)
}

func (h *manifestHandle) Name() string   { return h.manifest.Name }
func (h *manifestHandle) Source() string { return h.dir }

// ManifestLoader discovers plugins from a directory tree: each subdirectory
// of the root holding a plugin.yaml, plugin.yml or plugin.toml manifest is
// one candidate. Manifests carry identity and dependency metadata; the
// implementation itself comes from factories registered in code under the
// manifest's name.
//
// Directories without a readable, valid manifest are logged and skipped;
// a manifest naming a plugin with no registered factory fails at
// materialization.
type ManifestLoader struct {
	root      string
	namespace string
	logger    Logger

	mu        sync.RWMutex
	factories map[string]func() (any, error)
}

// NewManifestLoader creates a loader scanning root for plugin manifests
// belonging to the given namespace.
func NewManifestLoader(root, namespace string, logger Logger) *ManifestLoader {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &ManifestLoader{
		root:      root,
		namespace: namespace,
		logger:    logger,
		factories: make(map[string]func() (any, error)),
	}
}

// RegisterFactory binds an implementation factory to a manifest name.
func (l *ManifestLoader) RegisterFactory(name string, factory func() (any, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[name] = factory
}

// Find implements Loader. It scans the root directory on each call; the
// engine calls it once per configured name during the single load pass.
func (l *ManifestLoader) Find(_ context.Context, namespace, name string) ([]Handle, error) {
	if namespace != l.namespace {
		return nil, nil
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var handles []Handle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.root, entry.Name())
		manifest := l.readManifest(dir)
		if manifest == nil || manifest.Name != name {
			continue
		}
		handles = append(handles, &manifestHandle{
			manifest: manifest,
			dir:      dir,
			factory:  l.factory(name),
		})
	}
	return handles, nil
}

func (l *ManifestLoader) readManifest(dir string) *Manifest {
	for _, fileName := range manifestFileNames {
		path := filepath.Join(dir, fileName)
		data, err := os.ReadFile(path) //nolint:gosec // path is constructed from ReadDir entries
		if err != nil {
			continue
		}
		manifest, err := parseManifest(path, data)
		if err != nil {
			l.logger.Warn("Skipping plugin with invalid manifest", "dir", dir, "error", err)
			return nil
		}
		return manifest
	}
	l.logger.Warn("Skipping plugin directory without manifest", "dir", dir)
	return nil
}

func (l *ManifestLoader) factory(name string) func() (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.factories[name]
}

// Materialize implements Loader. The manifest's implementation is built by
// the factory registered under its name and wrapped so that the manifest's
// declared dependencies take effect even when the implementation declares
// none of its own.
func (l *ManifestLoader) Materialize(_ context.Context, handle Handle) (any, error) {
	mh, ok := handle.(*manifestHandle)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownHandle, handle)
	}
	if mh.factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFactoryForPlugin, mh.manifest.Name)
	}
	impl, err := mh.factory()
	if err != nil {
		return nil, err
	}
	plugin, ok := impl.(Plugin)
	if !ok {
		// Let the engine record the contract violation.
		return impl, nil
	}
	return &manifestPlugin{Plugin: plugin, manifest: mh.manifest}, nil
}

// PackageInfo implements Loader.
func (l *ManifestLoader) PackageInfo(handle Handle) PackageInfo {
	mh, ok := handle.(*manifestHandle)
	if !ok {
		return PackageInfo{}
	}
	return PackageInfo{
		PackageName:    mh.manifest.Name,
		PackageVersion: mh.manifest.Version,
		RootPath:       mh.dir,
	}
}

// manifestPlugin overlays manifest metadata on a factory-built plugin.
// Manifest dependency and documentation declarations win over the
// implementation's own, so operators can re-declare ordering without
// recompiling.
type manifestPlugin struct {
	Plugin
	manifest *Manifest
}

func (p *manifestPlugin) RequiredPlugins() []string {
	if len(p.manifest.Requires) > 0 {
		return p.manifest.Requires
	}
	if da, ok := p.Plugin.(DependencyAware); ok {
		return da.RequiredPlugins()
	}
	return nil
}

func (p *manifestPlugin) UsedPlugins() []string {
	if len(p.manifest.Uses) > 0 {
		return p.manifest.Uses
	}
	if sa, ok := p.Plugin.(SoftDependencyAware); ok {
		return sa.UsedPlugins()
	}
	return nil
}

func (p *manifestPlugin) Doc() string {
	if p.manifest.Summary != "" {
		return p.manifest.Summary
	}
	if d, ok := p.Plugin.(Documented); ok {
		return d.Doc()
	}
	return ""
}
