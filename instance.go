package pluginengine

// PluginInstance is the live, constructed object for a successfully loaded
// plugin. Instances are created exactly once per successful load, by the
// engine, in dependency order, and live as long as the engine itself.
type PluginInstance struct {
	engine *Engine
	plugin Plugin

	name           string
	packageName    string
	packageVersion string
	version        string
	rootPath       string
	title          string
	description    string
}

// newPluginInstance binds a validated implementation to its identity
// metadata. The version falls back to the package version when the plugin
// declares none.
func newPluginInstance(engine *Engine, name string, p Plugin, info PackageInfo) *PluginInstance {
	inst := &PluginInstance{
		engine:         engine,
		plugin:         p,
		name:           name,
		packageName:    info.PackageName,
		packageVersion: info.PackageVersion,
		version:        info.PackageVersion,
		rootPath:       info.RootPath,
	}
	if v, ok := p.(Versioned); ok && v.Version() != "" {
		inst.version = v.Version()
	}
	var doc string
	if d, ok := p.(Documented); ok {
		doc = d.Doc()
	}
	inst.title, inst.description = splitDoc(doc)
	return inst
}

// Name returns the configured plugin key the instance was loaded under.
func (p *PluginInstance) Name() string { return p.name }

// PackageName returns the name of the package providing the plugin.
func (p *PluginInstance) PackageName() string { return p.packageName }

// PackageVersion returns the version of the package providing the plugin.
func (p *PluginInstance) PackageVersion() string { return p.packageVersion }

// Version returns the plugin's declared version, or the package version
// when the plugin declares none.
func (p *PluginInstance) Version() string { return p.version }

// RootPath returns the resolved filesystem root of the providing package,
// when known.
func (p *PluginInstance) RootPath() string { return p.rootPath }

// Title returns the first line of the plugin's documentation string.
func (p *PluginInstance) Title() string { return p.title }

// Description returns the plugin's documentation body, trimmed of common
// leading indentation, or "no description available" when absent.
func (p *PluginInstance) Description() string { return p.description }

// Engine returns the engine that loaded the plugin.
func (p *PluginInstance) Engine() *Engine { return p.engine }

// Plugin returns the underlying plugin implementation.
func (p *PluginInstance) Plugin() Plugin { return p.plugin }

func (p *PluginInstance) String() string {
	return "<" + p.name + " " + p.version + ">"
}
