package pluginengine

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// Config holds the engine's load configuration: which namespace to search
// and which plugin names to load.
type Config struct {
	// Namespace scopes plugin discovery. Required.
	Namespace string `yaml:"namespace" toml:"namespace" json:"namespace"`

	// Plugins lists the plugin names to load, in no particular order.
	Plugins []string `yaml:"plugins" toml:"plugins" json:"plugins"`

	// SkipFailed controls whether initialization proceeds when some plugins
	// failed discovery. Defaults to true.
	SkipFailed bool `yaml:"skip_failed" toml:"skip_failed" json:"skipFailed"`
}

// Environment variables read by ConfigFromEnv.
const (
	EnvNamespace  = "PLUGINENGINE_NAMESPACE"
	EnvPlugins    = "PLUGINENGINE_PLUGINS"
	EnvSkipFailed = "PLUGINENGINE_SKIP_FAILED"
)

// LoadConfigFile reads engine configuration from a YAML or TOML file,
// selected by extension.
func LoadConfigFile(path string) (Config, error) {
	cfg := Config{SkipFailed: true}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-supplied configuration
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, ext)
	}

	if cfg.Namespace == "" {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNamespaceMissing, path)
	}
	return cfg, nil
}

// ConfigFromEnv reads engine configuration from PLUGINENGINE_* environment
// variables. PLUGINENGINE_PLUGINS is a comma-separated name list.
func ConfigFromEnv() (Config, error) {
	cfg := Config{SkipFailed: true}

	cfg.Namespace = os.Getenv(EnvNamespace)
	if cfg.Namespace == "" {
		return cfg, fmt.Errorf("%w: %s is not set", ErrConfigNamespaceMissing, EnvNamespace)
	}

	if raw := os.Getenv(EnvPlugins); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Plugins = append(cfg.Plugins, name)
			}
		}
	}

	if raw := os.Getenv(EnvSkipFailed); raw != "" {
		converted, err := cast.FromType(raw, reflect.TypeOf(true))
		if err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", EnvSkipFailed, err)
		}
		cfg.SkipFailed = converted.(bool)
	}

	return cfg, nil
}
