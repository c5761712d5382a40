// Package config loads the host configuration file.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the host configuration. Plugins holds the per-plugin
// configuration slices handed to each plugin at initialization, keyed by
// plugin id.
type Config struct {
	LogLevel   string                    `yaml:"log_level"`
	PluginDirs []string                  `yaml:"plugin_dirs"`
	StateFile  string                    `yaml:"state_file"`
	Watch      bool                      `yaml:"watch"`
	Plugins    map[string]map[string]any `yaml:"plugins"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		LogLevel:   "info",
		PluginDirs: []string{"plugins"},
		Plugins:    map[string]map[string]any{},
	}
}

// envVarPattern matches ${VAR_NAME} references in config values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables are left as written.
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandValue walks a decoded YAML value and expands every string.
func expandValue(v any) any {
	switch t := v.(type) {
	case string:
		return expandEnv(t)
	case map[string]any:
		for k, e := range t {
			t[k] = expandValue(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = expandValue(e)
		}
		return t
	default:
		return v
	}
}

// Load reads the config file at path. A missing file yields defaults;
// a malformed file is an error. ${VAR} references in string values are
// expanded from the environment so plugin config can carry secrets
// without storing them in the file.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]map[string]any{}
	}
	cfg.StateFile = expandEnv(cfg.StateFile)
	for i, d := range cfg.PluginDirs {
		cfg.PluginDirs[i] = expandEnv(d)
	}
	for id, slice := range cfg.Plugins {
		for k, v := range slice {
			slice[k] = expandValue(v)
		}
		cfg.Plugins[id] = slice
	}
	return cfg, nil
}
