package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor file names looked for in a plugin directory, in order.
var descriptorNames = []string{"plugin.json", "plugin.yaml", "plugin.yml"}

// idPattern validates plugin ids: lowercase alphanumeric segments joined
// by hyphens or underscores. Dots are excluded so ids stay usable as
// path segments in the state file.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9]*([_-][a-z0-9]+)*$`)

// Metadata is the static, declared description of a plugin bundle as
// read from its descriptor file. Unknown descriptor fields are ignored.
type Metadata struct {
	ID          string   `json:"id"          yaml:"id"`
	Name        string   `json:"name"        yaml:"name"`
	Version     string   `json:"version"     yaml:"version"`
	Description string   `json:"description" yaml:"description"`
	Author      string   `json:"author"      yaml:"author"`
	Requires    []string `json:"requires"    yaml:"requires"`
	EntryPoint  string   `json:"entry_point" yaml:"entry_point"`

	// Hooks the plugin declares interest in. Informational; the binding
	// of record is what register_hooks actually returns at initialize.
	Hooks    []string `json:"hooks"    yaml:"hooks"`
	Provides []string `json:"provides" yaml:"provides"`
	Tags     []string `json:"tags"     yaml:"tags"`

	// ConfigSchema is advisory; the manager does not validate config
	// against it.
	ConfigSchema map[string]any `json:"config_schema" yaml:"config_schema"`

	dir string
}

// LoadMetadata reads and validates a descriptor file. JSON and YAML are
// selected by file extension.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var m Metadata
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &m)
	} else {
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", filepath.Base(path), err)
	}

	m.dir = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindDescriptor returns the descriptor file path inside dir, or "" when
// the directory is not a plugin bundle.
func FindDescriptor(dir string) string {
	for _, name := range descriptorNames {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
	}
	return ""
}

func (m *Metadata) applyDefaults() {
	if m.Name == "" {
		m.Name = m.ID
	}
	if m.Version == "" {
		m.Version = "0.1.0"
	}
	if m.EntryPoint == "" {
		m.EntryPoint = "init.lua"
	}
	if m.Requires == nil {
		m.Requires = []string{}
	}
	if m.Hooks == nil {
		m.Hooks = []string{}
	}
	if m.Provides == nil {
		m.Provides = []string{}
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
}

// Validate checks required descriptor fields.
func (m *Metadata) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, m.ID)
	}
	return nil
}

// Dir returns the plugin bundle directory the descriptor was read from.
func (m *Metadata) Dir() string { return m.dir }

// Entry point references take the form "scheme:ref"; a bare reference
// implies the default runtime scheme.
func (m *Metadata) entryRef() (scheme, ref string) {
	if i := strings.Index(m.EntryPoint, ":"); i > 0 {
		return m.EntryPoint[:i], m.EntryPoint[i+1:]
	}
	return "", m.EntryPoint
}

// String renders "id (name vversion)".
func (m *Metadata) String() string {
	return fmt.Sprintf("%s (%s v%s)", m.ID, m.Name, m.Version)
}
