// Package plugin implements the plugin manager: discovery of plugin
// bundles, dependency-ordered lifecycle transitions, and hook dispatch
// against the shared hook registry.
package plugin

import "sort"

// Status is a plugin's lifecycle state.
type Status int

// Lifecycle states. The forward path is Discovered -> Loaded ->
// Initialized -> Enabled; Disable returns an Enabled plugin to
// Initialized. Any stage failure moves the plugin to StatusError, which
// only an explicit reload can recover from.
const (
	StatusDiscovered Status = iota
	StatusLoaded
	StatusInitialized
	StatusEnabled
	StatusDisabled
	StatusError
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusDiscovered:
		return "discovered"
	case StatusLoaded:
		return "loaded"
	case StatusInitialized:
		return "initialized"
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// loadedOrLater reports whether the plugin's code unit is currently
// imported (any state past Discovered except Error).
func (s Status) loadedOrLater() bool {
	switch s {
	case StatusLoaded, StatusInitialized, StatusEnabled, StatusDisabled:
		return true
	default:
		return false
	}
}

// Plugin is the runtime entity for one discovered bundle. Instances are
// owned by the Manager and guarded by its lock.
type Plugin struct {
	Meta   *Metadata
	Status Status

	// Config is the slice bound at initialize time.
	Config map[string]any

	// Err is the last captured failure.
	Err error

	entry *Entry

	// handlers maps hook name to the registry binding names this plugin
	// registered, so unload can remove exactly what it added.
	handlers map[string][]string

	exports map[string]any
}

func newPlugin(meta *Metadata) *Plugin {
	return &Plugin{
		Meta:     meta,
		Status:   StatusDiscovered,
		Config:   map[string]any{},
		handlers: map[string][]string{},
		exports:  map[string]any{},
	}
}

// Info is the externally visible summary of a plugin.
type Info struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Status      string   `json:"status"`
	Dir         string   `json:"dir"`
	Requires    []string `json:"requires"`
	Hooks       []string `json:"hooks"`
	Error       string   `json:"error,omitempty"`
}

func (p *Plugin) info() Info {
	hooks := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		hooks = append(hooks, name)
	}
	sort.Strings(hooks)
	errMsg := ""
	if p.Err != nil {
		errMsg = p.Err.Error()
	}
	return Info{
		ID:          p.Meta.ID,
		Name:        p.Meta.Name,
		Version:     p.Meta.Version,
		Description: p.Meta.Description,
		Author:      p.Meta.Author,
		Status:      p.Status.String(),
		Dir:         p.Meta.Dir(),
		Requires:    append([]string{}, p.Meta.Requires...),
		Hooks:       hooks,
		Error:       errMsg,
	}
}
