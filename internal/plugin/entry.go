package plugin

import (
	"github.com/quantframe/hookline/internal/hook"
)

// HookRegistration is one handler a plugin asks the manager to bind
// during initialization. Name is scoped to the plugin; the manager
// prefixes it with the plugin id before it reaches the registry.
type HookRegistration struct {
	Hook string
	Name string
	Fn   hook.HandlerFunc
	Opts []hook.BindOption
}

// Entry is the capability set a loaded code unit exposes. Every field is
// optional; a nil function is a trivial success at that stage.
type Entry struct {
	// Initialize binds the plugin's configuration slice.
	Initialize func(config map[string]any) error

	// RegisterHooks declares the handlers to bind. The registry is
	// passed so a plugin can also declare its own hook specs before
	// returning handlers for them.
	RegisterHooks func(reg *hook.Registry) ([]HookRegistration, error)

	// Exports returns named capabilities offered to the host and to
	// other plugins.
	Exports func() (map[string]any, error)

	// Enable and Disable toggle runtime activity.
	Enable  func() error
	Disable func() error

	// Unload releases plugin-held resources before teardown.
	Unload func() error

	// Close drops the underlying code unit (for script runtimes, the
	// interpreter state). Called by the manager after Unload.
	Close func() error
}

// Runtime opens a plugin's entry-point code unit and adapts it to the
// Entry capability set.
type Runtime interface {
	// Scheme is the entry_point prefix this runtime serves, e.g. "lua".
	Scheme() string

	// Open loads the code unit referenced by ref (interpreted relative
	// to the plugin bundle where that makes sense).
	Open(meta *Metadata, ref string) (*Entry, error)
}
