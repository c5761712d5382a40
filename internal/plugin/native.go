package plugin

import "fmt"

// EntryFactory builds the entry for one compiled-in plugin.
type EntryFactory func(meta *Metadata) (*Entry, error)

// NativeRuntime serves plugins compiled into the host binary. The
// descriptor names the factory with an entry point of the form
// "native:<name>"; the host registers factories before discovery.
type NativeRuntime struct {
	factories map[string]EntryFactory
}

// NewNativeRuntime creates an empty native runtime.
func NewNativeRuntime() *NativeRuntime {
	return &NativeRuntime{factories: map[string]EntryFactory{}}
}

// Scheme implements Runtime.
func (r *NativeRuntime) Scheme() string { return "native" }

// Register makes a factory available under name. Registering a name
// twice replaces the earlier factory.
func (r *NativeRuntime) Register(name string, f EntryFactory) {
	r.factories[name] = f
}

// Open implements Runtime.
func (r *NativeRuntime) Open(meta *Metadata, ref string) (*Entry, error) {
	f, ok := r.factories[ref]
	if !ok {
		return nil, fmt.Errorf("native plugin %q is not registered", ref)
	}
	return f(meta)
}
