package hook

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantframe/hookline/internal/logging"
)

// ArityUnknown disables the parameter-count shape check for a binding.
const ArityUnknown = -1

// DefaultPriority is used when a binding does not declare a priority.
// Lower values run earlier.
const DefaultPriority = 100

// Binding is one handler registered under a hook name. Handlers are
// identified by Name within a hook; re-registering the same name updates
// the binding in place instead of duplicating it.
type Binding struct {
	Name     string
	Owner    string // owning plugin id; empty for host-registered handlers
	Priority int
	Arity    int
	Fn       HandlerFunc

	seq uint64 // original registration order, breaks priority ties
}

// BindOption configures a Binding at registration time.
type BindOption func(*Binding)

// WithPriority sets the binding priority (lower runs earlier).
func WithPriority(p int) BindOption {
	return func(b *Binding) { b.Priority = p }
}

// WithArity declares the handler's parameter count so the registry can
// shape-check it against the spec.
func WithArity(n int) BindOption {
	return func(b *Binding) { b.Arity = n }
}

// WithOwner tags the binding with the plugin id that registered it.
func WithOwner(pluginID string) BindOption {
	return func(b *Binding) { b.Owner = pluginID }
}

// Registry is the catalog of hook specifications and handler bindings.
// Specs and bindings are stored under separate keys: overwriting a spec
// never disturbs handlers already registered under that name.
type Registry struct {
	mu       sync.RWMutex
	log      *logging.Logger
	specs    map[string]Spec
	bindings map[string][]*Binding // kept sorted by (priority, seq)
	seq      uint64
}

// NewRegistry creates an empty hook registry. A nil logger is replaced
// with a no-op logger.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		log:      log.Component("hooks"),
		specs:    make(map[string]Spec),
		bindings: make(map[string][]*Binding),
	}
}

// RegisterSpec upserts a hook specification. Last write wins; existing
// handler bindings for the name are untouched.
func (r *Registry) RegisterSpec(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		r.log.Debug().Str("hook", spec.Name).Msg("hook spec overwritten")
	}
	r.specs[spec.Name] = spec
}

// Spec returns the specification registered under name.
func (r *Registry) Spec(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Specs returns all registered specifications sorted by name.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Hooks returns all declared hook names sorted.
func (r *Registry) Hooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterHandler binds fn under hookName. Fails with ErrUnknownHook when
// no spec is declared for the name, and with ErrHandlerShape when a
// declared arity disagrees with the spec's parameter count. Registering
// an existing handler name updates its priority and function in place.
func (r *Registry) RegisterHandler(hookName, name string, fn HandlerFunc, opts ...BindOption) error {
	if fn == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	spec, ok := r.specs[hookName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHook, hookName)
	}

	b := &Binding{
		Name:     name,
		Priority: DefaultPriority,
		Arity:    ArityUnknown,
		Fn:       fn,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.Arity != ArityUnknown && b.Arity != len(spec.Params) {
		return fmt.Errorf("%w: %s wants %d args, handler %s takes %d",
			ErrHandlerShape, hookName, len(spec.Params), name, b.Arity)
	}

	// Update in place when the handler name is already bound.
	for _, existing := range r.bindings[hookName] {
		if existing.Name == name {
			existing.Priority = b.Priority
			existing.Fn = b.Fn
			existing.Owner = b.Owner
			existing.Arity = b.Arity
			r.sortLocked(hookName)
			r.log.Debug().Str("hook", hookName).Str("handler", name).
				Int("priority", b.Priority).Msg("handler priority updated")
			return nil
		}
	}

	r.seq++
	b.seq = r.seq
	r.bindings[hookName] = append(r.bindings[hookName], b)
	r.sortLocked(hookName)

	r.log.Debug().Str("hook", hookName).Str("handler", name).
		Str("owner", b.Owner).Int("priority", b.Priority).Msg("handler registered")
	return nil
}

// UnregisterHandler removes the binding with the given name from the
// hook. Returns false when no such binding exists.
func (r *Registry) UnregisterHandler(hookName, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.bindings[hookName]
	for i, b := range list {
		if b.Name == name {
			r.bindings[hookName] = append(list[:i], list[i+1:]...)
			r.log.Debug().Str("hook", hookName).Str("handler", name).Msg("handler unregistered")
			return true
		}
	}
	return false
}

// UnregisterOwner removes every binding owned by the given plugin id
// across all hooks. Returns the number of bindings removed.
func (r *Registry) UnregisterOwner(owner string) int {
	if owner == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for hookName, list := range r.bindings {
		kept := list[:0]
		for _, b := range list {
			if b.Owner == owner {
				removed++
				continue
			}
			kept = append(kept, b)
		}
		r.bindings[hookName] = kept
	}
	if removed > 0 {
		r.log.Debug().Str("owner", owner).Int("removed", removed).Msg("owner handlers unregistered")
	}
	return removed
}

// Handlers returns a snapshot of the bindings for a hook in dispatch
// order. The copy keeps dispatch independent of concurrent registry
// mutation.
func (r *Registry) Handlers(hookName string) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.bindings[hookName]
	out := make([]Binding, len(list))
	for i, b := range list {
		out[i] = *b
	}
	return out
}

// HandlerCount returns the number of bindings for a hook.
func (r *Registry) HandlerCount(hookName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings[hookName])
}

// sortLocked re-sorts a hook's bindings by ascending priority, ties
// broken by original registration order. O(n log n) per registration is
// fine at the handler counts hooks see in practice.
func (r *Registry) sortLocked(hookName string) {
	list := r.bindings[hookName]
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
}
