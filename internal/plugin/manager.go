package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/quantframe/hookline/internal/hook"
	"github.com/quantframe/hookline/internal/logging"
)

// Manager owns the plugin table and drives lifecycle transitions in
// dependency order. Lifecycle methods run synchronously on the caller's
// goroutine and report per-plugin outcomes instead of returning errors;
// stage failures are captured on the plugin itself.
type Manager struct {
	mu       sync.RWMutex
	log      *logging.Logger
	registry *hook.Registry
	runtimes map[string]Runtime
	plugins  map[string]*Plugin
	dirs     []string
	state    *StateStore

	// defaultScheme is assumed for entry points without a scheme prefix.
	defaultScheme string

	// active mirrors the set of enabled plugin ids under its own lock so
	// dispatch never contends with lifecycle transitions.
	activeMu sync.RWMutex
	active   map[string]bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRuntime registers a runtime for its entry point scheme.
func WithRuntime(rt Runtime) Option {
	return func(m *Manager) { m.runtimes[rt.Scheme()] = rt }
}

// WithDefaultScheme sets the scheme assumed for bare entry points.
func WithDefaultScheme(scheme string) Option {
	return func(m *Manager) { m.defaultScheme = scheme }
}

// WithStateStore attaches a store that persists per-plugin enabled state
// across restarts.
func WithStateStore(s *StateStore) Option {
	return func(m *Manager) { m.state = s }
}

// NewManager creates a manager dispatching against the given registry.
// A nil logger is replaced with a no-op logger.
func NewManager(registry *hook.Registry, log *logging.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	m := &Manager{
		log:           log.Component("plugins"),
		registry:      registry,
		runtimes:      map[string]Runtime{},
		plugins:       map[string]*Plugin{},
		active:        map[string]bool{},
		defaultScheme: "lua",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the hook registry the manager dispatches against.
func (m *Manager) Registry() *hook.Registry { return m.registry }

// AddPluginDir adds a directory to scan for plugin bundles.
func (m *Manager) AddPluginDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("plugin dir %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("plugin dir %s: not a directory", dir)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dirs {
		if d == dir {
			return nil
		}
	}
	m.dirs = append(m.dirs, dir)
	return nil
}

// PluginDirs returns the registered plugin directories.
func (m *Manager) PluginDirs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.dirs...)
}

// DiscoverPlugins scans every plugin directory for bundles with a valid
// descriptor and adds new ones to the table as Discovered. Already known
// plugins keep their state; a Discovered plugin's metadata is refreshed.
// Returns the ids found this scan and a joined error for every skipped
// descriptor.
func (m *Manager) DiscoverPlugins() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]*Metadata, len(m.plugins))
	for id, p := range m.plugins {
		known[id] = p.Meta
	}

	metas, problems := scanDirs(m.dirs, known)
	for _, err := range problems {
		m.log.Warn().Err(err).Msg("descriptor skipped")
	}

	var ids []string
	for _, meta := range metas {
		ids = append(ids, meta.ID)
		p, exists := m.plugins[meta.ID]
		switch {
		case !exists:
			m.plugins[meta.ID] = newPlugin(meta)
			m.log.Info().Str("plugin", meta.ID).Str("version", meta.Version).
				Str("dir", meta.Dir()).Msg("plugin discovered")
		case p.Status == StatusDiscovered:
			p.Meta = meta
		}
	}
	sort.Strings(ids)
	return ids, errors.Join(problems...)
}

// LoadPlugins imports the code units for the given plugins (all known
// plugins when no ids are given) in dependency order. A plugin whose
// requirement is absent, failed, or part of a cycle is moved to Error.
// Already loaded plugins count as success. The result maps each
// requested id to its outcome.
func (m *Manager) LoadPlugins(ids ...string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested, results := m.requestedLocked(ids)
	res := m.resolveLocked()

	for _, cycle := range res.Cycles {
		for _, id := range cycle {
			if !requested[id] {
				continue
			}
			p := m.plugins[id]
			p.Err = &CycleError{Cycle: cycle}
			m.setStatusLocked(p, StatusError)
			results[id] = false
			m.log.Error().Str("plugin", id).
				Str("cycle", strings.Join(cycle, " -> ")).Msg("load refused")
		}
	}
	for _, id := range res.Blocked {
		if !requested[id] {
			continue
		}
		p := m.plugins[id]
		p.Err = fmt.Errorf("%w: requirement chain includes a cycle", ErrMissingDependency)
		m.setStatusLocked(p, StatusError)
		results[id] = false
	}

	for _, id := range res.Order {
		if !requested[id] {
			continue
		}
		p := m.plugins[id]
		if p.Status.loadedOrLater() {
			results[id] = true
			continue
		}
		if p.Status == StatusError {
			results[id] = false
			continue
		}

		var unmet []string
		for _, dep := range p.Meta.Requires {
			dp, ok := m.plugins[dep]
			if !ok || !dp.Status.loadedOrLater() {
				unmet = append(unmet, dep)
			}
		}
		if len(unmet) > 0 {
			p.Err = fmt.Errorf("%w: %s requires %s", ErrMissingDependency, id, strings.Join(unmet, ", "))
			m.setStatusLocked(p, StatusError)
			results[id] = false
			m.log.Error().Str("plugin", id).Strs("unmet", unmet).Msg("load failed")
			continue
		}

		entry, err := m.openLocked(p)
		if err != nil {
			p.Err = &StageError{Stage: StageLoad, ID: id, Err: err}
			m.setStatusLocked(p, StatusError)
			results[id] = false
			m.log.Error().Str("plugin", id).Err(err).Msg("load failed")
			continue
		}
		p.entry = entry
		p.Err = nil
		m.setStatusLocked(p, StatusLoaded)
		results[id] = true
		m.log.Info().Str("plugin", id).Msg("plugin loaded")
	}
	return results
}

// openLocked resolves the plugin's entry point to a runtime and opens it.
func (m *Manager) openLocked(p *Plugin) (*Entry, error) {
	scheme, ref := p.Meta.entryRef()
	if scheme == "" {
		scheme = m.defaultScheme
	}
	rt, ok := m.runtimes[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRuntime, scheme)
	}
	return rt.Open(p.Meta, ref)
}

// InitializePlugins runs initialization for the given Loaded plugins
// (all when no ids are given) in dependency order: binds the plugin's
// configuration slice, calls its initializer, registers its declared
// hook handlers, and captures its exports. Plugins not in the Loaded
// state are skipped without a result entry.
func (m *Manager) InitializePlugins(config map[string]map[string]any, ids ...string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested, results := m.requestedLocked(ids)
	res := m.resolveLocked()

	for _, id := range res.Order {
		if !requested[id] {
			continue
		}
		p := m.plugins[id]
		if p.Status != StatusLoaded {
			delete(results, id)
			continue
		}

		if cfg, ok := config[id]; ok {
			p.Config = cfg
		} else {
			p.Config = map[string]any{}
		}

		if p.entry.Initialize != nil {
			if err := p.entry.Initialize(p.Config); err != nil {
				m.failStageLocked(p, StageInitialize, err)
				results[id] = false
				continue
			}
		}

		if p.entry.RegisterHooks != nil {
			regs, err := p.entry.RegisterHooks(m.registry)
			if err != nil {
				m.failStageLocked(p, StageInitialize, err)
				results[id] = false
				continue
			}
			m.bindHandlersLocked(p, regs)
		}

		if p.entry.Exports != nil {
			exports, err := p.entry.Exports()
			if err != nil {
				m.failStageLocked(p, StageInitialize, err)
				results[id] = false
				continue
			}
			if exports == nil {
				exports = map[string]any{}
			}
			p.exports = exports
		}

		p.Err = nil
		m.setStatusLocked(p, StatusInitialized)
		results[id] = true
		m.log.Info().Str("plugin", id).Msg("plugin initialized")
	}
	return results
}

// bindHandlersLocked registers a plugin's handlers with the registry.
// Names are prefixed with the plugin id so plugins cannot collide with
// or displace each other's bindings. A rejected registration is logged
// and skipped; it does not fail initialization.
func (m *Manager) bindHandlersLocked(p *Plugin, regs []HookRegistration) {
	id := p.Meta.ID
	for _, reg := range regs {
		name := reg.Name
		if name == "" {
			name = reg.Hook
		}
		bound := id + ":" + name
		opts := append(append([]hook.BindOption{}, reg.Opts...), hook.WithOwner(id))
		if err := m.registry.RegisterHandler(reg.Hook, bound, reg.Fn, opts...); err != nil {
			m.log.Warn().Str("plugin", id).Str("hook", reg.Hook).Err(err).
				Msg("handler rejected")
			continue
		}
		p.handlers[reg.Hook] = append(p.handlers[reg.Hook], bound)
	}
}

// EnablePlugins moves Initialized plugins to Enabled in dependency
// order, calling each plugin's optional enable callback first.
func (m *Manager) EnablePlugins(ids ...string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested, results := m.requestedLocked(ids)
	res := m.resolveLocked()

	for _, id := range res.Order {
		if !requested[id] {
			continue
		}
		p := m.plugins[id]
		switch p.Status {
		case StatusEnabled:
			results[id] = true
			continue
		case StatusInitialized:
		default:
			delete(results, id)
			continue
		}

		if p.entry.Enable != nil {
			if err := p.entry.Enable(); err != nil {
				m.failStageLocked(p, StageEnable, err)
				results[id] = false
				continue
			}
		}
		m.setStatusLocked(p, StatusEnabled)
		results[id] = true
		m.persistEnabledLocked(id, true)
		m.log.Info().Str("plugin", id).Msg("plugin enabled")
	}
	return results
}

// DisablePlugins moves Enabled plugins back to Initialized in reverse
// dependency order. Their handlers stay registered but dispatch skips
// them until re-enabled.
func (m *Manager) DisablePlugins(ids ...string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disableLocked(ids, true)
}

// disableLocked implements disable. persist is false when called from
// unload so a shutdown does not overwrite the saved enabled flags.
func (m *Manager) disableLocked(ids []string, persist bool) map[string]bool {
	requested, results := m.requestedLocked(ids)
	res := m.resolveLocked()

	for i := len(res.Order) - 1; i >= 0; i-- {
		id := res.Order[i]
		if !requested[id] {
			continue
		}
		p := m.plugins[id]
		if p.Status != StatusEnabled {
			delete(results, id)
			continue
		}

		if p.entry.Disable != nil {
			if err := p.entry.Disable(); err != nil {
				m.failStageLocked(p, StageDisable, err)
				results[id] = false
				continue
			}
		}
		m.setStatusLocked(p, StatusInitialized)
		results[id] = true
		if persist {
			m.persistEnabledLocked(id, false)
		}
		m.log.Info().Str("plugin", id).Msg("plugin disabled")
	}
	return results
}

// UnloadPlugins tears the given plugins (all when no ids are given) down
// to Discovered in reverse dependency order: disables them if needed,
// unregisters every handler they own, calls their unload callback, and
// drops the code unit. An unload callback failure moves the plugin to
// Error; its resources are still released.
func (m *Manager) UnloadPlugins(ids ...string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disableLocked(ids, false)

	requested, results := m.requestedLocked(ids)
	res := m.resolveLocked()

	order := append([]string{}, res.Order...)
	// Cycle participants and blocked plugins never made it into the
	// order but may still need teardown after an error.
	for id := range requested {
		if !contains(order, id) {
			order = append(order, id)
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if !requested[id] {
			continue
		}
		p, ok := m.plugins[id]
		if !ok {
			continue
		}

		m.registry.UnregisterOwner(id)
		p.handlers = map[string][]string{}
		p.exports = map[string]any{}

		failed := false
		if p.entry != nil {
			if p.entry.Unload != nil {
				if err := p.entry.Unload(); err != nil {
					m.failStageLocked(p, StageUnload, err)
					failed = true
				}
			}
			if p.entry.Close != nil {
				if err := p.entry.Close(); err != nil {
					m.log.Warn().Str("plugin", id).Err(err).Msg("close failed")
				}
			}
			p.entry = nil
		}
		if failed {
			results[id] = false
			continue
		}

		m.setStatusLocked(p, StatusDiscovered)
		results[id] = true
		m.log.Info().Str("plugin", id).Msg("plugin unloaded")
	}
	return results
}

// ReloadPlugin unloads and re-runs the full lifecycle for one plugin,
// restoring its previous configuration slice and, if it was enabled, its
// enabled state. This is the only way out of the Error state.
func (m *Manager) ReloadPlugin(id string) bool {
	m.mu.RLock()
	p, ok := m.plugins[id]
	if !ok {
		m.mu.RUnlock()
		m.log.Warn().Str("plugin", id).Msg("reload of unknown plugin")
		return false
	}
	wasEnabled := p.Status == StatusEnabled
	config := make(map[string]any, len(p.Config))
	for k, v := range p.Config {
		config[k] = v
	}
	m.mu.RUnlock()

	m.log.Info().Str("plugin", id).Msg("reloading plugin")

	if !m.UnloadPlugins(id)[id] {
		return false
	}
	if !m.LoadPlugins(id)[id] {
		return false
	}
	if !m.InitializePlugins(map[string]map[string]any{id: config}, id)[id] {
		return false
	}
	if wasEnabled {
		return m.EnablePlugins(id)[id]
	}
	return true
}

// Shutdown disables and unloads every plugin in reverse dependency
// order. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.UnloadPlugins()
}

// ExecuteHook dispatches the named hook to every binding in priority
// order and returns the collected results. Dispatch never returns an
// error: an unknown hook yields an empty context, handler errors and
// panics are recorded on the context, and for sequential hooks the first
// error or boolean false veto stops the chain. Bindings owned by a
// plugin that is not currently Enabled are skipped.
func (m *Manager) ExecuteHook(ctx context.Context, name string, args ...any) *hook.Context {
	hctx := hook.NewContext(name, args)

	spec, ok := m.registry.Spec(name)
	if !ok {
		m.log.Warn().Str("hook", name).Msg("unknown hook dispatched")
		return hctx
	}
	if len(args) != len(spec.Params) {
		m.log.Warn().Str("hook", name).Int("want", len(spec.Params)).
			Int("got", len(args)).Msg("argument count mismatch")
	}

	bindings := m.registry.Handlers(name)
	if len(bindings) == 0 {
		return hctx
	}
	active := m.activeSnapshot()

	for _, b := range bindings {
		if b.Owner != "" && !active[b.Owner] {
			continue
		}

		result, err := invoke(ctx, b, args)
		if err != nil {
			herr := &hook.HandlerError{Hook: name, Handler: b.Name, Err: err}
			hctx.SetErr(herr)
			m.log.Error().Str("dispatch", hctx.ID).Str("hook", name).
				Str("handler", b.Name).Err(err).Msg("handler failed")
			if spec.Sequential {
				break
			}
			continue
		}
		hctx.AddResult(result)

		if spec.Sequential {
			if veto, isBool := result.(bool); isBool && !veto {
				m.log.Debug().Str("dispatch", hctx.ID).Str("hook", name).
					Str("handler", b.Name).Msg("hook vetoed")
				break
			}
		}
	}
	return hctx
}

// invoke calls one binding with panic recovery. A panic surfaces as an
// ordinary handler error so a misbehaving plugin cannot take the host
// down.
func invoke(ctx context.Context, b hook.Binding, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Fn(ctx, args...)
}

// activeSnapshot copies the enabled-plugin set for one dispatch.
func (m *Manager) activeSnapshot() map[string]bool {
	m.activeMu.RLock()
	defer m.activeMu.RUnlock()
	out := make(map[string]bool, len(m.active))
	for id := range m.active {
		out[id] = true
	}
	return out
}

// PluginInfo returns the externally visible summary for one plugin.
func (m *Manager) PluginInfo(id string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[id]
	if !ok {
		return Info{}, false
	}
	return p.info(), true
}

// ListPlugins returns summaries for every known plugin sorted by id.
func (m *Manager) ListPlugins() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PluginsByStatus returns summaries for plugins in the given state,
// sorted by id.
func (m *Manager) PluginsByStatus(st Status) []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Info
	for _, p := range m.plugins {
		if p.Status == st {
			out = append(out, p.info())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Export returns a named capability exported by an initialized or
// enabled plugin.
func (m *Manager) Export(id, name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[id]
	if !ok {
		return nil, false
	}
	if p.Status != StatusInitialized && p.Status != StatusEnabled {
		return nil, false
	}
	v, ok := p.exports[name]
	return v, ok
}

// requestedLocked resolves a variadic id list to the set of plugins an
// operation targets. No ids means every known plugin. Requested ids not
// in the table are reported as failures up front.
func (m *Manager) requestedLocked(ids []string) (map[string]bool, map[string]bool) {
	requested := make(map[string]bool, len(m.plugins))
	results := map[string]bool{}
	if len(ids) == 0 {
		for id := range m.plugins {
			requested[id] = true
		}
		return requested, results
	}
	for _, id := range ids {
		if _, ok := m.plugins[id]; !ok {
			m.log.Warn().Str("plugin", id).Msg("unknown plugin requested")
			results[id] = false
			continue
		}
		requested[id] = true
	}
	return requested, results
}

// resolveLocked builds the requires graph from the plugin table and
// resolves it.
func (m *Manager) resolveLocked() Resolution {
	requires := make(map[string][]string, len(m.plugins))
	for id, p := range m.plugins {
		requires[id] = p.Meta.Requires
	}
	return Resolve(requires)
}

// failStageLocked captures a stage failure on the plugin and moves it
// to Error.
func (m *Manager) failStageLocked(p *Plugin, stage string, err error) {
	p.Err = &StageError{Stage: stage, ID: p.Meta.ID, Err: err}
	m.setStatusLocked(p, StatusError)
	m.log.Error().Str("plugin", p.Meta.ID).Str("stage", stage).Err(err).Msg("stage failed")
}

// setStatusLocked updates a plugin's state and keeps the enabled set in
// sync for dispatch.
func (m *Manager) setStatusLocked(p *Plugin, st Status) {
	p.Status = st
	m.activeMu.Lock()
	if st == StatusEnabled {
		m.active[p.Meta.ID] = true
	} else {
		delete(m.active, p.Meta.ID)
	}
	m.activeMu.Unlock()
}

// persistEnabledLocked records the enabled flag in the state store, if
// one is attached.
func (m *Manager) persistEnabledLocked(id string, enabled bool) {
	if m.state == nil {
		return
	}
	if err := m.state.SetEnabled(id, enabled); err != nil {
		m.log.Warn().Str("plugin", id).Err(err).Msg("state store write failed")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
