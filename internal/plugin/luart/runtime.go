package luart

import (
	"context"
	"fmt"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/quantframe/hookline/internal/hook"
	"github.com/quantframe/hookline/internal/logging"
	"github.com/quantframe/hookline/internal/plugin"
)

// Lifecycle globals a plugin script may define. All are optional.
const (
	fnInitialize    = "initialize"
	fnRegisterHooks = "register_hooks"
	fnGetExports    = "get_exports"
	fnEnable        = "enable"
	fnDisable       = "disable"
	fnUnload        = "unload"
)

// Runtime opens Lua plugin bundles. The entry point script runs once at
// load; the lifecycle globals it defines are bridged onto the plugin
// entry.
type Runtime struct {
	log *logging.Logger
}

// NewRuntime creates the Lua runtime. A nil logger is replaced with a
// no-op logger.
func NewRuntime(log *logging.Logger) *Runtime {
	if log == nil {
		log = logging.Nop()
	}
	return &Runtime{log: log.Component("lua")}
}

// Scheme implements plugin.Runtime.
func (r *Runtime) Scheme() string { return "lua" }

// Open implements plugin.Runtime. It creates a fresh interpreter, runs
// the entry point script, and probes the lifecycle globals.
func (r *Runtime) Open(meta *plugin.Metadata, ref string) (*plugin.Entry, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(meta.Dir(), ref)
	}

	st := NewState()
	if err := st.DoFile(path); err != nil {
		st.Close()
		return nil, fmt.Errorf("run %s: %w", ref, err)
	}
	r.log.Debug().Str("plugin", meta.ID).Str("entry", ref).Msg("script loaded")

	entry := &plugin.Entry{Close: st.Close}

	initFn, err := st.Fn(fnInitialize)
	if err != nil {
		st.Close()
		return nil, err
	}
	if initFn != nil {
		entry.Initialize = func(config map[string]any) error {
			_, err := st.Call(initFn, FromGo(st.LState(), config))
			return err
		}
	}

	hooksFn, err := st.Fn(fnRegisterHooks)
	if err != nil {
		st.Close()
		return nil, err
	}
	if hooksFn != nil {
		entry.RegisterHooks = func(*hook.Registry) ([]plugin.HookRegistration, error) {
			return r.collectHooks(st, hooksFn)
		}
	}

	exportsFn, err := st.Fn(fnGetExports)
	if err != nil {
		st.Close()
		return nil, err
	}
	if exportsFn != nil {
		entry.Exports = func() (map[string]any, error) {
			return collectExports(st, exportsFn)
		}
	}

	for _, probe := range []struct {
		name string
		dst  *func() error
	}{
		{fnEnable, &entry.Enable},
		{fnDisable, &entry.Disable},
		{fnUnload, &entry.Unload},
	} {
		fn, err := st.Fn(probe.name)
		if err != nil {
			st.Close()
			return nil, err
		}
		if fn != nil {
			fn := fn
			*probe.dst = func() error {
				_, err := st.Call(fn)
				return err
			}
		}
	}

	return entry, nil
}

// collectHooks calls register_hooks and converts the returned table to
// hook registrations. Each table entry maps a hook name to either a bare
// handler function or a table of the form
// {handler = fn, priority = n, name = s}.
func (r *Runtime) collectHooks(st *State, hooksFn *lua.LFunction) ([]plugin.HookRegistration, error) {
	rets, err := st.Call(hooksFn)
	if err != nil {
		return nil, err
	}
	if len(rets) == 0 || rets[0] == lua.LNil {
		return nil, nil
	}
	table, ok := rets[0].(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("register_hooks returned %s, want table", rets[0].Type())
	}

	var regs []plugin.HookRegistration
	var badEntry error
	table.ForEach(func(k, v lua.LValue) {
		hookName := k.String()
		reg := plugin.HookRegistration{Hook: hookName}

		var fn *lua.LFunction
		switch tv := v.(type) {
		case *lua.LFunction:
			fn = tv
		case *lua.LTable:
			handler, isFn := tv.RawGetString("handler").(*lua.LFunction)
			if !isFn {
				badEntry = fmt.Errorf("hook %s: handler is not a function", hookName)
				return
			}
			fn = handler
			if prio, isNum := tv.RawGetString("priority").(lua.LNumber); isNum {
				reg.Opts = append(reg.Opts, hook.WithPriority(int(prio)))
			}
			if name, isStr := tv.RawGetString("name").(lua.LString); isStr {
				reg.Name = string(name)
			}
		default:
			badEntry = fmt.Errorf("hook %s: entry is %s, want function or table", hookName, v.Type())
			return
		}

		// A fixed-arity Lua function declares its own shape; varargs
		// accept anything.
		if fn.Proto != nil && fn.Proto.IsVarArg == 0 {
			reg.Opts = append(reg.Opts, hook.WithArity(int(fn.Proto.NumParameters)))
		}
		reg.Fn = luaHandler(st, fn)
		regs = append(regs, reg)
	})
	if badEntry != nil {
		return nil, badEntry
	}
	return regs, nil
}

// luaHandler adapts a Lua function to the dispatch handler signature.
// The first return value becomes the handler result.
func luaHandler(st *State, fn *lua.LFunction) hook.HandlerFunc {
	return func(_ context.Context, args ...any) (any, error) {
		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = FromGo(st.LState(), a)
		}
		rets, err := st.Call(fn, largs...)
		if err != nil {
			return nil, err
		}
		if len(rets) == 0 {
			return nil, nil
		}
		return ToGo(rets[0]), nil
	}
}

// collectExports calls get_exports and converts the returned table.
// Exported Lua functions stay callable from Go.
func collectExports(st *State, exportsFn *lua.LFunction) (map[string]any, error) {
	rets, err := st.Call(exportsFn)
	if err != nil {
		return nil, err
	}
	if len(rets) == 0 || rets[0] == lua.LNil {
		return map[string]any{}, nil
	}
	table, ok := rets[0].(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("get_exports returned %s, want table", rets[0].Type())
	}

	out := map[string]any{}
	table.ForEach(func(k, v lua.LValue) {
		if fn, isFn := v.(*lua.LFunction); isFn {
			out[k.String()] = exportedFunc(st, fn)
			return
		}
		out[k.String()] = ToGo(v)
	})
	return out, nil
}

// ExportedFunc is the callable shape of a Lua function export.
type ExportedFunc func(args ...any) (any, error)

func exportedFunc(st *State, fn *lua.LFunction) ExportedFunc {
	return func(args ...any) (any, error) {
		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = FromGo(st.LState(), a)
		}
		rets, err := st.Call(fn, largs...)
		if err != nil {
			return nil, err
		}
		if len(rets) == 0 {
			return nil, nil
		}
		return ToGo(rets[0]), nil
	}
}
