package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/quantframe/hookline/internal/hook"
)

// enabledPlugin wires one plugin whose handlers come from the supplied
// registrations and walks it to Enabled.
func enabledPlugin(t *testing.T, m *Manager, native *NativeRuntime, root, id string, regs []HookRegistration) {
	t.Helper()
	writeBundle(t, root, id)
	native.Register(id, func(*Metadata) (*Entry, error) {
		return &Entry{
			RegisterHooks: func(*hook.Registry) ([]HookRegistration, error) {
				return regs, nil
			},
		}, nil
	})
	if _, err := m.DiscoverPlugins(); err != nil {
		t.Fatal(err)
	}
	if !m.LoadPlugins(id)[id] || !m.InitializePlugins(nil, id)[id] || !m.EnablePlugins(id)[id] {
		t.Fatalf("plugin %s did not reach enabled", id)
	}
}

func TestExecuteHookUnknownIsEmpty(t *testing.T) {
	m, _, _ := testManager(t)
	hctx := m.ExecuteHook(context.Background(), "never.declared", 1, 2)
	if hctx.Err != nil || len(hctx.Results) != 0 {
		t.Errorf("unknown hook ctx = %+v", hctx)
	}
	if hctx.Hook != "never.declared" || hctx.ID == "" {
		t.Errorf("ctx identity = %+v", hctx)
	}
}

func TestExecuteHookNoHandlers(t *testing.T) {
	m, _, _ := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.idle"})
	hctx := m.ExecuteHook(context.Background(), "sys.idle")
	if hctx.Err != nil || len(hctx.Results) != 0 {
		t.Errorf("ctx = %+v", hctx)
	}
}

func TestExecuteHookPriorityOrder(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.tick", Sequential: true})

	record := func(tag string) hook.HandlerFunc {
		return func(context.Context, ...any) (any, error) { return tag, nil }
	}
	enabledPlugin(t, m, native, root, "alpha", []HookRegistration{
		{Hook: "sys.tick", Name: "late", Fn: record("late"), Opts: []hook.BindOption{hook.WithPriority(100)}},
		{Hook: "sys.tick", Name: "early", Fn: record("early"), Opts: []hook.BindOption{hook.WithPriority(10)}},
		{Hook: "sys.tick", Name: "mid", Fn: record("mid"), Opts: []hook.BindOption{hook.WithPriority(50)}},
	})

	hctx := m.ExecuteHook(context.Background(), "sys.tick")
	want := []any{"early", "mid", "late"}
	if len(hctx.Results) != 3 {
		t.Fatalf("Results = %v", hctx.Results)
	}
	for i := range want {
		if hctx.Results[i] != want[i] {
			t.Fatalf("Results = %v, want %v", hctx.Results, want)
		}
	}
}

func TestSequentialVetoStopsChain(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "trading.gate", Sequential: true})

	ran := false
	enabledPlugin(t, m, native, root, "guard", []HookRegistration{
		{
			Hook: "trading.gate", Name: "deny",
			Fn:   func(context.Context, ...any) (any, error) { return false, nil },
			Opts: []hook.BindOption{hook.WithPriority(10)},
		},
		{
			Hook: "trading.gate", Name: "after",
			Fn:   func(context.Context, ...any) (any, error) { ran = true; return "x", nil },
			Opts: []hook.BindOption{hook.WithPriority(20)},
		},
	})

	hctx := m.ExecuteHook(context.Background(), "trading.gate")
	if len(hctx.Results) != 1 || hctx.Results[0] != false {
		t.Errorf("Results = %v, want [false]", hctx.Results)
	}
	if ran {
		t.Error("handler after veto still ran")
	}
	if hctx.Err != nil {
		t.Errorf("veto is not an error, got %v", hctx.Err)
	}
}

func TestSequentialStopsOnError(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.step", Sequential: true})

	boom := errors.New("boom")
	ran := false
	enabledPlugin(t, m, native, root, "alpha", []HookRegistration{
		{
			Hook: "sys.step", Name: "fails",
			Fn:   func(context.Context, ...any) (any, error) { return nil, boom },
			Opts: []hook.BindOption{hook.WithPriority(10)},
		},
		{
			Hook: "sys.step", Name: "next",
			Fn:   func(context.Context, ...any) (any, error) { ran = true; return 1, nil },
			Opts: []hook.BindOption{hook.WithPriority(20)},
		},
	})

	hctx := m.ExecuteHook(context.Background(), "sys.step")
	if !errors.Is(hctx.Err, boom) {
		t.Errorf("Err = %v, want wrapped boom", hctx.Err)
	}
	var herr *hook.HandlerError
	if !errors.As(hctx.Err, &herr) || herr.Handler != "alpha:fails" {
		t.Errorf("Err = %#v, want HandlerError for alpha:fails", hctx.Err)
	}
	if ran || len(hctx.Results) != 0 {
		t.Errorf("chain continued after error: ran=%v results=%v", ran, hctx.Results)
	}
}

func TestBroadcastContinuesPastError(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "market.tick"})

	enabledPlugin(t, m, native, root, "alpha", []HookRegistration{
		{
			Hook: "market.tick", Name: "fails",
			Fn:   func(context.Context, ...any) (any, error) { return nil, errors.New("down") },
			Opts: []hook.BindOption{hook.WithPriority(10)},
		},
		{
			Hook: "market.tick", Name: "works",
			Fn:   func(context.Context, ...any) (any, error) { return 42, nil },
			Opts: []hook.BindOption{hook.WithPriority(20)},
		},
	})

	hctx := m.ExecuteHook(context.Background(), "market.tick")
	if hctx.Err == nil {
		t.Error("Err = nil, want recorded handler error")
	}
	if len(hctx.Results) != 1 || hctx.Results[0] != 42 {
		t.Errorf("Results = %v, want [42]", hctx.Results)
	}
}

func TestPanicRecoveredAtDispatchBoundary(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.tick"})

	enabledPlugin(t, m, native, root, "alpha", []HookRegistration{
		{
			Hook: "sys.tick", Name: "panics",
			Fn:   func(context.Context, ...any) (any, error) { panic("plugin bug") },
			Opts: []hook.BindOption{hook.WithPriority(10)},
		},
		{
			Hook: "sys.tick", Name: "survivor",
			Fn:   func(context.Context, ...any) (any, error) { return "alive", nil },
			Opts: []hook.BindOption{hook.WithPriority(20)},
		},
	})

	hctx := m.ExecuteHook(context.Background(), "sys.tick")
	if hctx.Err == nil {
		t.Fatal("panic not recorded as error")
	}
	if len(hctx.Results) != 1 || hctx.Results[0] != "alive" {
		t.Errorf("Results = %v, want [alive]", hctx.Results)
	}
}

func TestDisabledPluginHandlersSkipped(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.tick"})

	enabledPlugin(t, m, native, root, "alpha", []HookRegistration{
		{Hook: "sys.tick", Name: "h", Fn: func(context.Context, ...any) (any, error) { return "hi", nil }},
	})

	m.DisablePlugins("alpha")
	hctx := m.ExecuteHook(context.Background(), "sys.tick")
	if len(hctx.Results) != 0 {
		t.Errorf("disabled plugin handler ran: %v", hctx.Results)
	}
	// Handlers stay registered while disabled.
	if n := m.Registry().HandlerCount("sys.tick"); n != 1 {
		t.Errorf("HandlerCount while disabled = %d, want 1", n)
	}

	m.EnablePlugins("alpha")
	hctx = m.ExecuteHook(context.Background(), "sys.tick")
	if len(hctx.Results) != 1 || hctx.Results[0] != "hi" {
		t.Errorf("Results after re-enable = %v", hctx.Results)
	}
}

func TestHostHandlersAlwaysRun(t *testing.T) {
	m, _, _ := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.tick"})
	err := m.Registry().RegisterHandler("sys.tick", "host-metrics",
		func(context.Context, ...any) (any, error) { return "host", nil })
	if err != nil {
		t.Fatal(err)
	}

	hctx := m.ExecuteHook(context.Background(), "sys.tick")
	if len(hctx.Results) != 1 || hctx.Results[0] != "host" {
		t.Errorf("Results = %v, want [host]", hctx.Results)
	}
}

func TestArgumentCountMismatchStillDispatches(t *testing.T) {
	m, native, root := testManager(t)
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.sized", Params: []string{"a", "b"}})

	enabledPlugin(t, m, native, root, "alpha", []HookRegistration{
		{Hook: "sys.sized", Name: "h", Fn: func(_ context.Context, args ...any) (any, error) {
			return len(args), nil
		}},
	})

	hctx := m.ExecuteHook(context.Background(), "sys.sized", "only-one")
	if len(hctx.Results) != 1 || hctx.Results[0] != 1 {
		t.Errorf("Results = %v, want [1]", hctx.Results)
	}
	if hctx.Err != nil {
		t.Errorf("mismatch is advisory, got error %v", hctx.Err)
	}
}
