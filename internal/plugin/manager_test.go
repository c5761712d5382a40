package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantframe/hookline/internal/hook"
)

// writeBundle creates a plugin bundle whose entry point is served by the
// native runtime under the plugin's own id.
func writeBundle(t *testing.T, root, id string, requires ...string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	reqs := "[]"
	if len(requires) > 0 {
		reqs = `["` + strings.Join(requires, `","`) + `"]`
	}
	descriptor := fmt.Sprintf(`{"id": %q, "entry_point": "native:%s", "requires": %s}`, id, id, reqs)
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testManager(t *testing.T) (*Manager, *NativeRuntime, string) {
	t.Helper()
	root := t.TempDir()
	reg := hook.NewRegistry(nil)
	native := NewNativeRuntime()
	m := NewManager(reg, nil, WithRuntime(native))
	if err := m.AddPluginDir(root); err != nil {
		t.Fatal(err)
	}
	return m, native, root
}

func noopFactory(*Metadata) (*Entry, error) { return &Entry{}, nil }

func mustStatus(t *testing.T, m *Manager, id, want string) {
	t.Helper()
	info, ok := m.PluginInfo(id)
	if !ok {
		t.Fatalf("plugin %s not found", id)
	}
	if info.Status != want {
		t.Fatalf("plugin %s status = %s, want %s (err: %s)", id, info.Status, want, info.Error)
	}
}

func TestLifecycleForwardPath(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")
	native.Register("alpha", noopFactory)

	ids, err := m.DiscoverPlugins()
	if err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "alpha" {
		t.Fatalf("DiscoverPlugins() = %v", ids)
	}
	mustStatus(t, m, "alpha", "discovered")

	if res := m.LoadPlugins(); !res["alpha"] {
		t.Fatalf("LoadPlugins() = %v", res)
	}
	mustStatus(t, m, "alpha", "loaded")

	if res := m.InitializePlugins(nil); !res["alpha"] {
		t.Fatalf("InitializePlugins() = %v", res)
	}
	mustStatus(t, m, "alpha", "initialized")

	if res := m.EnablePlugins(); !res["alpha"] {
		t.Fatalf("EnablePlugins() = %v", res)
	}
	mustStatus(t, m, "alpha", "enabled")

	if res := m.DisablePlugins("alpha"); !res["alpha"] {
		t.Fatalf("DisablePlugins() = %v", res)
	}
	mustStatus(t, m, "alpha", "initialized")

	if res := m.UnloadPlugins("alpha"); !res["alpha"] {
		t.Fatalf("UnloadPlugins() = %v", res)
	}
	mustStatus(t, m, "alpha", "discovered")
}

func TestLoadFailureCascades(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "broken")
	writeBundle(t, root, "dependent", "broken")
	writeBundle(t, root, "bystander")
	native.Register("broken", func(*Metadata) (*Entry, error) {
		return nil, errors.New("import exploded")
	})
	native.Register("dependent", noopFactory)
	native.Register("bystander", noopFactory)

	m.DiscoverPlugins()
	res := m.LoadPlugins()

	if res["broken"] || res["dependent"] || !res["bystander"] {
		t.Fatalf("LoadPlugins() = %v", res)
	}
	mustStatus(t, m, "broken", "error")
	mustStatus(t, m, "dependent", "error")
	mustStatus(t, m, "bystander", "loaded")

	info, _ := m.PluginInfo("dependent")
	if !strings.Contains(info.Error, "missing dependency") {
		t.Errorf("dependent error = %q, want missing dependency", info.Error)
	}
}

func TestLoadMissingDependency(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "orphan", "nonexistent")
	native.Register("orphan", noopFactory)

	m.DiscoverPlugins()
	res := m.LoadPlugins()
	if res["orphan"] {
		t.Fatalf("LoadPlugins() = %v, want orphan false", res)
	}
	mustStatus(t, m, "orphan", "error")
}

func TestLoadCycleRefused(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "ying", "yang")
	writeBundle(t, root, "yang", "ying")
	writeBundle(t, root, "solo")
	native.Register("ying", noopFactory)
	native.Register("yang", noopFactory)
	native.Register("solo", noopFactory)

	m.DiscoverPlugins()
	res := m.LoadPlugins()

	if res["ying"] || res["yang"] || !res["solo"] {
		t.Fatalf("LoadPlugins() = %v", res)
	}
	for _, id := range []string{"ying", "yang"} {
		mustStatus(t, m, id, "error")
		info, _ := m.PluginInfo(id)
		if !strings.Contains(info.Error, "circular") {
			t.Errorf("%s error = %q, want circular dependency", id, info.Error)
		}
	}
}

func TestLoadAlreadyLoadedIsSuccess(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")
	opens := 0
	native.Register("alpha", func(*Metadata) (*Entry, error) {
		opens++
		return &Entry{}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	if res := m.LoadPlugins("alpha"); !res["alpha"] {
		t.Fatalf("second LoadPlugins() = %v", res)
	}
	if opens != 1 {
		t.Errorf("entry opened %d times, want 1", opens)
	}
}

func TestUnknownPluginRequested(t *testing.T) {
	m, _, _ := testManager(t)
	res := m.LoadPlugins("ghost")
	if ok, present := res["ghost"]; !present || ok {
		t.Errorf("LoadPlugins(ghost) = %v, want explicit false", res)
	}
}

func TestInitializeBindsConfigAndHooks(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")

	m.Registry().RegisterSpec(hook.Spec{Name: "sys.ping", Params: []string{"n"}})

	var gotConfig map[string]any
	native.Register("alpha", func(*Metadata) (*Entry, error) {
		return &Entry{
			Initialize: func(config map[string]any) error {
				gotConfig = config
				return nil
			},
			RegisterHooks: func(*hook.Registry) ([]HookRegistration, error) {
				return []HookRegistration{{
					Hook: "sys.ping",
					Name: "pong",
					Fn: func(_ context.Context, args ...any) (any, error) {
						return args[0], nil
					},
				}}, nil
			},
			Exports: func() (map[string]any, error) {
				return map[string]any{"answer": 42}, nil
			},
		}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	res := m.InitializePlugins(map[string]map[string]any{"alpha": {"threshold": 3}})
	if !res["alpha"] {
		t.Fatalf("InitializePlugins() = %v", res)
	}
	if gotConfig["threshold"] != 3 {
		t.Errorf("config slice = %v", gotConfig)
	}
	if n := m.Registry().HandlerCount("sys.ping"); n != 1 {
		t.Fatalf("HandlerCount = %d, want 1", n)
	}
	// Binding names are prefixed with the owning plugin id.
	if got := m.Registry().Handlers("sys.ping")[0].Name; got != "alpha:pong" {
		t.Errorf("binding name = %q, want alpha:pong", got)
	}

	if v, ok := m.Export("alpha", "answer"); !ok || v != 42 {
		t.Errorf("Export(answer) = %v %v", v, ok)
	}
}

func TestInitializeFailureSetsError(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")
	native.Register("alpha", func(*Metadata) (*Entry, error) {
		return &Entry{
			Initialize: func(map[string]any) error { return errors.New("bad config") },
		}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	res := m.InitializePlugins(nil)
	if res["alpha"] {
		t.Fatalf("InitializePlugins() = %v", res)
	}
	mustStatus(t, m, "alpha", "error")

	info, _ := m.PluginInfo("alpha")
	if !strings.Contains(info.Error, "initialize failed") {
		t.Errorf("error = %q", info.Error)
	}
}

func TestExportsVisibleAfterInitialize(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")
	native.Register("alpha", func(*Metadata) (*Entry, error) {
		return &Entry{
			Exports: func() (map[string]any, error) {
				return map[string]any{"greet": "hello"}, nil
			},
		}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	m.InitializePlugins(nil)

	v, ok := m.Export("alpha", "greet")
	if !ok || v != "hello" {
		t.Errorf("Export() = %v %v", v, ok)
	}
	if _, ok := m.Export("alpha", "absent"); ok {
		t.Error("Export(absent) = true")
	}
}

func TestUnloadRemovesHandlers(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")
	m.Registry().RegisterSpec(hook.Spec{Name: "sys.ping"})
	unloaded := false
	native.Register("alpha", func(*Metadata) (*Entry, error) {
		return &Entry{
			RegisterHooks: func(*hook.Registry) ([]HookRegistration, error) {
				return []HookRegistration{{
					Hook: "sys.ping",
					Fn:   func(context.Context, ...any) (any, error) { return nil, nil },
				}}, nil
			},
			Unload: func() error { unloaded = true; return nil },
		}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	m.InitializePlugins(nil)
	m.EnablePlugins()

	if n := m.Registry().HandlerCount("sys.ping"); n != 1 {
		t.Fatalf("HandlerCount = %d, want 1", n)
	}

	res := m.UnloadPlugins("alpha")
	if !res["alpha"] || !unloaded {
		t.Fatalf("UnloadPlugins() = %v, unload called = %v", res, unloaded)
	}
	if n := m.Registry().HandlerCount("sys.ping"); n != 0 {
		t.Errorf("HandlerCount after unload = %d, want 0", n)
	}
	mustStatus(t, m, "alpha", "discovered")
}

func TestReloadPreservesEnabledAndConfig(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")

	var lastConfig map[string]any
	opens := 0
	native.Register("alpha", func(*Metadata) (*Entry, error) {
		opens++
		return &Entry{
			Initialize: func(config map[string]any) error {
				lastConfig = config
				return nil
			},
		}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	m.InitializePlugins(map[string]map[string]any{"alpha": {"key": "v1"}})
	m.EnablePlugins()

	if !m.ReloadPlugin("alpha") {
		t.Fatal("ReloadPlugin() = false")
	}
	mustStatus(t, m, "alpha", "enabled")
	if opens != 2 {
		t.Errorf("entry opened %d times, want 2", opens)
	}
	if lastConfig["key"] != "v1" {
		t.Errorf("config after reload = %v, want preserved", lastConfig)
	}
}

func TestReloadRecoversFromError(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "flaky")

	fail := true
	native.Register("flaky", func(*Metadata) (*Entry, error) {
		if fail {
			return nil, errors.New("transient")
		}
		return &Entry{}, nil
	})

	m.DiscoverPlugins()
	m.LoadPlugins()
	mustStatus(t, m, "flaky", "error")

	// A plain load does not touch an errored plugin.
	if res := m.LoadPlugins("flaky"); res["flaky"] {
		t.Fatalf("LoadPlugins on errored plugin = %v", res)
	}

	fail = false
	if !m.ReloadPlugin("flaky") {
		t.Fatal("ReloadPlugin() = false")
	}
	mustStatus(t, m, "flaky", "initialized")
}

func TestReloadUnknownPlugin(t *testing.T) {
	m, _, _ := testManager(t)
	if m.ReloadPlugin("ghost") {
		t.Error("ReloadPlugin(ghost) = true")
	}
}

func TestDiscoveryConflictKeepsEarlier(t *testing.T) {
	m, native, root := testManager(t)
	second := t.TempDir()
	if err := m.AddPluginDir(second); err != nil {
		t.Fatal(err)
	}
	writeBundle(t, root, "dup")
	writeBundle(t, second, "dup")
	native.Register("dup", noopFactory)

	ids, err := m.DiscoverPlugins()
	if !errors.Is(err, ErrDiscoveryConflict) {
		t.Errorf("DiscoverPlugins() error = %v, want ErrDiscoveryConflict", err)
	}
	if len(ids) != 1 {
		t.Errorf("ids = %v, want one dup entry", ids)
	}
	info, _ := m.PluginInfo("dup")
	if info.Dir != filepath.Join(root, "dup") {
		t.Errorf("kept dir = %q, want earlier directory", info.Dir)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	m, native, root := testManager(t)
	writeBundle(t, root, "alpha")
	native.Register("alpha", noopFactory)

	m.DiscoverPlugins()
	m.LoadPlugins()
	m.InitializePlugins(nil)
	m.EnablePlugins()

	m.Shutdown()
	mustStatus(t, m, "alpha", "discovered")
	m.Shutdown()
}
