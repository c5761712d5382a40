package cli

import (
	"github.com/quantframe/hookline/internal/config"
	"github.com/quantframe/hookline/internal/hook"
	"github.com/quantframe/hookline/internal/logging"
	"github.com/quantframe/hookline/internal/plugin"
	"github.com/quantframe/hookline/internal/plugin/luart"
)

// host bundles the wired-up plugin system for one command invocation.
type host struct {
	cfg   config.Config
	log   *logging.Logger
	mgr   *plugin.Manager
	store *plugin.StateStore
}

// buildHost loads configuration and brings the plugin system up:
// discover, load, initialize, and (optionally) enable. Plugins an
// operator previously disabled stay disabled.
func buildHost(enable bool) (*host, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	log := logging.New(nil, level)

	registry := hook.NewRegistry(log)
	hook.RegisterCatalog(registry)

	opts := []plugin.Option{
		plugin.WithRuntime(luart.NewRuntime(log)),
		plugin.WithRuntime(plugin.NewNativeRuntime()),
	}
	var store *plugin.StateStore
	if cfg.StateFile != "" {
		store, err = plugin.NewStateStore(cfg.StateFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, plugin.WithStateStore(store))
	}

	mgr := plugin.NewManager(registry, log, opts...)
	for _, dir := range cfg.PluginDirs {
		if err := mgr.AddPluginDir(dir); err != nil {
			log.Warn().Err(err).Msg("plugin dir skipped")
		}
	}

	if _, err := mgr.DiscoverPlugins(); err != nil {
		log.Warn().Err(err).Msg("discovery reported problems")
	}
	mgr.LoadPlugins()
	mgr.InitializePlugins(cfg.Plugins)

	if enable {
		for _, info := range mgr.PluginsByStatus(plugin.StatusInitialized) {
			if store != nil {
				if on, saved := store.Enabled(info.ID); saved && !on {
					continue
				}
			}
			mgr.EnablePlugins(info.ID)
		}
	}

	return &host{cfg: cfg, log: log, mgr: mgr, store: store}, nil
}
