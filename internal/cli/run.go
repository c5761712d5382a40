package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantframe/hookline/internal/hook"
	"github.com/quantframe/hookline/internal/plugin"
)

func newRunCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the plugin host until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := buildHost(true)
			if err != nil {
				return err
			}

			ctx := context.Background()
			h.mgr.ExecuteHook(ctx, hook.SystemStartup, map[string]any{
				"plugin_dirs": h.cfg.PluginDirs,
				"state_file":  h.cfg.StateFile,
			})

			if watch || h.cfg.Watch {
				w, err := plugin.NewWatcher(h.mgr, h.log, 0)
				if err != nil {
					return err
				}
				if err := w.Start(); err != nil {
					return err
				}
				defer w.Stop()
				h.log.Info().Msg("hot reload watcher running")
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			sig := <-signals
			h.log.Info().Str("signal", sig.String()).Msg("shutting down")

			h.mgr.ExecuteHook(ctx, hook.SystemShutdown, 0)
			h.mgr.Shutdown()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "hot-reload plugins when their files change")
	return cmd
}
