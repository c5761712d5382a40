package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins and their states",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := buildHost(true)
			if err != nil {
				return err
			}
			defer h.mgr.Shutdown()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tSTATUS\tHOOKS\tERROR")
			for _, info := range h.mgr.ListPlugins() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					info.ID, info.Version, info.Status, len(info.Hooks), info.Error)
			}
			return w.Flush()
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <plugin-id>",
		Short: "Show one plugin's metadata and state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := buildHost(true)
			if err != nil {
				return err
			}
			defer h.mgr.Shutdown()

			info, ok := h.mgr.PluginInfo(args[0])
			if !ok {
				return fmt.Errorf("plugin %q not found", args[0])
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
