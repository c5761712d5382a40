package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List declared hooks and their handler counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := buildHost(true)
			if err != nil {
				return err
			}
			defer h.mgr.Shutdown()

			reg := h.mgr.Registry()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HOOK\tMODE\tHANDLERS\tDESCRIPTION")
			for _, spec := range reg.Specs() {
				mode := "broadcast"
				if spec.Sequential {
					mode = "sequential"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					spec.String(), mode, reg.HandlerCount(spec.Name), spec.Description)
			}
			return w.Flush()
		},
	}
}
