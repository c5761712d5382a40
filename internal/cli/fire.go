package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newFireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fire <hook> [arg...]",
		Short: "Dispatch a hook once and print the results",
		Long: "Dispatches the named hook to every enabled handler. Arguments are\n" +
			"parsed as JSON values where possible; anything else is passed as a\n" +
			"plain string.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := buildHost(true)
			if err != nil {
				return err
			}
			defer h.mgr.Shutdown()

			hookArgs := make([]any, 0, len(args)-1)
			for _, raw := range args[1:] {
				hookArgs = append(hookArgs, parseArg(raw))
			}

			hctx := h.mgr.ExecuteHook(context.Background(), args[0], hookArgs...)

			out := map[string]any{
				"id":      hctx.ID,
				"hook":    hctx.Hook,
				"results": hctx.Results,
			}
			if hctx.Err != nil {
				out["error"] = hctx.Err.Error()
			}
			enc, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		},
	}
}

// parseArg interprets a command line argument as a JSON value when it is
// one (numbers, booleans, null, objects, arrays, quoted strings), and as
// a bare string otherwise.
func parseArg(raw string) any {
	if gjson.Valid(raw) {
		return gjson.Parse(raw).Value()
	}
	return raw
}
