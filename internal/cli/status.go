package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const backendHint = "Hint: the backend is not running; start it with 'knot serve'."

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			status, err := e.gateway.Health(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "status", Path: e.cfg.Backend.URL, Message: status})
			}
			fmt.Printf("Backend %s: %s\n", e.cfg.Backend.URL, status)
			return nil
		},
	}
}
