package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var kindFlag, hashFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show created and archived folders",
		Long:  "Show the folder history recorded by the backend, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := store.EventKind(kindFlag)
			switch kind {
			case "", store.EventCreated, store.EventArchived:
			default:
				return fmt.Errorf("invalid --kind %q (use created or archived)", kindFlag)
			}

			if _, err := loadConfig(); err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var events []store.FolderEvent
			if hashFlag != "" {
				events, err = db.FindByHash(cmd.Context(), hashFlag)
			} else {
				events, err = db.ListEvents(cmd.Context(), kind, limitFlag)
			}
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			if jsonFlag {
				return printJSON(toJSONEvents(events))
			}

			if len(events) == 0 {
				fmt.Println("No history yet.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "WHEN\tKIND\tNAME\tDEPARTMENT\tPATH")
			for _, ev := range events {
				path := ev.Path
				if ev.Destination != "" {
					path = ev.Destination
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					ev.CreatedAt.Local().Format("2006-01-02 15:04"),
					ev.Kind, clip(ev.Name, 40), orDash(ev.Department), path)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "only show created or archived events")
	cmd.Flags().StringVar(&hashFlag, "hash", "", "only show events for this fingerprint")
	cmd.Flags().IntVar(&limitFlag, "limit", 25, "max events to show (0 for all)")
	return cmd
}
