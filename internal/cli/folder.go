package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/app"
	"github.com/lu-zhengda/knot/internal/domain"
)

func newFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Create work folders",
	}
	cmd.AddCommand(newFolderCreateCmd())
	cmd.AddCommand(newFolderQuickCmd())
	cmd.AddCommand(newFolderCheckCmd())
	return cmd
}

func newFolderCreateCmd() *cobra.Command {
	var deptFlag string
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "create <mail-id>",
		Short: "Create a work folder from a mail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			res, err := e.workflow.CreateFromMail(cmd.Context(), args[0], deptFlag, forceFlag)
			var dup *app.DuplicateError
			if errors.As(err, &dup) {
				if jsonFlag {
					_ = printJSON(domain.CheckResult{Found: true, Matches: dup.Matches})
				}
				return fmt.Errorf("%w; use --force to create it anyway", err)
			}
			if err != nil {
				return err
			}

			return printFolderResult(res)
		},
	}

	cmd.Flags().StringVar(&deptFlag, "dept", "", "department id or name (defaults to the default department)")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "create even if a folder already exists for this mail")
	return cmd
}

func newFolderQuickCmd() *cobra.Command {
	var deptFlag, dateFlag string

	cmd := &cobra.Command{
		Use:   "quick <content>",
		Short: "Create a work folder without a mail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day time.Time
			if dateFlag != "" {
				d, err := time.ParseInLocation(time.DateOnly, dateFlag, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", dateFlag)
				}
				day = d
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			res, err := e.workflow.QuickCreate(cmd.Context(), args[0], day, deptFlag)
			if err != nil {
				return err
			}
			return printFolderResult(res)
		},
	}

	cmd.Flags().StringVar(&deptFlag, "dept", "", "department id or name (defaults to the default department)")
	cmd.Flags().StringVar(&dateFlag, "date", "", "folder date as YYYY-MM-DD (defaults to today)")
	return cmd
}

func printFolderResult(res *domain.FolderResult) error {
	if jsonFlag {
		return printJSON(res)
	}
	fmt.Println(res.Message)
	fmt.Printf("Path: %s\n", res.Path)
	if res.ContentPath != "" && res.ContentPath != res.Path {
		fmt.Printf("Content: %s\n", res.ContentPath)
	}
	for _, f := range res.MailFiles {
		fmt.Printf("  %s\n", f)
	}
	for _, f := range res.AttachmentsDownloaded {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

func newFolderCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <hash>",
		Short: "Find folders carrying a fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			s := e.store.Read()
			res, err := e.archive.CheckHash(cmd.Context(), args[0], s.WorkRoot(), s.ArchivePaths())
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(res)
			}

			if !res.Found {
				fmt.Println("No folder found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "STATUS\tNAME\tPATH")
			for _, m := range res.Matches {
				fmt.Fprintf(w, "%s\t%s\t%s\n", statusLabel(m.Status), m.Name, m.Path)
			}
			return w.Flush()
		},
	}
}
