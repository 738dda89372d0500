package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/archive"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/settings"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Scan and archive work folders",
	}
	cmd.AddCommand(newArchiveScanCmd())
	cmd.AddCommand(newArchiveMoveCmd())
	cmd.AddCommand(newArchiveBatchCmd())
	cmd.AddCommand(newArchiveAutoCmd())
	cmd.AddCommand(newArchiveRecordCmd())
	return cmd
}

func newArchiveScanCmd() *cobra.Command {
	var recursiveFlag bool

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "List work folders",
		Long: "List the work folders under path (defaults to the scan path setting). " +
			"With --recursive the <year>/<folder> layout of an archive is scanned too.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			root := e.store.Read().WorkRoot()
			if len(args) == 1 {
				root = args[0]
			}

			var folders []domain.WorkFolder
			if recursiveFlag {
				folders, err = e.archive.ScanArchive(cmd.Context(), root)
			} else {
				folders, err = e.archive.Scan(cmd.Context(), root)
			}
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(folders)
			}

			if len(folders) == 0 {
				fmt.Println("No work folders found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "NAME\tDEPARTMENT\tCREATED\tFILES\tPATH")
			for _, f := range folders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					clip(f.Name, 40), orDash(f.Department), orDash(f.CreateTime), f.FileCount, f.Path)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&recursiveFlag, "recursive", "r", false, "descend into year buckets")
	return cmd
}

func newArchiveMoveCmd() *cobra.Command {
	var deptFlag, toFlag string

	cmd := &cobra.Command{
		Use:   "move <folder>",
		Short: "Archive one folder",
		Long: "Move a work folder into <archive>/<year>/<name>. The archive is --to, " +
			"or the archive path of --dept, or that of the default department.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			target, err := archiveTarget(e.registry, deptFlag, toFlag)
			if err != nil {
				return err
			}

			res, err := e.archive.Move(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(res)
			}
			fmt.Println(res.Message)
			fmt.Printf("%s -> %s\n", res.Source, res.Destination)
			return nil
		},
	}

	cmd.Flags().StringVar(&deptFlag, "dept", "", "archive into this department's path")
	cmd.Flags().StringVar(&toFlag, "to", "", "archive into this directory")
	cmd.MarkFlagsMutuallyExclusive("dept", "to")
	return cmd
}

// archiveTarget picks the archive base for a single move.
func archiveTarget(reg *settings.Registry, deptRef, to string) (string, error) {
	if to = strings.TrimSpace(to); to != "" {
		return to, nil
	}
	var d *domain.Department
	if deptRef = strings.TrimSpace(deptRef); deptRef != "" {
		if d = reg.Resolve(deptRef); d == nil {
			return "", fmt.Errorf("department %s: %w", deptRef, domain.ErrNotFound)
		}
	} else if d = reg.GetDefault(); d == nil {
		return "", fmt.Errorf("no archive destination; pass --to or --dept, or set a default department")
	}
	if strings.TrimSpace(d.ArchivePath) == "" {
		return "", fmt.Errorf("department %q has no archive path", d.Name)
	}
	return d.ArchivePath, nil
}

func newArchiveBatchCmd() *cobra.Command {
	var itemFlags []string

	cmd := &cobra.Command{
		Use:     "batch",
		Short:   "Archive several folders in one request",
		Example: "  knot archive batch --item ~/Desktop/a=/srv/archive/sales --item ~/Desktop/b=/srv/archive/ops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseMoveItems(itemFlags)
			if err != nil {
				return err
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			res, err := e.archive.BatchMove(cmd.Context(), items)
			if perr := printBatch(res); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if res.FailCount > 0 {
				return fmt.Errorf("%d of %d folders failed to archive", res.FailCount, res.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&itemFlags, "item", nil, "folder=archive pair (repeatable)")
	cmd.MarkFlagRequired("item")
	return cmd
}

// parseMoveItems splits folder=archive pairs on the first '='.
func parseMoveItems(pairs []string) ([]domain.MoveItem, error) {
	items := make([]domain.MoveItem, 0, len(pairs))
	for _, p := range pairs {
		folder, target, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --item %q (want folder=archive)", p)
		}
		items = append(items, domain.MoveItem{
			FolderPath:  strings.TrimSpace(folder),
			ArchivePath: strings.TrimSpace(target),
		})
	}
	return items, nil
}

func printBatch(res domain.BatchResult) error {
	if jsonFlag {
		return printJSON(res)
	}
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "OK\tSOURCE\tDESTINATION\tMESSAGE")
	for _, r := range res.Results {
		ok := "x"
		if r.Success {
			ok = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ok, r.Source, orDash(r.Destination), r.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d archived, %d failed, %d total.\n", res.SuccessCount, res.FailCount, res.Total)
	return nil
}

func newArchiveAutoCmd() *cobra.Command {
	var dryRunFlag bool

	cmd := &cobra.Command{
		Use:   "auto [path]",
		Short: "Archive every folder into its recorded department",
		Long: "Scan path (defaults to the scan path setting) and archive each folder into " +
			"the archive path of the department named in its work record. Folders whose " +
			"department is missing or unknown are left in place.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			root := e.store.Read().WorkRoot()
			if len(args) == 1 {
				root = args[0]
			}

			folders, err := e.archive.Scan(cmd.Context(), root)
			if err != nil {
				return err
			}
			planned, skipped := archive.PlanAutoArchive(folders, e.registry)

			out := jsonAutoArchive{DryRun: dryRunFlag, Planned: planned, Skipped: skipped}
			var runErr error
			if !dryRunFlag && len(planned) > 0 {
				res, err := e.archive.BatchMove(cmd.Context(), planned)
				out.Result = &res
				runErr = err
			}

			if jsonFlag {
				if err := printJSON(out); err != nil {
					return err
				}
				return runErr
			}

			for _, s := range skipped {
				fmt.Printf("skip  %s: %s\n", s.Folder.Name, s.Reason)
			}
			if len(planned) == 0 {
				fmt.Println("Nothing to archive.")
				return nil
			}
			if dryRunFlag {
				w := newTable(os.Stdout)
				fmt.Fprintln(w, "SOURCE\tARCHIVE")
				for _, it := range planned {
					fmt.Fprintf(w, "%s\t%s\n", it.FolderPath, it.ArchivePath)
				}
				return w.Flush()
			}
			if err := printBatch(*out.Result); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "only print what would be archived")
	return cmd
}

func newArchiveRecordCmd() *cobra.Command {
	var deptFlag, contentFlag string

	cmd := &cobra.Command{
		Use:   "record <folder>",
		Short: "Update a folder's work record",
		Long:  "Rewrite the department and content of a work record. An empty --dept keeps the recorded department.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			dept := strings.TrimSpace(deptFlag)
			if d := e.registry.Resolve(dept); dept != "" && d != nil {
				dept = d.Name
			}

			if err := e.archive.UpdateWorkRecord(cmd.Context(), args[0], dept, contentFlag); err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "record", Path: args[0]})
			}
			fmt.Println("Work record updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&deptFlag, "dept", "", "department id or name")
	cmd.Flags().StringVar(&contentFlag, "content", "", "new work content")
	return cmd
}
