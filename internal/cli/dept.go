package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/settings"
)

func newDeptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dept",
		Aliases: []string{"department"},
		Short:   "Manage departments and their archive paths",
	}
	cmd.AddCommand(newDeptListCmd())
	cmd.AddCommand(newDeptAddCmd())
	cmd.AddCommand(newDeptUpdateCmd())
	cmd.AddCommand(newDeptRemoveCmd())
	cmd.AddCommand(newDeptDefaultCmd())
	cmd.AddCommand(newDeptClearDefaultCmd())
	return cmd
}

func newDeptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			depts := e.registry.List()

			if jsonFlag {
				return printJSON(depts)
			}

			if len(depts) == 0 {
				fmt.Println("No departments configured. Run 'knot dept add' to add one.")
				return nil
			}

			def := e.registry.GetDefault()
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "DEFAULT\tNAME\tARCHIVE_PATH\tID")
			for _, d := range depts {
				mark := " "
				if def != nil && def.ID == d.ID {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, d.Name, d.ArchivePath, d.ID)
			}
			return w.Flush()
		},
	}
}

func newDeptAddCmd() *cobra.Command {
	var defaultFlag bool

	cmd := &cobra.Command{
		Use:   "add <name> <archive-path>",
		Short: "Add a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			d, err := e.registry.Add(args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to add department: %w", err)
			}
			if defaultFlag {
				if _, err := e.registry.SetDefault(d.ID); err != nil {
					return fmt.Errorf("failed to set default department: %w", err)
				}
			}

			if jsonFlag {
				return printJSON(d)
			}
			fmt.Printf("Department added: %s (%s)\n", d.Name, d.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&defaultFlag, "default", false, "make it the default department")
	return cmd
}

func newDeptUpdateCmd() *cobra.Command {
	var nameFlag, pathFlag string

	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Rename a department or change its archive path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p settings.DepartmentPatch
			if cmd.Flags().Changed("name") {
				p.Name = &nameFlag
			}
			if cmd.Flags().Changed("path") {
				p.ArchivePath = &pathFlag
			}
			if p.Name == nil && p.ArchivePath == nil {
				return fmt.Errorf("nothing to update; pass --name or --path")
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			id, err := resolveDeptID(e.registry, args[0])
			if err != nil {
				return err
			}
			d, err := e.registry.Update(id, p)
			if err != nil {
				return fmt.Errorf("failed to update department: %w", err)
			}
			if d == nil {
				return fmt.Errorf("department %s: %w", args[0], domain.ErrNotFound)
			}

			if jsonFlag {
				return printJSON(d)
			}
			fmt.Printf("Department updated: %s -> %s\n", d.Name, d.ArchivePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "new department name")
	cmd.Flags().StringVar(&pathFlag, "path", "", "new archive path")
	return cmd
}

func newDeptRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|name>",
		Short: "Remove a department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			id, err := resolveDeptID(e.registry, args[0])
			if err != nil {
				return err
			}
			remaining, err := e.registry.Remove(id)
			if err != nil {
				return fmt.Errorf("failed to remove department: %w", err)
			}

			if jsonFlag {
				return printJSON(remaining)
			}
			fmt.Printf("Department removed. %d remaining.\n", len(remaining))
			return nil
		},
	}
}

func newDeptDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default [id|name]",
		Short: "Show or set the default department",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				d := e.registry.GetDefault()
				if jsonFlag {
					return printJSON(d)
				}
				if d == nil {
					fmt.Println("No default department.")
					return nil
				}
				fmt.Printf("%s\t%s\n", d.Name, d.ArchivePath)
				return nil
			}

			id, err := resolveDeptID(e.registry, args[0])
			if err != nil {
				return err
			}
			d, err := e.registry.SetDefault(id)
			if err != nil {
				return fmt.Errorf("failed to set default department: %w", err)
			}
			if d == nil {
				return fmt.Errorf("department %s: %w", args[0], domain.ErrNotFound)
			}

			if jsonFlag {
				return printJSON(d)
			}
			fmt.Printf("Default department: %s\n", d.Name)
			return nil
		},
	}
}

func newDeptClearDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-default",
		Short: "Clear the default department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.registry.ClearDefault(); err != nil {
				return fmt.Errorf("failed to clear default department: %w", err)
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "clear-default"})
			}
			fmt.Println("Default department cleared.")
			return nil
		},
	}
}

// resolveDeptID accepts a department id or name.
func resolveDeptID(reg *settings.Registry, ref string) (string, error) {
	d := reg.Resolve(ref)
	if d == nil {
		return "", fmt.Errorf("department %s: %w", ref, domain.ErrNotFound)
	}
	return d.ID, nil
}
