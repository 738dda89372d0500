package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lu-zhengda/knot/internal/credential"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/naming"
	"github.com/lu-zhengda/knot/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsPasswordCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			s := e.store.Read()

			if jsonFlag {
				return printJSON(toJSONSettings(s))
			}
			return writeSettings(os.Stdout, e.store.Path(), s)
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		Long: "Change settings by flag. Only the flags given are written; " +
			"everything else keeps its current value.",
		Example: "  knot settings set --folder-path ~/Work --name-format '{{YYYY}}.{{MM}}.{{DD}}_{{subject}}'",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("no settings given; see 'knot settings set --help'")
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			s, err := e.store.Write(*p)
			if err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}

			if p.FolderNameFormat != nil {
				warnUnknownTokens(cmd.ErrOrStderr(), *p.FolderNameFormat)
			}

			if jsonFlag {
				return printJSON(toJSONSettings(s))
			}
			fmt.Println("Settings saved.")
			return nil
		},
	}

	f := cmd.Flags()
	f.String("window-style", "", "window style (integrated or classic)")
	f.String("folder-path", "", "base directory for new folders")
	f.String("scan-path", "", "directory scanned for work folders")
	f.String("name-format", "", "folder name template")
	f.Bool("use-sub-folder", false, "create a sub folder inside new folders")
	f.String("sub-folder-name", "", "name of the sub folder")
	f.Bool("save-content", false, "save mail content into new folders")
	f.String("content-file-name", "", "file name stem for saved mail content")
	f.StringSlice("formats", nil, "save formats (txt, eml, pdf)")
	f.String("mail-server", "", "IMAP server host")
	f.Int("mail-port", 0, "IMAP server port")
	f.String("mail-username", "", "IMAP user name")
	f.Bool("mail-ssl", false, "connect with implicit TLS")
	f.Int("mail-limit", 0, "number of messages to list")
	f.Int("mail-days", 0, "only list messages from the last N days (0 for all)")
	return cmd
}

// patchFromFlags builds a patch from the flags the user actually set. It
// returns nil when none were.
func patchFromFlags(cmd *cobra.Command) (*settings.Patch, error) {
	f := cmd.Flags()
	var p settings.Patch
	changed := false

	str := func(name string, dst **string) error {
		if !f.Changed(name) {
			return nil
		}
		v, err := f.GetString(name)
		if err != nil {
			return err
		}
		*dst = &v
		changed = true
		return nil
	}
	boolean := func(name string, dst **bool) error {
		if !f.Changed(name) {
			return nil
		}
		v, err := f.GetBool(name)
		if err != nil {
			return err
		}
		*dst = &v
		changed = true
		return nil
	}
	integer := func(name string, dst **int) error {
		if !f.Changed(name) {
			return nil
		}
		v, err := f.GetInt(name)
		if err != nil {
			return err
		}
		*dst = &v
		changed = true
		return nil
	}

	var style *string
	steps := []error{
		str("window-style", &style),
		str("folder-path", &p.FolderPath),
		str("scan-path", &p.ScanPath),
		str("name-format", &p.FolderNameFormat),
		boolean("use-sub-folder", &p.UseSubFolder),
		str("sub-folder-name", &p.SubFolderName),
		boolean("save-content", &p.SaveMailContent),
		str("content-file-name", &p.MailContentFileName),
		str("mail-server", &p.MailServer),
		integer("mail-port", &p.MailPort),
		str("mail-username", &p.MailUsername),
		boolean("mail-ssl", &p.MailUseSSL),
		integer("mail-limit", &p.MailLimit),
		integer("mail-days", &p.MailDays),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}
	if style != nil {
		p.WindowStyle = settings.Ptr(domain.WindowStyle(*style))
	}
	if f.Changed("formats") {
		formats, err := f.GetStringSlice("formats")
		if err != nil {
			return nil, err
		}
		p.SaveFormats = append([]string{}, formats...)
		changed = true
	}

	if !changed {
		return nil, nil
	}
	return &p, nil
}

// warnUnknownTokens notes placeholders in format that will not be expanded.
func warnUnknownTokens(w io.Writer, format string) {
	unknown := naming.UnknownTokens(format)
	if len(unknown) == 0 {
		return
	}
	fmt.Fprintf(w, "Warning: unknown placeholders %s are kept as literal text (supported: {{YYYY}} {{MM}} {{DD}} {{subject}} {{from}}).\n",
		strings.Join(unknown, " "))
}

func newSettingsPasswordCmd() *cobra.Command {
	var clearFlag bool

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Store the mail password",
		Long: "Read the mail password from stdin and store it in the settings file.\n\n" +
			"The password is encrypted with a key kept in the OS keyring. When no keyring\n" +
			"is available it is stored base64-encoded only, which is NOT encryption:\n" +
			"anyone who can read the settings file can recover it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			if clearFlag {
				if _, err := e.store.Write(settings.Patch{MailPasswordEncrypted: settings.Ptr("")}); err != nil {
					return fmt.Errorf("failed to save settings: %w", err)
				}
				fmt.Println("Mail password cleared.")
				return nil
			}

			password, err := promptSecret(os.Stdin)
			if err != nil {
				return err
			}

			blob, err := e.vault.Seal(password)
			if err != nil {
				return fmt.Errorf("failed to seal password: %w", err)
			}
			if _, err := e.store.Write(settings.Patch{MailPasswordEncrypted: &blob}); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "password", Encrypted: settings.Ptr(credential.IsConfidential(blob))})
			}
			if !credential.IsConfidential(blob) {
				fmt.Fprintln(os.Stderr, "Warning: no keyring available; the password is stored base64-encoded, not encrypted.")
			}
			fmt.Println("Mail password saved.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearFlag, "clear", false, "remove the stored password")
	return cmd
}

// readSecret reads the first line of piped input without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is empty")
	}
	return line, nil
}

// promptSecret reads the password without echo on a terminal, or the
// first line of piped input otherwise.
func promptSecret(f *os.File) (string, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return readSecret(f)
	}
	fmt.Fprint(os.Stderr, "Mail password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("password is empty")
	}
	return string(b), nil
}
