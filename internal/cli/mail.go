package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/domain"
)

func newMailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Connect to the mail server and browse messages",
	}
	cmd.AddCommand(newMailConnectCmd())
	cmd.AddCommand(newMailListCmd())
	cmd.AddCommand(newMailShowCmd())
	return cmd
}

func newMailConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Log the backend into the configured mail server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			conn, err := mailConnection(e)
			if err != nil {
				return err
			}

			msg, err := e.gateway.Connect(cmd.Context(), conn)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "connect", Message: msg})
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// mailConnection assembles login parameters from settings and the vault.
func mailConnection(e *env) (domain.MailConnection, error) {
	s := e.store.Read()
	if s.MailServer == "" || s.MailUsername == "" {
		return domain.MailConnection{}, fmt.Errorf("mail server not configured; run 'knot settings set --mail-server ... --mail-username ...'")
	}
	if s.MailPasswordEncrypted == nil {
		return domain.MailConnection{}, fmt.Errorf("no mail password stored; run 'knot settings password'")
	}
	password, err := e.vault.Open(*s.MailPasswordEncrypted)
	if err != nil {
		return domain.MailConnection{}, fmt.Errorf("failed to read mail password: %w", err)
	}
	return domain.MailConnection{
		Server:   s.MailServer,
		Port:     s.MailPort,
		Username: s.MailUsername,
		Password: password,
		UseSSL:   s.MailUseSSL,
	}, nil
}

func newMailListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent mail",
		Long:  "List recent mail with the status of any folder already generated from it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			entries, err := e.workflow.ListMail(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(entries)
			}

			if len(entries) == 0 {
				fmt.Println("No messages found.")
				return nil
			}

			w := newTable(os.Stdout)
			fmt.Fprintln(w, "STATUS\tFROM\tSUBJECT\tDATE\tATT\tID")
			for _, m := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					statusLabel(m.Status),
					clip(m.From, 30),
					clip(m.Subject, 50),
					m.Date,
					m.AttachmentCount,
					m.ID,
				)
			}
			return w.Flush()
		},
	}
}

func newMailShowCmd() *cobra.Command {
	var rawFlag bool

	cmd := &cobra.Command{
		Use:   "show <mail-id>",
		Short: "Show a message body and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			detail, err := e.gateway.MailDetail(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get mail %s: %w", args[0], err)
			}
			if !rawFlag {
				detail.RawContent = ""
			}

			if jsonFlag {
				return printJSON(detail)
			}

			if rawFlag {
				fmt.Print(detail.RawContent)
				return nil
			}
			fmt.Printf("Mail ID: %s\n", args[0])
			fmt.Printf("Attachments: %d\n", len(detail.Attachments))
			for _, a := range detail.Attachments {
				fmt.Printf("  %s (%s, %d bytes)\n", a.Filename, orDash(a.ContentType), a.Size)
			}
			fmt.Println(strings.Repeat("─", 60))
			fmt.Println(detail.Body)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rawFlag, "raw", false, "print the raw RFC 822 source instead")
	return cmd
}
