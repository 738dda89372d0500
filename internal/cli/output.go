package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/lu-zhengda/knot/internal/credential"
	"github.com/lu-zhengda/knot/internal/domain"
)

// printJSON encodes v as indented JSON to stdout.
func printJSON(v any) error {
	return fprintJSON(os.Stdout, v)
}

// fprintJSON encodes v as indented JSON to w.
func fprintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// clip shortens s to max runes, marking the cut with "...".
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// orDash keeps empty table cells visible.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func statusLabel(s domain.FolderStatus) string {
	switch s {
	case domain.StatusWorking:
		return "working"
	case domain.StatusArchived:
		return "archived"
	default:
		return "new"
	}
}

// writeSettings prints s as aligned key/value lines.
func writeSettings(w io.Writer, path string, s domain.Settings) error {
	password := "(not set)"
	if s.MailPasswordEncrypted != nil {
		password = "(stored, encrypted)"
		if !credential.IsConfidential(*s.MailPasswordEncrypted) {
			password = "(stored, base64 only)"
		}
	}
	defaultDept := "-"
	if s.DefaultDepartmentID != nil {
		defaultDept = *s.DefaultDepartmentID
		for _, d := range s.Departments {
			if d.ID == *s.DefaultDepartmentID {
				defaultDept = d.Name
			}
		}
	}

	tw := newTable(w)
	rows := [][2]string{
		{"file", path},
		{"window style", string(s.WindowStyle)},
		{"folder path", orDash(s.FolderPath)},
		{"scan path", orDash(s.ScanPath)},
		{"name format", s.FolderNameFormat},
		{"use sub folder", fmt.Sprint(s.UseSubFolder)},
		{"sub folder name", orDash(s.SubFolderName)},
		{"save content", fmt.Sprint(s.SaveMailContent)},
		{"content file name", orDash(s.MailContentFileName)},
		{"save formats", orDash(strings.Join(s.SaveFormats, ","))},
		{"mail server", orDash(s.MailServer)},
		{"mail port", fmt.Sprint(s.MailPort)},
		{"mail username", orDash(s.MailUsername)},
		{"mail password", password},
		{"mail ssl", fmt.Sprint(s.MailUseSSL)},
		{"mail limit", fmt.Sprint(s.MailLimit)},
		{"mail days", fmt.Sprint(s.MailDays)},
		{"departments", fmt.Sprint(len(s.Departments))},
		{"default department", defaultDept},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}
