package cli

import (
	"time"

	"github.com/lu-zhengda/knot/internal/archive"
	"github.com/lu-zhengda/knot/internal/credential"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/store"
)

// ---------------------------------------------------------------------------
// Settings JSON type (settings show/set)
// ---------------------------------------------------------------------------

// jsonSettings never carries the password blob, only whether one is stored.
type jsonSettings struct {
	domain.Settings
	MailPasswordEncrypted *string `json:"mailPasswordEncrypted,omitempty"`
	MailPasswordStored    bool    `json:"mailPasswordStored"`
	MailPasswordSealed    bool    `json:"mailPasswordSealed"`
}

func toJSONSettings(s domain.Settings) jsonSettings {
	out := jsonSettings{Settings: s.Clone()}
	if s.MailPasswordEncrypted != nil {
		out.MailPasswordStored = true
		out.MailPasswordSealed = credential.IsConfidential(*s.MailPasswordEncrypted)
	}
	return out
}

// ---------------------------------------------------------------------------
// History JSON types (history)
// ---------------------------------------------------------------------------

type jsonEvent struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Destination string `json:"destination,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Department  string `json:"department,omitempty"`
	Source      string `json:"source,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toJSONEvents(events []store.FolderEvent) []jsonEvent {
	out := make([]jsonEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, jsonEvent{
			ID:          ev.ID,
			Kind:        string(ev.Kind),
			Name:        ev.Name,
			Path:        ev.Path,
			Destination: ev.Destination,
			Hash:        ev.Hash,
			Department:  ev.Department,
			Source:      ev.Source,
			CreatedAt:   ev.CreatedAt.Local().Format(time.RFC3339),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Auto-archive JSON type (archive auto)
// ---------------------------------------------------------------------------

type jsonAutoArchive struct {
	DryRun  bool                `json:"dry_run"`
	Planned []domain.MoveItem   `json:"planned"`
	Skipped []archive.Skipped   `json:"skipped"`
	Result  *domain.BatchResult `json:"result,omitempty"`
}

// ---------------------------------------------------------------------------
// Action JSON type (mutating commands)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK        bool   `json:"ok"`
	Action    string `json:"action"`
	ID        string `json:"id,omitempty"`
	Path      string `json:"path,omitempty"`
	Message   string `json:"message,omitempty"`
	Encrypted *bool  `json:"encrypted,omitempty"`
}
