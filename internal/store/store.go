package store

import (
	"context"
	"time"
)

// EventKind distinguishes folder history entries.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventArchived EventKind = "archived"
)

// FolderEvent is one entry of the folder history catalog.
type FolderEvent struct {
	ID          int64     `db:"id" json:"id"`
	Kind        EventKind `db:"kind" json:"kind"`
	Name        string    `db:"name" json:"name"`
	Path        string    `db:"path" json:"path"`
	Destination string    `db:"destination" json:"destination,omitempty"`
	Hash        string    `db:"hash" json:"hash,omitempty"`
	Department  string    `db:"department" json:"department,omitempty"`
	Source      string    `db:"source" json:"source,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// History records created and archived work folders.
type History interface {
	RecordCreated(ctx context.Context, ev FolderEvent) error
	RecordArchived(ctx context.Context, ev FolderEvent) error

	// ListEvents returns the newest events first. An empty kind matches
	// every kind; a non-positive limit returns everything.
	ListEvents(ctx context.Context, kind EventKind, limit int) ([]FolderEvent, error)
	FindByHash(ctx context.Context, hash string) ([]FolderEvent, error)

	Close() error
}
