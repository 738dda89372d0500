package sqlite

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/store"
)

var _ store.History = (*DB)(nil)

const eventColumns = `id, kind, name, path, destination, hash, department, source, created_at`

// RecordCreated stores a folder creation.
func (s *DB) RecordCreated(ctx context.Context, ev store.FolderEvent) error {
	ev.Kind = store.EventCreated
	return s.insert(ctx, ev)
}

// RecordArchived stores an archive move.
func (s *DB) RecordArchived(ctx context.Context, ev store.FolderEvent) error {
	ev.Kind = store.EventArchived
	return s.insert(ctx, ev)
}

func (s *DB) insert(ctx context.Context, ev store.FolderEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	ev.CreatedAt = ev.CreatedAt.UTC()

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO folder_events (kind, name, path, destination, hash, department, source, created_at)
		 VALUES (:kind, :name, :path, :destination, :hash, :department, :source, :created_at)`,
		ev,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", ev.Kind, err)
	}
	s.log.WithFields(logrus.Fields{"kind": ev.Kind, "path": ev.Path}).Debug("recorded folder event")
	return nil
}

// ListEvents returns the newest events first.
func (s *DB) ListEvents(ctx context.Context, kind store.EventKind, limit int) ([]store.FolderEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM folder_events`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	events := []store.FolderEvent{}
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list folder events: %w", err)
	}
	return events, nil
}

// FindByHash returns every event for folders carrying hash, oldest first.
func (s *DB) FindByHash(ctx context.Context, hash string) ([]store.FolderEvent, error) {
	events := []store.FolderEvent{}
	err := s.db.SelectContext(ctx, &events,
		`SELECT `+eventColumns+` FROM folder_events WHERE hash = ? ORDER BY created_at, id`, hash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find events for hash %s: %w", hash, err)
	}
	return events, nil
}
