// Package settings persists the user settings record and the department
// registry embedded in it.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/naming"
)

// Defaults returns the compiled-in settings record.
func Defaults() domain.Settings {
	return domain.Settings{
		WindowStyle:         domain.WindowIntegrated,
		FolderPath:          "~/Desktop",
		ScanPath:            "~/Desktop",
		FolderNameFormat:    naming.DefaultFormat,
		UseSubFolder:        false,
		SubFolderName:       "邮件",
		SaveMailContent:     true,
		MailContentFileName: "邮件正文",
		SaveFormats:         []string{domain.FormatTXT},
		MailPort:            993,
		MailUseSSL:          true,
		MailLimit:           50,
		MailDays:            7,
		Departments:         []domain.Department{},
	}
}

// Store reads and writes the settings file. Reads always return the
// defaults merged with whatever was persisted. Writers within one process
// are serialized; across processes the last write wins.
type Store struct {
	path string
	mu   sync.Mutex
	log  *logrus.Logger
}

// NewStore returns a Store backed by the JSON file at path.
func NewStore(path string) *Store {
	return &Store{path: path, log: logging.Logger(logging.Settings)}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns a snapshot of the current settings. It never fails: an
// unreadable or corrupt file yields the defaults.
func (s *Store) Read() domain.Settings {
	st, err := s.load()
	if err != nil {
		s.log.WithError(err).Warn("falling back to default settings")
		return Defaults()
	}
	return st
}

func (s *Store) load() (domain.Settings, error) {
	st := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, &domain.StorageError{Op: "read", Path: s.path, Err: err}
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return Defaults(), &domain.StorageError{Op: "parse", Path: s.path, Err: err}
	}
	if st.SaveFormats == nil {
		st.SaveFormats = Defaults().SaveFormats
	}
	return st.Clone(), nil
}

// Write validates p, applies it to the latest persisted record and saves
// the result.
func (s *Store) Write(p Patch) (domain.Settings, error) {
	return s.Update(func(domain.Settings) (*Patch, error) {
		return &p, nil
	})
}

// Update runs a read-modify-write cycle under the store lock. fn receives
// the current record and returns the patch to apply, or nil to skip the
// write.
func (s *Store) Update(fn func(cur domain.Settings) (*Patch, error)) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Read()
	p, err := fn(cur.Clone())
	if err != nil {
		return cur, err
	}
	if p == nil {
		return cur, nil
	}
	if err := p.Validate(); err != nil {
		return cur, err
	}

	next := p.Apply(cur)
	if err := s.persist(next); err != nil {
		return cur, err
	}
	return next.Clone(), nil
}

// persist writes st to a temp file next to the target and renames it into
// place so readers never observe a partial file.
func (s *Store) persist(st domain.Settings) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
