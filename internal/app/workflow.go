// Package app composes naming, fingerprinting, settings and the backend
// gateway into the user-facing folder workflows.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/identity"
	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/naming"
)

// Gateway is the subset of the backend client the workflows need.
type Gateway interface {
	ListMail(ctx context.Context, limit, days int) ([]domain.MailItem, error)
	MailDetail(ctx context.Context, id string) (*domain.MailDetail, error)
	CreateFolder(ctx context.Context, req domain.FolderRequest) (*domain.FolderResult, error)
	CreateFolderWithAttachments(ctx context.Context, req domain.FolderRequest) (*domain.FolderResult, error)
}

// SettingsReader returns the current settings snapshot.
type SettingsReader interface {
	Read() domain.Settings
}

// Departments resolves department references.
type Departments interface {
	Resolve(ref string) *domain.Department
	GetDefault() *domain.Department
}

// FolderFinder locates existing folders by fingerprint.
// archive.Orchestrator satisfies it.
type FolderFinder interface {
	CheckHash(ctx context.Context, hash, scanPath string, archivePaths []string) (domain.CheckResult, error)
	Index(ctx context.Context, scanPath string, archivePaths []string) (map[string]domain.FolderStatus, error)
}

// MailEntry is a mail list row annotated with its folder status.
type MailEntry struct {
	domain.MailItem
	Hash   string              `json:"hash"`
	Status domain.FolderStatus `json:"status,omitempty"`
}

// DuplicateError is returned when a mail already produced a folder.
type DuplicateError struct {
	Hash    string
	Matches []domain.HashMatch
}

func (e *DuplicateError) Error() string {
	if len(e.Matches) == 0 {
		return domain.ErrAlreadyGenerated.Error()
	}
	m := e.Matches[0]
	return fmt.Sprintf("%s: %s (%s)", domain.ErrAlreadyGenerated, m.Path, m.Status)
}

func (e *DuplicateError) Is(target error) bool { return target == domain.ErrAlreadyGenerated }

// Workflow implements mail listing and folder creation.
type Workflow struct {
	gateway  Gateway
	settings SettingsReader
	depts    Departments
	finder   FolderFinder
	now      func() time.Time
	log      *logrus.Logger
}

func NewWorkflow(gw Gateway, settings SettingsReader, depts Departments, finder FolderFinder) *Workflow {
	return &Workflow{
		gateway:  gw,
		settings: settings,
		depts:    depts,
		finder:   finder,
		now:      time.Now,
		log:      logging.Logger(logging.CLI),
	}
}

// ListMail lists recent mail using the configured limit and window, and
// marks the messages that already have a working or archived folder.
func (w *Workflow) ListMail(ctx context.Context) ([]MailEntry, error) {
	s := w.settings.Read()
	items, err := w.gateway.ListMail(ctx, s.MailLimit, s.MailDays)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail: %w", err)
	}

	index, err := w.finder.Index(ctx, s.WorkRoot(), s.ArchivePaths())
	if err != nil {
		w.log.WithError(err).Warn("failed to index existing folders")
		index = nil
	}

	entries := make([]MailEntry, 0, len(items))
	for _, it := range items {
		hash := identity.MailHash(it.Subject, it.Date, it.From)
		entries = append(entries, MailEntry{MailItem: it, Hash: hash, Status: index[hash]})
	}
	return entries, nil
}

// CreateFromMail creates a work folder for the mail with the given id.
// Unless force is set, a mail whose fingerprint already has a folder
// returns a *DuplicateError.
func (w *Workflow) CreateFromMail(ctx context.Context, mailID, department string, force bool) (*domain.FolderResult, error) {
	s := w.settings.Read()

	items, err := w.gateway.ListMail(ctx, s.MailLimit, s.MailDays)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail: %w", err)
	}
	item, ok := findMail(items, mailID)
	if !ok {
		return nil, fmt.Errorf("mail %s: %w", mailID, domain.ErrNotFound)
	}

	hash := identity.MailHash(item.Subject, item.Date, item.From)
	if !force {
		res, err := w.finder.CheckHash(ctx, hash, s.WorkRoot(), s.ArchivePaths())
		switch {
		case err != nil:
			w.log.WithError(err).Warn("duplicate check failed, continuing")
		case res.Found:
			return nil, &DuplicateError{Hash: hash, Matches: res.Matches}
		}
	}

	detail, err := w.gateway.MailDetail(ctx, mailID)
	if err != nil {
		w.log.WithError(err).WithField("mail_id", mailID).Warn("failed to load mail detail")
		detail = &domain.MailDetail{}
	}

	formats := s.SaveFormats
	if len(formats) == 0 {
		formats = []string{domain.FormatTXT}
	}
	req := domain.FolderRequest{
		MailID:              item.ID,
		Subject:             item.Subject,
		Date:                item.Date,
		FromAddr:            item.From,
		Body:                detail.Body,
		BasePath:            s.FolderPath,
		FolderName:          naming.FormatFolderName(s.FolderNameFormat, naming.Message{Subject: item.Subject, Date: item.Date, From: item.From}),
		UseSubFolder:        s.UseSubFolder,
		SubFolderName:       s.SubFolderName,
		SaveMailContent:     s.SaveMailContent,
		MailContentFileName: s.MailContentFileName,
		SaveFormats:         formats,
		RawContent:          detail.RawContent,
		Attachments:         detail.Attachments,
		Department:          w.departmentName(department),
		Source:              domain.SourceMail,
		Hash:                hash,
	}

	res, err := w.gateway.CreateFolderWithAttachments(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return res, nil
}

// QuickCreate creates a folder named after content and day without a mail.
func (w *Workflow) QuickCreate(ctx context.Context, content string, day time.Time, department string) (*domain.FolderResult, error) {
	if day.IsZero() {
		day = w.now()
	}
	name := naming.QuickFolderName(content, day)
	if name == "" {
		return nil, domain.NewValidationError("content is required")
	}

	s := w.settings.Read()
	req := domain.FolderRequest{
		Subject:     strings.TrimSpace(content),
		Date:        day.Format(time.RFC3339),
		BasePath:    s.FolderPath,
		FolderName:  name,
		SaveFormats: []string{},
		Attachments: []domain.Attachment{},
		Department:  w.departmentName(department),
		Source:      domain.SourceQuick,
		Hash:        identity.FolderHash(name),
	}
	res, err := w.gateway.CreateFolder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return res, nil
}

// departmentName resolves ref by id or name, then the registry default.
// An unknown explicit reference is used verbatim.
func (w *Workflow) departmentName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		if d := w.depts.Resolve(ref); d != nil {
			return d.Name
		}
		return ref
	}
	if d := w.depts.GetDefault(); d != nil {
		return d.Name
	}
	return ""
}

func findMail(items []domain.MailItem, id string) (domain.MailItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.MailItem{}, false
}
