package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/logging"
)

// maxParallelScans bounds concurrent root scans in CheckHash and Index.
const maxParallelScans = 4

// Backend performs archive operations on behalf of the orchestrator.
// gateway.Client satisfies it.
type Backend interface {
	Scan(ctx context.Context, path string, recursive bool) ([]domain.WorkFolder, error)
	Move(ctx context.Context, item domain.MoveItem) (domain.MoveResult, error)
	BatchMove(ctx context.Context, items []domain.MoveItem) (domain.BatchResult, error)
	UpdateWorkRecord(ctx context.Context, folderPath, department, content string) error
}

// ScanFunc lists the work folders under root.
type ScanFunc func(ctx context.Context, root string, recursive bool) ([]domain.WorkFolder, error)

// Orchestrator drives archive operations through a Backend.
type Orchestrator struct {
	backend Backend
	log     *logrus.Logger
}

func NewOrchestrator(backend Backend) *Orchestrator {
	return &Orchestrator{backend: backend, log: logging.Logger(logging.Archive)}
}

// Scan lists the work folders directly under root.
func (o *Orchestrator) Scan(ctx context.Context, root string) ([]domain.WorkFolder, error) {
	folders, err := o.backend.Scan(ctx, root, false)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return folders, nil
}

// ScanArchive lists the work folders of an archive root, including the
// <year>/<folder> level.
func (o *Orchestrator) ScanArchive(ctx context.Context, root string) ([]domain.WorkFolder, error) {
	folders, err := o.backend.Scan(ctx, root, true)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return folders, nil
}

// Move archives a single folder.
func (o *Orchestrator) Move(ctx context.Context, folderPath, archiveBase string) (domain.MoveResult, error) {
	item := domain.MoveItem{FolderPath: folderPath, ArchivePath: archiveBase}
	if err := validateItem(item); err != nil {
		return domain.MoveResult{Source: folderPath, Message: err.Error()}, err
	}

	res, err := o.backend.Move(ctx, item)
	if err != nil {
		aerr := &domain.ArchiveError{
			Kind:        kindOf(err),
			Source:      folderPath,
			Destination: Destination(folderPath, archiveBase),
			Reason:      "failed to archive " + folderPath,
			Err:         err,
		}
		return domain.MoveResult{Source: folderPath, Message: aerr.Error()}, aerr
	}
	return res, nil
}

// BatchMove archives items in one backend request. Invalid items are
// reported as failures without being sent. A transport failure marks every
// sent item failed; the returned error is reserved for that case.
func (o *Orchestrator) BatchMove(ctx context.Context, items []domain.MoveItem) (domain.BatchResult, error) {
	results := make([]*domain.MoveResult, len(items))
	var (
		send    []domain.MoveItem
		sentIdx []int
	)
	for i, item := range items {
		if err := validateItem(item); err != nil {
			results[i] = &domain.MoveResult{Source: item.FolderPath, Message: err.Error()}
			continue
		}
		send = append(send, item)
		sentIdx = append(sentIdx, i)
	}

	var sendErr error
	if len(send) > 0 {
		remote, err := o.backend.BatchMove(ctx, send)
		switch {
		case err != nil:
			sendErr = fmt.Errorf("failed to batch move: %w", err)
			o.log.WithError(err).WithField("items", len(send)).Warn("batch move request failed")
			for _, i := range sentIdx {
				results[i] = &domain.MoveResult{Source: items[i].FolderPath, Message: err.Error()}
			}
		default:
			for n, i := range sentIdx {
				if n < len(remote.Results) {
					r := remote.Results[n]
					results[i] = &r
					continue
				}
				results[i] = &domain.MoveResult{Source: items[i].FolderPath, Message: "no result returned"}
			}
		}
	}

	batch := domain.BatchResult{Results: []domain.MoveResult{}}
	for _, r := range results {
		batch.Add(*r)
	}
	return batch, sendErr
}

// UpdateWorkRecord rewrites a folder's department and content.
func (o *Orchestrator) UpdateWorkRecord(ctx context.Context, folderPath, department, content string) error {
	if strings.TrimSpace(folderPath) == "" {
		return domain.NewValidationError("folder path is required")
	}
	if err := o.backend.UpdateWorkRecord(ctx, folderPath, department, content); err != nil {
		return fmt.Errorf("failed to update work record: %w", err)
	}
	return nil
}

// CheckHash looks for folders carrying hash in the working root and every
// archive root.
func (o *Orchestrator) CheckHash(ctx context.Context, hash, scanPath string, archivePaths []string) (domain.CheckResult, error) {
	return CheckHash(ctx, o.backend.Scan, hash, scanPath, archivePaths)
}

// Index maps every known hash to its folder status.
func (o *Orchestrator) Index(ctx context.Context, scanPath string, archivePaths []string) (map[string]domain.FolderStatus, error) {
	return Index(ctx, o.backend.Scan, scanPath, archivePaths)
}

// CheckHash scans the working root and archive roots through scan and
// returns the folders whose hash matches. Working matches come first.
func CheckHash(ctx context.Context, scan ScanFunc, hash, scanPath string, archivePaths []string) (domain.CheckResult, error) {
	result := domain.CheckResult{Matches: []domain.HashMatch{}}
	if hash == "" {
		return result, nil
	}
	located, err := collect(ctx, scan, scanPath, archivePaths)
	if err != nil {
		return result, err
	}
	for _, set := range located {
		for _, f := range set.folders {
			if f.Hash == hash {
				result.Matches = append(result.Matches, domain.HashMatch{Name: f.Name, Path: f.Path, Status: set.status})
			}
		}
	}
	result.Found = len(result.Matches) > 0
	return result, nil
}

// Index builds a hash to status map. Archived wins over working.
func Index(ctx context.Context, scan ScanFunc, scanPath string, archivePaths []string) (map[string]domain.FolderStatus, error) {
	located, err := collect(ctx, scan, scanPath, archivePaths)
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.FolderStatus)
	for _, set := range located {
		for _, f := range set.folders {
			if f.Hash == "" {
				continue
			}
			if index[f.Hash] == domain.StatusArchived {
				continue
			}
			index[f.Hash] = set.status
		}
	}
	return index, nil
}

type folderSet struct {
	status  domain.FolderStatus
	folders []domain.WorkFolder
}

// collect scans all roots concurrently. The working root comes first in the
// result; archive roots follow in the given order. A failing working root
// is an error, a failing archive root is skipped.
func collect(ctx context.Context, scan ScanFunc, scanPath string, archivePaths []string) ([]folderSet, error) {
	log := logging.Logger(logging.Archive)
	sets := make([]folderSet, 1+len(archivePaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelScans)

	sets[0].status = domain.StatusWorking
	if scanPath != "" {
		g.Go(func() error {
			folders, err := scan(gctx, scanPath, false)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", scanPath, err)
			}
			sets[0].folders = folders
			return nil
		})
	}
	for i, root := range archivePaths {
		idx := i + 1
		sets[idx].status = domain.StatusArchived
		if root == "" {
			continue
		}
		g.Go(func() error {
			folders, err := scan(gctx, root, true)
			if err != nil {
				log.WithError(err).WithField("root", root).Debug("ignoring unreadable archive root")
				return nil
			}
			sets[idx].folders = folders
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

func validateItem(item domain.MoveItem) error {
	err := validation.ValidateStruct(&item,
		validation.Field(&item.FolderPath, validation.Required.Error("folder path is required")),
		validation.Field(&item.ArchivePath, validation.Required.Error("archive path is required")),
	)
	if err != nil {
		return domain.NewValidationError("invalid archive item: %v", err)
	}
	return nil
}

// kindOf classifies a backend failure by the status it carries.
func kindOf(err error) domain.ArchiveKind {
	var herr domain.HTTPError
	if errors.As(err, &herr) {
		switch herr.StatusCode() {
		case http.StatusConflict:
			return domain.ArchiveCollision
		case http.StatusNotFound:
			return domain.ArchiveMissingSource
		}
	}
	return domain.ArchiveIO
}
