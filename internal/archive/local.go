// Package archive discovers work folders and relocates them into
// department and year scoped archive directories.
package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/config"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/workrecord"
)

// OtherYear is the bucket for folders whose names don't start with a year.
const OtherYear = "其他"

// ModifiedLayout formats WorkFolder.Modified.
const ModifiedLayout = "2006-01-02T15:04:05"

// Local performs archive operations directly on the filesystem.
type Local struct {
	log *logrus.Logger
}

func NewLocal() *Local {
	return &Local{log: logging.Logger(logging.Archive)}
}

// YearBucket returns the first four characters of name when they are all
// digits, and OtherYear otherwise.
func YearBucket(name string) string {
	if len(name) < 4 {
		return OtherYear
	}
	for i := 0; i < 4; i++ {
		if name[i] < '0' || name[i] > '9' {
			return OtherYear
		}
	}
	return name[:4]
}

// Destination computes archiveBase/<year>/<folder name>.
func Destination(folderPath, archiveBase string) string {
	name := filepath.Base(filepath.Clean(folderPath))
	return filepath.Join(config.ExpandHome(archiveBase), YearBucket(name), name)
}

// Scan lists the subdirectories of root carrying a work record. With
// recursive set, directories without a record are searched one level
// deeper, which covers the <year>/<folder> archive layout. Scan never
// modifies the filesystem.
func (l *Local) Scan(root string, recursive bool) ([]domain.WorkFolder, error) {
	root = config.ExpandHome(root)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}

	folders := []domain.WorkFolder{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if workrecord.Exists(path) {
			if f, ok := l.describe(path, entry); ok {
				folders = append(folders, f)
			}
			continue
		}
		if !recursive {
			continue
		}
		children, err := os.ReadDir(path)
		if err != nil {
			l.log.WithError(err).WithField("path", path).Debug("skipping unreadable directory")
			continue
		}
		for _, child := range children {
			childPath := filepath.Join(path, child.Name())
			if child.IsDir() && workrecord.Exists(childPath) {
				if f, ok := l.describe(childPath, child); ok {
					folders = append(folders, f)
				}
			}
		}
	}

	sort.Slice(folders, func(i, j int) bool {
		if folders[i].Name != folders[j].Name {
			return folders[i].Name < folders[j].Name
		}
		return folders[i].Path < folders[j].Path
	})
	return folders, nil
}

// ScanContext adapts Scan to the ScanFunc signature.
func (l *Local) ScanContext(ctx context.Context, root string, recursive bool) ([]domain.WorkFolder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Scan(root, recursive)
}

func (l *Local) describe(path string, entry fs.DirEntry) (domain.WorkFolder, bool) {
	rec, err := workrecord.Read(path)
	if err != nil {
		l.log.WithError(err).WithField("path", path).Debug("skipping folder with unreadable work record")
		return domain.WorkFolder{}, false
	}

	f := domain.WorkFolder{
		Name:          entry.Name(),
		Path:          path,
		HasWorkRecord: true,
		Department:    rec.Department,
		CreateTime:    rec.CreateTime,
		Source:        rec.Source,
		Content:       rec.Content,
		Hash:          rec.Hash,
	}
	if fi, err := entry.Info(); err == nil {
		f.Modified = fi.ModTime().Format(ModifiedLayout)
	}
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			f.FileCount++
		}
		return nil
	})
	return f, true
}

// Move relocates folderPath to Destination(folderPath, archiveBase).
func (l *Local) Move(folderPath, archiveBase string) (string, error) {
	dest := Destination(folderPath, archiveBase)

	fi, err := os.Stat(folderPath)
	if err != nil || !fi.IsDir() {
		return "", &domain.ArchiveError{
			Kind:        domain.ArchiveMissingSource,
			Source:      folderPath,
			Destination: dest,
			Reason:      "源文件夹不存在: " + folderPath,
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &domain.ArchiveError{
			Source:      folderPath,
			Destination: dest,
			Reason:      "无法创建归档目录",
			Err:         err,
		}
	}
	if _, err := os.Lstat(dest); err == nil {
		return "", &domain.ArchiveError{
			Kind:        domain.ArchiveCollision,
			Source:      folderPath,
			Destination: dest,
			Reason:      "目标路径已存在: " + dest,
		}
	}
	if err := os.Rename(folderPath, dest); err != nil {
		return "", &domain.ArchiveError{
			Source:      folderPath,
			Destination: dest,
			Reason:      "移动失败",
			Err:         err,
		}
	}

	l.log.WithFields(logrus.Fields{"source": folderPath, "destination": dest}).Info("archived folder")
	return dest, nil
}

// BatchMove moves every item independently. A failure never stops the
// remaining items.
func (l *Local) BatchMove(items []domain.MoveItem) domain.BatchResult {
	result := domain.BatchResult{Results: []domain.MoveResult{}}
	for _, item := range items {
		dest, err := l.Move(item.FolderPath, item.ArchivePath)
		if err != nil {
			result.Add(domain.MoveResult{Source: item.FolderPath, Success: false, Message: err.Error()})
			continue
		}
		result.Add(domain.MoveResult{Source: item.FolderPath, Destination: dest, Success: true, Message: "归档成功"})
	}
	return result
}

// UpdateWorkRecord rewrites the department and content of a folder's work
// record. Empty arguments leave the field unchanged.
func (l *Local) UpdateWorkRecord(folderPath, department, content string) error {
	if _, err := workrecord.Update(folderPath, department, content); err != nil {
		return err
	}
	return nil
}
