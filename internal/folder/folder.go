// Package folder materializes work folders on disk.
package folder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/knot/internal/config"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/workrecord"
)

// DefaultContentFileName is the stem of saved mail content files.
const DefaultContentFileName = "邮件正文"

const separator = "=================================================="

// AttachmentSaver downloads the attachments of a mail into a directory.
// mailbox.Session satisfies it.
type AttachmentSaver interface {
	SaveAttachments(ctx context.Context, mailID, dir string) ([]string, error)
}

// Materializer creates work folders.
type Materializer struct {
	now  func() time.Time
	home func() (string, error)
	log  *logrus.Logger
}

func NewMaterializer() *Materializer {
	return &Materializer{
		now:  time.Now,
		home: os.UserHomeDir,
		log:  logging.Logger(logging.Folder),
	}
}

var nameReplacer = strings.NewReplacer("/", "_", `\`, "_")

func cleanName(name string) string {
	name = strings.TrimSpace(nameReplacer.Replace(name))
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// ResolveBase maps basePath to a directory without touching the
// filesystem beyond a stat. An absolute path (after ~ expansion) is used
// as is; anything else falls back to the desktop.
func (m *Materializer) ResolveBase(basePath string) (string, error) {
	if basePath != "" {
		if p := config.ExpandHome(basePath); filepath.IsAbs(p) {
			return p, nil
		}
	}
	home, err := m.home()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	desktop := filepath.Join(home, "Desktop")
	if _, err := os.Stat(desktop); os.IsNotExist(err) {
		desktop = filepath.Join(home, "桌面")
	}
	return desktop, nil
}

// BaseDir resolves the directory new folders are created in and creates
// an explicitly configured one when missing.
func (m *Materializer) BaseDir(basePath string) (string, error) {
	p, err := m.ResolveBase(basePath)
	if err != nil {
		return "", err
	}
	if basePath != "" && filepath.IsAbs(config.ExpandHome(basePath)) {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return "", fmt.Errorf("failed to create base folder: %w", err)
		}
	}
	return p, nil
}

// Create builds the folder described by req. When saver is non-nil the
// mail's attachments are saved into the content directory; a failed
// download is logged and leaves the folder in place.
func (m *Materializer) Create(ctx context.Context, req domain.FolderRequest, saver AttachmentSaver) (*domain.FolderResult, error) {
	base, err := m.BaseDir(req.BasePath)
	if err != nil {
		return nil, err
	}

	name := cleanName(req.FolderName)
	if name == "" {
		name = "Folder_" + strconv.FormatInt(m.now().Unix(), 10)
	}
	folderPath := filepath.Join(base, name)
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	contentPath := folderPath
	if sub := cleanName(req.SubFolderName); req.UseSubFolder && sub != "" {
		contentPath = filepath.Join(folderPath, sub)
		if err := os.MkdirAll(contentPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sub folder: %w", err)
		}
	}

	res := &domain.FolderResult{
		Path:        folderPath,
		ContentPath: contentPath,
		MailFiles:   []string{},
	}

	if req.SaveMailContent {
		files, err := writeContent(contentPath, req)
		if err != nil {
			return nil, err
		}
		res.MailFiles = files
	}

	var downloaded []string
	if saver != nil && req.MailID != "" {
		downloaded, err = saver.SaveAttachments(ctx, req.MailID, contentPath)
		if err != nil {
			m.log.WithError(err).WithField("mail_id", req.MailID).Warn("failed to download attachments")
		}
		if downloaded == nil {
			downloaded = []string{}
		}
		res.AttachmentsDownloaded = downloaded
	}

	rec := workrecord.New(req.Department, req.Source, req.Hash, m.now())
	recPath, err := workrecord.Write(folderPath, rec)
	if err != nil {
		return nil, err
	}
	res.WorkRecord = recPath
	res.Message = fmt.Sprintf("文件夹已创建，已保存 %d 个附件", len(downloaded))

	m.log.WithFields(logrus.Fields{"path": folderPath, "files": len(res.MailFiles), "attachments": len(downloaded)}).Info("created work folder")
	return res, nil
}

// writeContent saves the mail in each requested format. pdf is rendered by
// the client and is skipped here.
func writeContent(dir string, req domain.FolderRequest) ([]string, error) {
	stem := cleanName(req.MailContentFileName)
	if stem == "" {
		stem = DefaultContentFileName
	}

	files := []string{}
	for _, format := range req.SaveFormats {
		var data []byte
		switch format {
		case domain.FormatTXT:
			if req.Body == "" {
				continue
			}
			data = []byte(renderText(req))
		case domain.FormatEML:
			if req.RawContent == "" {
				continue
			}
			data = []byte(req.RawContent)
		default:
			continue
		}
		path := filepath.Join(dir, stem+"."+format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
		files = append(files, path)
	}
	return files, nil
}

func renderText(req domain.FolderRequest) string {
	return fmt.Sprintf("主题：%s\n发件人：%s\n日期：%s\n\n%s\n\n%s\n", req.Subject, req.FromAddr, req.Date, separator, req.Body)
}
