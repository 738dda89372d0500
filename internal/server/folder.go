package server

import (
	"net/http"
	"path/filepath"

	"github.com/lu-zhengda/knot/internal/archive"
	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/folder"
	"github.com/lu-zhengda/knot/internal/store"
)

type folderResponse struct {
	Success bool `json:"success"`
	*domain.FolderResult
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	s.createFolder(w, r, false)
}

func (s *Server) handleCreateFolderWithAttachments(w http.ResponseWriter, r *http.Request) {
	s.createFolder(w, r, true)
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request, withAttachments bool) {
	var req domain.FolderRequest
	if err := ParseJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	var saver folder.AttachmentSaver
	if withAttachments && s.mail != nil && s.mail.Connected() {
		saver = s.mail
	}

	res, err := s.folders.Create(r.Context(), req, saver)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if withAttachments && res.AttachmentsDownloaded == nil {
		res.AttachmentsDownloaded = []string{}
	}

	source := req.Source
	if source == "" {
		source = domain.SourceMail
	}
	s.recordCreated(r.Context(), store.FolderEvent{
		Name:       filepath.Base(res.Path),
		Path:       res.Path,
		Hash:       req.Hash,
		Department: req.Department,
		Source:     source,
	})

	RespondJSON(w, http.StatusOK, folderResponse{Success: true, FolderResult: res})
}

func (s *Server) handleCheckHash(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckHashRequest
	if err := ParseJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if req.Hash == "" {
		s.handleError(w, r, domain.NewValidationError("hash is required"))
		return
	}

	res, err := archive.CheckHash(r.Context(), s.local.ScanContext, req.Hash, req.ScanPath, req.ArchivePaths)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"found":   res.Found,
		"matches": res.Matches,
	})
}
