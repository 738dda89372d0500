package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/store"
	"github.com/lu-zhengda/knot/internal/workrecord"
)

// DefaultScanPath is scanned when the request names no directory.
const DefaultScanPath = "~/Desktop"

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scanPath := q.Get("scan_path")
	if scanPath == "" {
		scanPath = DefaultScanPath
	}
	recursive, _ := strconv.ParseBool(q.Get("recursive"))

	root, err := s.folders.ResolveBase(scanPath)
	var folders []domain.WorkFolder
	if err == nil {
		folders, err = s.local.Scan(root, recursive)
	}
	if err != nil {
		RespondError(w, http.StatusBadRequest, fmt.Sprintf("无法读取目录: %v", err))
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"scan_path": root,
		"count":     len(folders),
		"folders":   folders,
	})
}

type moveResponse struct {
	Success     bool   `json:"success"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req domain.MoveItem
	if err := ParseJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if req.FolderPath == "" || req.ArchivePath == "" {
		s.handleError(w, r, domain.NewValidationError("folder_path and archive_path are required"))
		return
	}

	dest, err := s.local.Move(req.FolderPath, req.ArchivePath)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.archived(r, req.FolderPath, dest)

	RespondJSON(w, http.StatusOK, moveResponse{
		Success:     true,
		Source:      req.FolderPath,
		Destination: dest,
		Message:     "已归档到: " + dest,
	})
}

type batchMoveRequest struct {
	Items []domain.MoveItem `json:"items"`
}

type batchMoveResponse struct {
	Success bool `json:"success"`
	domain.BatchResult
}

func (s *Server) handleBatchMove(w http.ResponseWriter, r *http.Request) {
	var req batchMoveRequest
	if err := ParseJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	res := s.local.BatchMove(req.Items)
	for _, item := range res.Results {
		if item.Success {
			s.archived(r, item.Source, item.Destination)
		}
	}
	RespondJSON(w, http.StatusOK, batchMoveResponse{Success: true, BatchResult: res})
}

// archived records a completed move, reading the moved work record for its
// fingerprint and department.
func (s *Server) archived(r *http.Request, source, dest string) {
	ev := store.FolderEvent{Name: filepath.Base(dest), Path: source, Destination: dest}
	if rec, err := workrecord.Read(dest); err == nil {
		ev.Hash = rec.Hash
		ev.Department = rec.Department
		ev.Source = rec.Source
	}
	s.recordArchived(r.Context(), ev)
}

func (s *Server) handleUpdateWorkRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.WorkRecordUpdate
	if err := ParseJSON(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if req.FolderPath == "" {
		s.handleError(w, r, domain.NewValidationError("folder_path is required"))
		return
	}
	if !workrecord.Exists(req.FolderPath) {
		RespondError(w, http.StatusNotFound, workrecord.FileName+" 不存在")
		return
	}

	if err := s.local.UpdateWorkRecord(req.FolderPath, req.Department, req.Content); err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "工作记录已更新"})
}
