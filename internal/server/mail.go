package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/mailbox"
)

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var conn domain.MailConnection
	if err := ParseJSON(w, r, &conn); err != nil {
		s.handleError(w, r, err)
		return
	}

	if err := s.mail.Connect(r.Context(), conn); err != nil {
		s.log.WithError(err).WithField("server", conn.Server).Warn("mail connect failed")
		RespondError(w, http.StatusBadRequest, fmt.Sprintf("连接失败: %v", err))
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "连接成功"})
}

func (s *Server) handleListMail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = mailbox.DefaultLimit
	}
	days, _ := strconv.Atoi(q.Get("days"))

	items, err := s.mail.List(r.Context(), limit, days)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

func (s *Server) handleMailDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.mail.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": detail})
}

func (s *Server) handleAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := s.mail.Attachments(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if atts == nil {
		atts = []domain.Attachment{}
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": atts})
}
