package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lu-zhengda/knot/internal/domain"
)

// RespondJSON writes a JSON response with the given status code. The body
// is marshaled before any header is written.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ProblemDetail is an RFC 7807 error body.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// RespondError writes an RFC 7807 problem whose detail carries message.
func RespondError(w http.ResponseWriter, status int, detail string) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ParseJSON decodes the request body into dest. Bodies over 10MB are
// rejected.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return domain.NewValidationError("无效的请求参数: %v", err)
	}
	return nil
}

// statusOf maps an error onto an HTTP status.
func statusOf(err error) int {
	var aerr *domain.ArchiveError
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &aerr):
		return aerr.StatusCode()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	detail := err.Error()
	if errors.Is(err, domain.ErrNotConnected) {
		detail = "请先连接邮件服务器"
	}
	entry := s.log.WithError(err).WithField("path", r.URL.Path)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug(fmt.Sprintf("request rejected with %d", status))
	}
	RespondError(w, status, detail)
}
