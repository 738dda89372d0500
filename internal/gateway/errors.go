package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lu-zhengda/knot/internal/domain"
)

// TransportError means the backend could not be reached.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend unreachable (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Detail
}

func (e *APIError) StatusCode() int { return e.Status }

func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrConflict:
		return e.Status == http.StatusConflict
	case domain.ErrValidation:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// IsTransport reports whether err came from a connectivity failure.
func IsTransport(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
