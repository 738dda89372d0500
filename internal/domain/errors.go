package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that map to an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrArchive          = errors.New("archive failed")
	ErrNotConnected     = errors.New("mail server not connected")
	ErrAlreadyGenerated = errors.New("a work folder was already generated for this mail")
)

// ValidationError indicates input rejected before any persistence.
type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string         { return e.Message }
func (e *ValidationError) StatusCode() int       { return http.StatusBadRequest }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StorageError reports an unreadable or corrupt settings file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("settings %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ArchiveKind classifies an ArchiveError.
type ArchiveKind int

const (
	ArchiveIO ArchiveKind = iota
	ArchiveCollision
	ArchiveMissingSource
)

// ArchiveError reports a failed folder move.
type ArchiveError struct {
	Kind        ArchiveKind
	Source      string
	Destination string
	Reason      string
	Err         error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ArchiveError) Unwrap() error { return e.Err }

func (e *ArchiveError) Is(target error) bool {
	switch target {
	case ErrArchive:
		return true
	case ErrConflict:
		return e.Kind == ArchiveCollision
	case ErrNotFound:
		return e.Kind == ArchiveMissingSource
	}
	return false
}

func (e *ArchiveError) StatusCode() int {
	switch e.Kind {
	case ArchiveCollision:
		return http.StatusConflict
	case ArchiveMissingSource:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
