package app

import (
	"errors"
	"fmt"
	"net/http"

	"launchpad/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeStoreReadFailed    = "STORE_READ_FAILED"
	CodeStoreWriteFailed   = "STORE_WRITE_FAILED"
	CodeDocumentCorrupt    = "DOCUMENT_CORRUPT"
	CodeHistoryUnsupported = "HISTORY_UNSUPPORTED"
	CodeExportUnavailable  = "EXPORT_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvariantViolated  = "ORDER_INVARIANT_VIOLATED"
)

func validationError(field, message string) *DomainError {
	var details any
	if field != "" {
		details = map[string]any{"field": field}
	}
	return domainError(http.StatusUnprocessableEntity, CodeValidation, message, details)
}

func notFound(kind, id string) *DomainError {
	return domainError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s %q not found", kind, id), map[string]any{"kind": kind, "id": id})
}

// asDomainError converts store and validation failures into the error shape
// the HTTP layer maps to a status code.
func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	var vErr *store.ValidationError
	if errors.As(err, &vErr) {
		d := validationError(vErr.Field, vErr.Error())
		d.Err = err
		return d
	}
	switch {
	case errors.Is(err, store.ErrStoreRead):
		d := domainError(http.StatusServiceUnavailable, CodeStoreReadFailed, "The document could not be read", nil)
		d.Err = err
		return d
	case errors.Is(err, store.ErrStoreWrite):
		d := domainError(http.StatusServiceUnavailable, CodeStoreWriteFailed, "The document could not be saved", nil)
		d.Err = err
		return d
	case errors.Is(err, store.ErrCorruptDocument):
		d := domainError(http.StatusInternalServerError, CodeDocumentCorrupt, "The stored document is corrupt and was left untouched", nil)
		d.Err = err
		return d
	}
	return err
}
