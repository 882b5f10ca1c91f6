package app

import (
	"errors"
	"fmt"
	"net/http"

	"rehearsal/api/internal/attendance"
	"rehearsal/api/internal/catalog"
	"rehearsal/api/internal/ledger"
	"rehearsal/api/internal/lock"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	// errRequestPending means an earlier attempt with the same request ID
	// never reported back; it may or may not have been applied.
	errRequestPending      = errors.New("request is still pending")
	errRequestsUnavailable = errors.New("request store unavailable")
)

type retryDetails struct {
	Retryable bool `json:"retryable"`
}

// classifyError maps pipeline failures onto the caller-facing taxonomy.
func classifyError(err error) *DomainError {
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, attendance.ErrInvalidTimeFormat):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Date or time slot is malformed", map[string]string{"error": err.Error()})
	case errors.Is(err, catalog.ErrUnknownActivity):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown activity", map[string]string{"activity": "oneof"})
	case errors.Is(err, catalog.ErrUnknownTimeSlot):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown time slot", map[string]string{"timeSlot": "oneof"})
	case errors.Is(err, catalog.ErrUnavailable):
		return domainError(http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "The activity list could not be loaded", retryDetails{Retryable: true})
	case errors.Is(err, ledger.ErrSheetNotFound):
		return domainError(http.StatusNotFound, "SHEET_NOT_FOUND", "The ledger has no sheet for this activity", nil)
	case errors.Is(err, ledger.ErrHeaderMissing):
		return domainError(http.StatusConflict, "SHEET_MALFORMED", "The activity sheet has no header row", retryDetails{Retryable: false})
	case errors.Is(err, errRequestPending), ledger.IsAmbiguous(err):
		return domainError(http.StatusGatewayTimeout, "AMBIGUOUS_OUTCOME", "The ledger may or may not have recorded this submission; check before retrying", retryDetails{Retryable: false})
	case errors.Is(err, lock.ErrLockTimeout):
		return domainError(http.StatusServiceUnavailable, "LOCK_TIMEOUT", "The ledger is busy, try again", retryDetails{Retryable: true})
	case errors.Is(err, errRequestsUnavailable):
		return domainError(http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "Request store unavailable", retryDetails{Retryable: true})
	}
	var storeErr *ledger.StoreError
	if errors.As(err, &storeErr) {
		return domainError(http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "The ledger could not be reached", retryDetails{Retryable: true})
	}
	return domainError(http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
}
