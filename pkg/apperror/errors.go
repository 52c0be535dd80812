package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string                 `json:"error_code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Meta       map[string]interface{} `json:"meta,omitempty"` // Client-visible context (dates, limits)
	Err        error                  `json:"-"`              // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMeta attaches a client-visible key/value pair and returns the same error.
func (e *AppError) WithMeta(key string, value interface{}) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = value
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Is reports whether err is an AppError carrying the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// ---- Image pipeline (IMG) ----

func ErrImageFetch(err error) *AppError {
	return Wrap("IMG_001", "Could not fetch the screenshot, please try a different file", http.StatusBadRequest, err)
}

func ErrImageProcessing(err error) *AppError {
	return Wrap("IMG_002", "Could not process image, please try a different file", http.StatusBadRequest, err)
}

// ---- Submissions (SUB) ----

// ErrDuplicateSubmission is returned when a screenshot matches one the user already sent.
// previous is nil when the match is an in-flight submission that has no stored record yet.
func ErrDuplicateSubmission(previous *time.Time) *AppError {
	e := New("SUB_001", "This screenshot has already been submitted", http.StatusConflict)
	if previous != nil {
		e.WithMeta("previous_submitted_at", previous.UTC().Format(time.RFC3339))
	}
	return e
}

func ErrSubmissionRateLimit(retryAfter time.Duration, retryAt time.Time) *AppError {
	secs := int64((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return New("SUB_002", "Daily submission limit reached", http.StatusTooManyRequests).
		WithMeta("retry_after_seconds", secs).
		WithMeta("retry_at", retryAt.UTC().Format(time.RFC3339))
}

func ErrAlreadyProcessed(entity string) *AppError {
	return New("SUB_003", fmt.Sprintf("%s has already been processed", entity), http.StatusConflict)
}

func ErrUnknownPlatform(platform string) *AppError {
	return New("SUB_004", fmt.Sprintf("Unsupported platform: %s", platform), http.StatusBadRequest)
}

// ---- Withdrawals (WDR) ----

func ErrInsufficientBalance() *AppError {
	return New("WDR_001", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrBelowMinimum(minimum string) *AppError {
	return New("WDR_002", fmt.Sprintf("Minimum withdrawal amount is %s", minimum), http.StatusBadRequest).
		WithMeta("minimum", minimum)
}

// ErrIdempotencyKeyReused means the key already answered a different request body.
func ErrIdempotencyKeyReused() *AppError {
	return New("WDR_003", "Idempotency-Key was already used with a different request", http.StatusUnprocessableEntity)
}

// ---- General (GEN) ----

// Validation returns a GEN_001 validation error.
func Validation(message string) *AppError {
	return New("GEN_001", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("GEN_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("GEN_003", "Request body too large", http.StatusRequestEntityTooLarge).
		WithMeta("limit_bytes", limit)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Insufficient permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// ErrInvariant signals a broken internal invariant (ledger totals, fingerprint shape).
func ErrInvariant(err error) *AppError {
	return Wrap("SYS_004", "Internal consistency error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
