package sdk

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL            = errors.New("sdk: server url missing")
	ErrEventsNotConnected     = errors.New("sdk: events not connected")
	ErrEventsMessageQueueFull = errors.New("sdk: events message queue full")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // token is invalid, expired, or malformed

	// Sync errors
	CodeQuotaExceeded     = "E_QUOTA_EXCEEDED"     // the write would exceed the storage ceiling
	CodeEntryNotFound     = "E_ENTRY_NOT_FOUND"    // the requested catalog entry does not exist
	CodeConflictNotFound  = "E_CONFLICT_NOT_FOUND" // the referenced conflict does not exist
	CodeConflictResolved  = "E_CONFLICT_RESOLVED"  // the conflict was already resolved
	CodeInvalidResolution = "E_INVALID_RESOLUTION" // unknown resolution strategy or missing manual content
)

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// BaseError provides common error functionality
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *BaseError) ErrorCode() string    { return e.Code }
func (e *BaseError) ErrorMessage() string { return e.Message }

// APIError represents dotsync API errors
type APIError struct {
	BaseError

	// RetryAfter is the server-mandated wait from a 429's Retry-After
	// header. Zero when the response carried none.
	RetryAfter time.Duration `json:"-"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		BaseError: BaseError{
			Code:    code,
			Message: message,
		},
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

var _ SDKError = (*APIError)(nil)

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil && secs > 0 {
					err.RetryAfter = time.Duration(secs) * time.Second
				}
			}
			return fmt.Errorf("%s %w", operation, err)
		}

		return fmt.Errorf("api error: %s %s", operation, resp.Dump())
	}

	return nil
}
