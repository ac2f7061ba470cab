package notesdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftnotes/internal/command"
)

var (
	ErrNoServerURL   = errors.New("sdk: server url missing")
	ErrNoteNotFound  = errors.New("sdk: note not found")
	ErrInvalidCursor = errors.New("sdk: invalid cursor")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Note errors
	CodeNoteNotFound         = "E_NOTE_NOT_FOUND"          // the note has no events on the server.
	CodeRevisionConflict     = "E_NOTE_REVISION_CONFLICT"  // the command targets a revision that is not the latest.
	CodeInvalidTransition    = "E_NOTE_INVALID_TRANSITION" // the command is not valid for the note's current state.
	CodeIllegalState         = "E_NOTE_ILLEGAL_STATE"      // the command contradicts the note's lifecycle.
	CodeCommandDecodeFailed  = "E_COMMAND_DECODE_FAILED"   // the command envelope could not be decoded.
	CodeEventLogReadFailed   = "E_EVENT_LOG_READ_FAILED"   // a failure reading the server event log.
	CodeEventLogAppendFailed = "E_EVENT_LOG_APPEND_FAILED" // a failure appending to the server event log.
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

// APIError represents note server errors
type APIError struct {
	BaseError
	Status int `json:"-"`
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

// handleAPIError maps transport failures and error responses onto the
// command error taxonomy.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w: %w", operation, command.ErrRemoteUnavailable, requestErr)
	}

	if !resp.IsErrorState() {
		return nil
	}

	apiErr, ok := resp.ErrorResult().(*APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		apiErr = NewAPIError(CodeUnknownError, http.StatusText(resp.StatusCode))
	}
	apiErr.Status = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", operation, ErrNoteNotFound, apiErr)
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w: %w", operation, command.ErrCommandRejected, apiErr)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%s: %w: %w", operation, command.ErrRemoteUnavailable, apiErr)
	default:
		return fmt.Errorf("%s: %w", operation, apiErr)
	}
}
