package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied

	// Note errors
	CodeNoteNotFound         = "E_NOTE_NOT_FOUND"          // the note has no events on the server.
	CodeRevisionConflict     = "E_NOTE_REVISION_CONFLICT"  // the command targets a revision that is not the latest.
	CodeInvalidTransition    = "E_NOTE_INVALID_TRANSITION" // the command is not valid for the note's current state.
	CodeIllegalState         = "E_NOTE_ILLEGAL_STATE"      // the command contradicts the note's lifecycle.
	CodeCommandDecodeFailed  = "E_COMMAND_DECODE_FAILED"   // the command envelope could not be decoded.
	CodeEventLogReadFailed   = "E_EVENT_LOG_READ_FAILED"   // a failure reading the server event log.
	CodeEventLogAppendFailed = "E_EVENT_LOG_APPEND_FAILED" // a failure appending to the server event log.
)
