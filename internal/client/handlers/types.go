package handlers

import "github.com/gin-gonic/gin"

const (
	CodeOk                   string = "OK"
	ErrCodeBadRequest        string = "ERR_BAD_REQUEST"
	ErrCodeUnknownError      string = "ERR_UNKNOWN_ERROR"
	ErrCodeNotFound          string = "ERR_NOT_FOUND"
	ErrCodeSyncRunning       string = "ERR_SYNC_RUNNING"
	ErrCodeNoReport          string = "ERR_NO_REPORT"
	ErrCodeManualDisabled    string = "ERR_MANUAL_MERGE_DISABLED"
	ErrCodeConflictNotFound  string = "ERR_CONFLICT_NOT_FOUND"
	ErrCodeInvalidResolution string = "ERR_INVALID_RESOLUTION"
)

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
