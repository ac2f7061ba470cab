package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/version"
)

// StatusHandler handles status-related endpoints
type StatusHandler struct {
	syncer    Syncer
	manual    *merge.Manual
	serverURL string
	strategy  merge.Name
}

// NewStatusHandler creates a new status handler. manual is nil unless the
// manual merge strategy is configured.
func NewStatusHandler(syncer Syncer, manual *merge.Manual, serverURL string, strategy merge.Name) *StatusHandler {
	return &StatusHandler{
		syncer:    syncer,
		manual:    manual,
		serverURL: serverURL,
		strategy:  strategy,
	}
}

// Status returns the status of the client
//
//	@Summary		Get status
//	@Description	Returns the status of the client and its pending work
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/v1/status [get]
//	@Security		APIToken
func (h *StatusHandler) Status(ctx *gin.Context) {
	local, remote, err := h.syncer.Pending(ctx.Request.Context())
	if err != nil {
		AbortWithError(ctx, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	resp := &StatusResponse{
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       version.Version,
		Revision:      version.Revision,
		BuildDate:     version.BuildDate,
		ServerURL:     h.serverURL,
		MergeStrategy: string(h.strategy),
		Pending:       PendingInfo{Local: local, Remote: remote},
	}
	if h.manual != nil {
		resp.Conflicts = len(h.manual.ConflictedIDs())
	}
	if last := h.syncer.LastSync(); last != nil {
		resp.LastSync = NewSyncReport(last)
	}
	if stats, err := NewProcessStats(); err == nil {
		resp.Process = stats
	}

	ctx.PureJSON(http.StatusOK, resp)
}
