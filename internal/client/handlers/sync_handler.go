package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftnotes/internal/synchronizer"
)

// Syncer is the part of the client driven by the control plane.
type Syncer interface {
	SyncNow(ctx context.Context) (*SyncResult, error)
	LastSync() *SyncResult
	Pending(ctx context.Context) (local int, remote int, err error)
}

type SyncHandler struct {
	syncer Syncer
}

func NewSyncHandler(syncer Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// Trigger godoc
//
//	@Summary		Run a sync pass
//	@Description	Imports both logs and runs one synchronization pass
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncReport
//	@Failure		409	{object}	ControlPlaneError
//	@Failure		500	{object}	ControlPlaneError
//	@Router			/v1/sync [post]
//	@Security		APIToken
func (h *SyncHandler) Trigger(c *gin.Context) {
	res, err := h.syncer.SyncNow(c.Request.Context())
	if errors.Is(err, synchronizer.ErrSyncAlreadyRunning) {
		AbortWithError(c, http.StatusConflict, ErrCodeSyncRunning, err)
		return
	} else if err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	c.PureJSON(http.StatusOK, NewSyncReport(res))
}

// Last godoc
//
//	@Summary		Get the last sync report
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncReport
//	@Failure		404	{object}	ControlPlaneError
//	@Router			/v1/sync/last [get]
//	@Security		APIToken
func (h *SyncHandler) Last(c *gin.Context) {
	res := h.syncer.LastSync()
	if res == nil {
		AbortWithError(c, http.StatusNotFound, ErrCodeNoReport, errors.New("no sync pass yet"))
		return
	}

	c.PureJSON(http.StatusOK, NewSyncReport(res))
}
