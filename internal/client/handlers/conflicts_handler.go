package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftnotes/internal/merge"
)

var errManualDisabled = errors.New("manual merge strategy is not enabled")

// ConflictsHandler exposes the conflicts parked by the manual merge
// strategy.
type ConflictsHandler struct {
	manual *merge.Manual
}

func NewConflictsHandler(manual *merge.Manual) *ConflictsHandler {
	return &ConflictsHandler{manual: manual}
}

func (h *ConflictsHandler) enabled(c *gin.Context) bool {
	if h.manual == nil {
		AbortWithError(c, http.StatusNotFound, ErrCodeManualDisabled, errManualDisabled)
		return false
	}
	return true
}

// List godoc
//
//	@Summary		List unresolved conflicts
//	@Tags			conflicts
//	@Produce		json
//	@Success		200	{object}	ConflictListResponse
//	@Failure		404	{object}	ControlPlaneError
//	@Router			/v1/conflicts [get]
//	@Security		APIToken
func (h *ConflictsHandler) List(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	ids := h.manual.ConflictedIDs()
	resp := ConflictListResponse{Conflicts: make([]ConflictSummary, 0, len(ids))}
	for _, id := range ids {
		if conflict, ok := h.manual.Conflict(id); ok {
			resp.Conflicts = append(resp.Conflicts, newConflictSummary(conflict))
		}
	}

	c.PureJSON(http.StatusOK, resp)
}

// Get godoc
//
//	@Summary		Get a conflict
//	@Tags			conflicts
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	ConflictDetail
//	@Failure		404	{object}	ControlPlaneError
//	@Router			/v1/conflicts/{id} [get]
//	@Security		APIToken
func (h *ConflictsHandler) Get(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	id := c.Param("id")
	conflict, ok := h.manual.Conflict(id)
	if !ok {
		AbortWithError(c, http.StatusNotFound, ErrCodeConflictNotFound, fmt.Errorf("no conflict for note %s", id))
		return
	}

	c.PureJSON(http.StatusOK, newConflictDetail(conflict))
}

// Resolve godoc
//
//	@Summary		Resolve a conflict
//	@Description	Records the side to keep. The next sync pass applies it.
//	@Tags			conflicts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			request	body		ResolveRequest	true	"Resolution"
//	@Success		200		{object}	ControlPlaneResponse
//	@Failure		400		{object}	ControlPlaneError
//	@Failure		404		{object}	ControlPlaneError
//	@Router			/v1/conflicts/{id}/resolve [post]
//	@Security		APIToken
func (h *ConflictsHandler) Resolve(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	err := h.manual.Resolve(c.Param("id"), req.Choice)
	switch {
	case errors.Is(err, merge.ErrInvalidChoice):
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidResolution, err)
		return
	case errors.Is(err, merge.ErrNoConflict):
		AbortWithError(c, http.StatusNotFound, ErrCodeConflictNotFound, err)
		return
	case err != nil:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	c.PureJSON(http.StatusOK, ControlPlaneResponse{Code: CodeOk})
}

// Watch streams conflict changes as server-sent events until the client
// goes away.
//
//	@Summary		Watch conflicts
//	@Tags			conflicts
//	@Produce		text/event-stream
//	@Router			/v1/conflicts/watch [get]
//	@Security		APIToken
func (h *ConflictsHandler) Watch(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	events := h.manual.Subscribe()
	defer h.manual.Unsubscribe(events)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("conflict", ConflictEventMessage{Type: string(ev.Type), NoteID: ev.NoteID})
			return true
		}
	})
}
