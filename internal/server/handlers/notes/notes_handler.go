package notes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/notesdk"
	"github.com/openmined/syftnotes/internal/notestore"
	"github.com/openmined/syftnotes/internal/server/handlers/api"
)

type NotesHandler struct {
	store *notestore.Store
}

func New(store *notestore.Store) *NotesHandler {
	return &NotesHandler{store: store}
}

// Execute runs a command against the server log.
func (h *NotesHandler) Execute(ctx *gin.Context) {
	var env command.Envelope
	if err := ctx.ShouldBindJSON(&env); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	cmd, err := env.Unwrap()
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeCommandDecodeFailed, err)
		return
	}

	res, err := h.store.Execute(ctx.Request.Context(), cmd)
	switch {
	case err == nil:
	case errors.Is(err, command.ErrCommandRejected):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeRevisionConflict, err)
		return
	case errors.Is(err, note.ErrInvalidTransition):
		api.AbortWithError(ctx, http.StatusUnprocessableEntity, api.CodeInvalidTransition, err)
		return
	case errors.Is(err, note.ErrIllegalState):
		api.AbortWithError(ctx, http.StatusUnprocessableEntity, api.CodeIllegalState, err)
		return
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeEventLogAppendFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, notesdk.CommandResponse{Event: res.Event})
}

// Events pages through the server log in append order.
func (h *NotesHandler) Events(ctx *gin.Context) {
	var req EventsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultEventsLimit
	}

	events, err := h.store.EventsSince(ctx.Request.Context(), req.After, min(req.Limit, maxEventsLimit))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeEventLogReadFailed, err)
		return
	}

	resp := notesdk.EventsResponse{
		Events: make([]notesdk.EventRecord, len(events)),
		Last:   req.After,
	}
	for i, e := range events {
		resp.Events[i] = notesdk.EventRecord{Seq: e.Seq, CreatedAt: e.CreatedAt, Event: e.Event}
		resp.Last = e.Seq
	}

	ctx.PureJSON(http.StatusOK, resp)
}

func (h *NotesHandler) List(ctx *gin.Context) {
	notes, err := h.store.Notes(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeEventLogReadFailed, err)
		return
	}

	views := make([]notesdk.NoteView, len(notes))
	for i, n := range notes {
		views[i] = notesdk.NewNoteView(n)
	}
	ctx.PureJSON(http.StatusOK, notesdk.NotesResponse{Notes: views})
}

// Get returns a note. With a revision query it projects the note at that
// revision, answering the empty note for revision 0.
func (h *NotesHandler) Get(ctx *gin.Context) {
	noteID := ctx.Param("id")

	var req NoteRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	var n note.Note
	var err error
	if req.Revision != nil {
		n, err = h.store.NoteAt(ctx.Request.Context(), noteID, *req.Revision)
	} else {
		n, err = h.store.Get(ctx.Request.Context(), noteID)
	}

	if errors.Is(err, notestore.ErrNoteNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNoteNotFound, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeEventLogReadFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, notesdk.NewNoteView(n))
}
