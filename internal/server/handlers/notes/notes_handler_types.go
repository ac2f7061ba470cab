package notes

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

type EventsRequest struct {
	After int64 `form:"after" binding:"min=0"`
	Limit int   `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type NoteRequest struct {
	Revision *int `form:"revision" binding:"omitempty,min=0"`
}
