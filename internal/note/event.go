package note

import "fmt"

// EventType identifies a payload variant on the wire and in storage.
type EventType string

const (
	TypeCreated           EventType = "created"
	TypeDeleted           EventType = "deleted"
	TypeUndeleted         EventType = "undeleted"
	TypeAttachmentAdded   EventType = "attachment_added"
	TypeAttachmentDeleted EventType = "attachment_deleted"
	TypeContentChanged    EventType = "content_changed"
	TypeTitleChanged      EventType = "title_changed"
	TypeMoved             EventType = "moved"
)

// Payload is the closed set of things that can happen to a note.
// Only the types in this file implement it.
type Payload interface {
	Type() EventType
	payload()
}

type Created struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Deleted struct{}

type Undeleted struct{}

type AttachmentAdded struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type AttachmentDeleted struct {
	Name string `json:"name"`
}

type ContentChanged struct {
	Content string `json:"content"`
}

type TitleChanged struct {
	Title string `json:"title"`
}

type Moved struct {
	Path string `json:"path"`
}

func (Created) Type() EventType           { return TypeCreated }
func (Deleted) Type() EventType           { return TypeDeleted }
func (Undeleted) Type() EventType         { return TypeUndeleted }
func (AttachmentAdded) Type() EventType   { return TypeAttachmentAdded }
func (AttachmentDeleted) Type() EventType { return TypeAttachmentDeleted }
func (ContentChanged) Type() EventType    { return TypeContentChanged }
func (TitleChanged) Type() EventType      { return TypeTitleChanged }
func (Moved) Type() EventType             { return TypeMoved }

func (Created) payload()           {}
func (Deleted) payload()           {}
func (Undeleted) payload()         {}
func (AttachmentAdded) payload()   {}
func (AttachmentDeleted) payload() {}
func (ContentChanged) payload()    {}
func (TitleChanged) payload()      {}
func (Moved) payload()             {}

// Event is an immutable record of a single change to a note.
// EventID is assigned by the log that persists the event. Revision is the
// 1-based position of the event in its note's history on that log.
type Event struct {
	EventID  string
	NoteID   string
	Revision int
	Payload  Payload
}

// Renumber returns a copy of the event with a new id and revision. These are
// the only two fields that change when an event moves to another log.
func (e Event) Renumber(eventID string, revision int) Event {
	e.EventID = eventID
	e.Revision = revision
	return e
}

// Type returns the payload type, or an empty string for an event without payload.
func (e Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type()
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%d[%s id=%s]", e.NoteID, e.Revision, e.Type(), e.EventID)
}

// EventIDs returns the ids of events in order.
func EventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	return ids
}
