// Package command describes the intents sent to a note log and the executors
// that turn them into events.
package command

import (
	"fmt"

	"github.com/openmined/syftnotes/internal/note"
)

// Kind names a command variant on the wire.
type Kind string

const (
	KindCreateNote       Kind = "create_note"
	KindDeleteNote       Kind = "delete_note"
	KindUndeleteNote     Kind = "undelete_note"
	KindAddAttachment    Kind = "add_attachment"
	KindDeleteAttachment Kind = "delete_attachment"
	KindChangeContent    Kind = "change_content"
	KindChangeTitle      Kind = "change_title"
	KindMoveNote         Kind = "move_note"
)

// Target addresses a note at the revision the sender last saw. The executor
// rejects the command when the log has moved past it.
type Target struct {
	NoteID       string `json:"note_id"`
	LastRevision int    `json:"last_revision"`
}

func (t Target) target() Target { return t }

// Command is one of the variants below. The set is closed.
type Command interface {
	Kind() Kind
	// Payload is the event payload the command produces when applied.
	Payload() note.Payload
	target() Target
}

type CreateNote struct {
	Target
	Path    string
	Title   string
	Content string
}

type DeleteNote struct{ Target }

type UndeleteNote struct{ Target }

type AddAttachment struct {
	Target
	Name    string
	Content []byte
}

type DeleteAttachment struct {
	Target
	Name string
}

type ChangeContent struct {
	Target
	Content string
}

type ChangeTitle struct {
	Target
	Title string
}

type MoveNote struct {
	Target
	Path string
}

func (CreateNote) Kind() Kind       { return KindCreateNote }
func (DeleteNote) Kind() Kind       { return KindDeleteNote }
func (UndeleteNote) Kind() Kind     { return KindUndeleteNote }
func (AddAttachment) Kind() Kind    { return KindAddAttachment }
func (DeleteAttachment) Kind() Kind { return KindDeleteAttachment }
func (ChangeContent) Kind() Kind    { return KindChangeContent }
func (ChangeTitle) Kind() Kind      { return KindChangeTitle }
func (MoveNote) Kind() Kind         { return KindMoveNote }

func (c CreateNote) Payload() note.Payload {
	return note.Created{Path: c.Path, Title: c.Title, Content: c.Content}
}
func (DeleteNote) Payload() note.Payload   { return note.Deleted{} }
func (UndeleteNote) Payload() note.Payload { return note.Undeleted{} }
func (c AddAttachment) Payload() note.Payload {
	return note.AttachmentAdded{Name: c.Name, Content: c.Content}
}
func (c DeleteAttachment) Payload() note.Payload { return note.AttachmentDeleted{Name: c.Name} }
func (c ChangeContent) Payload() note.Payload    { return note.ContentChanged{Content: c.Content} }
func (c ChangeTitle) Payload() note.Payload      { return note.TitleChanged{Title: c.Title} }
func (c MoveNote) Payload() note.Payload         { return note.Moved{Path: c.Path} }

// TargetOf returns the note and revision a command is addressed to.
func TargetOf(c Command) Target {
	return c.target()
}

// FromEvent maps an event to the command that reproduces it on another log
// whose last revision for the note is lastRevision.
func FromEvent(e note.Event, lastRevision int) Command {
	cmd, err := FromPayload(Target{NoteID: e.NoteID, LastRevision: lastRevision}, e.Payload)
	if err != nil {
		// payload variants are closed; only a nil payload gets here
		panic(fmt.Sprintf("command: event %s: %v", e.EventID, err))
	}
	return cmd
}

// FromPayload builds the command producing p on the note addressed by t.
func FromPayload(t Target, p note.Payload) (Command, error) {
	switch p := p.(type) {
	case note.Created:
		return CreateNote{Target: t, Path: p.Path, Title: p.Title, Content: p.Content}, nil
	case note.Deleted:
		return DeleteNote{Target: t}, nil
	case note.Undeleted:
		return UndeleteNote{Target: t}, nil
	case note.AttachmentAdded:
		return AddAttachment{Target: t, Name: p.Name, Content: p.Content}, nil
	case note.AttachmentDeleted:
		return DeleteAttachment{Target: t, Name: p.Name}, nil
	case note.ContentChanged:
		return ChangeContent{Target: t, Content: p.Content}, nil
	case note.TitleChanged:
		return ChangeTitle{Target: t, Title: p.Title}, nil
	case note.Moved:
		return MoveNote{Target: t, Path: p.Path}, nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
}

// Event returns the event a command produces when the log accepts it.
func Event(c Command, eventID string) note.Event {
	t := TargetOf(c)
	return note.Event{
		EventID:  eventID,
		NoteID:   t.NoteID,
		Revision: t.LastRevision + 1,
		Payload:  c.Payload(),
	}
}

var kindsByType = map[note.EventType]Kind{
	note.TypeCreated:           KindCreateNote,
	note.TypeDeleted:           KindDeleteNote,
	note.TypeUndeleted:         KindUndeleteNote,
	note.TypeAttachmentAdded:   KindAddAttachment,
	note.TypeAttachmentDeleted: KindDeleteAttachment,
	note.TypeContentChanged:    KindChangeContent,
	note.TypeTitleChanged:      KindChangeTitle,
	note.TypeMoved:             KindMoveNote,
}

var typesByKind = func() map[Kind]note.EventType {
	m := make(map[Kind]note.EventType, len(kindsByType))
	for t, k := range kindsByType {
		m[k] = t
	}
	return m
}()
