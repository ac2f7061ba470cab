package notesdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/version"
)

const (
	HeaderUserAgent       = "User-Agent"
	HeaderSyftVersion     = "X-Syft-Version"
	HeaderSyftNotesClient = "X-SyftNotes-Client"
)

var UserAgent = fmt.Sprintf("SyftNotes/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// CommandResponse is returned by POST /api/v1/commands. Event is nil when
// the command changed nothing on the server.
type CommandResponse struct {
	Event *note.Event `json:"event"`
}

// EventRecord is an event at a position of the server log.
type EventRecord struct {
	Seq       int64      `json:"seq"`
	CreatedAt time.Time  `json:"created_at"`
	Event     note.Event `json:"event"`
}

type EventsResponse struct {
	Events []EventRecord `json:"events"`
	// Last is the seq of the last returned record, or the requested cursor
	Last int64 `json:"last"`
}

// NoteView is the wire form of a note projection.
type NoteView struct {
	ID          string            `json:"id"`
	Revision    int               `json:"revision"`
	Exists      bool              `json:"exists"`
	Path        string            `json:"path"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Attachments map[string][]byte `json:"attachments,omitempty"`
}

func NewNoteView(n note.Note) NoteView {
	return NoteView{
		ID:          n.ID,
		Revision:    n.Revision,
		Exists:      n.Exists,
		Path:        n.Path,
		Title:       n.Title,
		Content:     n.Content,
		Attachments: n.Attachments,
	}
}

// ToNote rebuilds the projection, recomputing attachment hashes.
func (v NoteView) ToNote() note.Note {
	n := note.Empty(v.ID)
	n.Revision = v.Revision
	n.Exists = v.Exists
	n.Path = v.Path
	n.Title = v.Title
	n.Content = v.Content
	for name, content := range v.Attachments {
		if content == nil {
			content = []byte{}
		}
		n.Attachments[name] = content
		n.AttachmentHashes[name] = note.AttachmentHash(content)
	}
	return n
}

type NotesResponse struct {
	Notes []NoteView `json:"notes"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
