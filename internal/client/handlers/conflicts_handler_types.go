package handlers

import (
	"time"

	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/notesdk"
)

type ConflictSummary struct {
	NoteID      string    `json:"note_id"`
	DetectedAt  time.Time `json:"detected_at"`
	Choice      string    `json:"choice,omitempty"`
	Differences []string  `json:"differences"`
}

type ConflictDetail struct {
	ConflictSummary
	LocalEvents  int              `json:"local_events"`
	RemoteEvents int              `json:"remote_events"`
	Base         notesdk.NoteView `json:"base"`
	Local        notesdk.NoteView `json:"local"`
	Remote       notesdk.NoteView `json:"remote"`
}

type ConflictListResponse struct {
	Conflicts []ConflictSummary `json:"conflicts"`
}

type ResolveRequest struct {
	Choice merge.Choice `json:"choice" binding:"required"`
}

func newConflictSummary(c merge.Conflict) ConflictSummary {
	diffs := make([]string, len(c.Differences))
	for i, d := range c.Differences {
		diffs[i] = d.String()
	}
	return ConflictSummary{
		NoteID:      c.NoteID,
		DetectedAt:  c.DetectedAt,
		Choice:      string(c.Choice),
		Differences: diffs,
	}
}

func newConflictDetail(c merge.Conflict) ConflictDetail {
	return ConflictDetail{
		ConflictSummary: newConflictSummary(c),
		LocalEvents:     len(c.LocalEvents),
		RemoteEvents:    len(c.RemoteEvents),
		Base:            notesdk.NewNoteView(c.Base),
		Local:           notesdk.NewNoteView(c.Local),
		Remote:          notesdk.NewNoteView(c.Remote),
	}
}

type ConflictEventMessage struct {
	Type   string `json:"type"`
	NoteID string `json:"note_id"`
}
