package merge

import (
	"github.com/google/uuid"
	"github.com/openmined/syftnotes/internal/difference"
	"github.com/openmined/syftnotes/internal/note"
)

var _ Strategy = (*KeepBoth)(nil)

// KeepBoth lets the remote version win on the shared note and preserves the
// local version as a new note, so nothing written on either side is lost.
type KeepBoth struct {
	newID func() string
}

// NewKeepBoth returns the strategy. newID generates ids for the copies and
// defaults to random UUIDs.
func NewKeepBoth(newID func() string) *KeepBoth {
	if newID == nil {
		newID = uuid.NewString
	}
	return &KeepBoth{newID: newID}
}

func (s *KeepBoth) Merge(in Input) *Solution {
	diffs := difference.Compare(in.Local, in.Remote)
	if diffs.Empty() {
		return &Solution{}
	}

	converge := difference.Compensate(in.NoteID, diffs, difference.Right)
	if in.Local.Existence() != note.Exists {
		// a deleted local note has no content left to keep, so no copy is made
		return &Solution{NewLocalEvents: converge.LeftEvents}
	}

	copyID := s.newID()
	seed := difference.Compare(note.Empty(copyID), in.Local)
	copyEvents := difference.Compensate(copyID, seed, difference.Right).LeftEvents

	local := make([]note.Event, 0, len(converge.LeftEvents)+len(copyEvents))
	local = append(local, converge.LeftEvents...)
	local = append(local, copyEvents...)

	return &Solution{
		NewLocalEvents:  local,
		NewRemoteEvents: append([]note.Event(nil), copyEvents...),
	}
}
