package difference

import (
	"github.com/openmined/syftnotes/internal/note"
)

// Side selects one of the two compared projections.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Compensation holds the events that bring one side in line with the other.
// Exactly one of the lists is populated per call.
type Compensation struct {
	LeftEvents  []note.Event
	RightEvents []note.Event
}

// Compensate converts differences into the ordered events that make the
// side opposite to toward match the toward side. With toward == Right the
// events are for the left projection and vice versa.
//
// Existence events come first, field events after. A changed attachment is
// always a delete followed by an add. The events carry noteID, no event id
// and revision 0; the log that executes them assigns both.
func Compensate(noteID string, diffs Differences, toward Side) Compensation {
	if toward == Left {
		return Compensation{RightEvents: compensate(noteID, diffs.Swap())}
	}
	return Compensation{LeftEvents: compensate(noteID, diffs)}
}

// compensate produces events for the left side so it matches the right side.
func compensate(noteID string, diffs Differences) []note.Event {
	var payloads []note.Payload

	if ed, ok := diffs.Existence(); ok {
		payloads = append(payloads, existencePayloads(ed)...)
		diffs = nil
		if ed.Right != note.NotYetCreated {
			// fields were not compared; align them against the winning projection
			diffs = compareFields(alignedLoser(ed), ed.RightNote)
		}
	}

	for _, d := range diffs {
		payloads = append(payloads, fieldPayloads(d)...)
	}

	events := make([]note.Event, 0, len(payloads))
	for _, p := range payloads {
		events = append(events, note.Event{NoteID: noteID, Payload: p})
	}
	return events
}

func existencePayloads(ed ExistenceDifference) []note.Payload {
	winner := ed.RightNote
	created := note.Created{Path: winner.Path, Title: winner.Title, Content: winner.Content}

	switch {
	case ed.Left == note.NotYetCreated && ed.Right == note.Exists:
		return []note.Payload{created}
	case ed.Left == note.NotYetCreated && ed.Right == note.Removed:
		return []note.Payload{created, note.Deleted{}}
	case ed.Left == note.Exists && ed.Right == note.Removed:
		return []note.Payload{note.Deleted{}}
	case ed.Left == note.Removed && ed.Right == note.Exists:
		return []note.Payload{note.Undeleted{}}
	case ed.Left == note.Exists && ed.Right == note.NotYetCreated:
		// a log cannot forget a note; the closest state is deleted
		return []note.Payload{note.Deleted{}}
	default:
		return nil
	}
}

// alignedLoser is the projection the losing side has after its existence
// events, used to compute the remaining field events.
func alignedLoser(ed ExistenceDifference) note.Note {
	if ed.Left != note.NotYetCreated {
		return ed.LeftNote
	}
	loser := note.Empty(ed.RightNote.ID)
	loser.Path = ed.RightNote.Path
	loser.Title = ed.RightNote.Title
	loser.Content = ed.RightNote.Content
	return loser
}

func fieldPayloads(d Difference) []note.Payload {
	switch d := d.(type) {
	case PathDifference:
		return []note.Payload{note.Moved{Path: d.Right}}
	case TitleDifference:
		return []note.Payload{note.TitleChanged{Title: d.Right}}
	case ContentDifference:
		return []note.Payload{note.ContentChanged{Content: d.Right}}
	case AttachmentDifference:
		switch {
		case d.Left == nil && d.Right == nil:
			return nil
		case d.Right == nil:
			return []note.Payload{note.AttachmentDeleted{Name: d.Name}}
		case d.Left == nil:
			return []note.Payload{note.AttachmentAdded{Name: d.Name, Content: d.Right}}
		default:
			return []note.Payload{
				note.AttachmentDeleted{Name: d.Name},
				note.AttachmentAdded{Name: d.Name, Content: d.Right},
			}
		}
	default:
		return nil
	}
}
