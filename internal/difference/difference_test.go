package difference

import (
	"testing"

	"github.com/openmined/syftnotes/internal/note"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, id string, payloads ...note.Payload) note.Note {
	t.Helper()
	events := make([]note.Event, len(payloads))
	for i, p := range payloads {
		events[i] = note.Event{NoteID: id, Payload: p}
	}
	n, err := note.Replay(note.Empty(id), events)
	require.NoError(t, err)
	return n
}

func TestCompare_Equal(t *testing.T) {
	a := build(t, "n1", note.Created{Title: "t", Content: "c"})
	b := build(t, "n1", note.Created{Title: "x"}, note.TitleChanged{Title: "t"}, note.ContentChanged{Content: "c"})

	assert.True(t, Compare(a, b).Empty())
	assert.True(t, Compare(note.Empty("n1"), note.Empty("n1")).Empty())
}

func TestCompare_ExistenceShortCircuits(t *testing.T) {
	left := build(t, "n1", note.Created{Title: "a", Content: "a"})
	right := build(t, "n1", note.Created{Title: "b", Content: "b"}, note.Deleted{})

	ds := Compare(left, right)
	require.Len(t, ds, 1)
	ed, ok := ds[0].(ExistenceDifference)
	require.True(t, ok)
	assert.Equal(t, note.Exists, ed.Left)
	assert.Equal(t, note.Removed, ed.Right)
}

func TestCompare_Fields(t *testing.T) {
	left := build(t, "n1",
		note.Created{Path: "/a", Title: "left", Content: "same"},
		note.AttachmentAdded{Name: "both.txt", Content: []byte("left")},
		note.AttachmentAdded{Name: "left-only.txt", Content: []byte("l")},
		note.AttachmentAdded{Name: "same.txt", Content: []byte("s")},
	)
	right := build(t, "n1",
		note.Created{Path: "/b", Title: "right", Content: "same"},
		note.AttachmentAdded{Name: "both.txt", Content: []byte("right")},
		note.AttachmentAdded{Name: "right-only.txt", Content: []byte("r")},
		note.AttachmentAdded{Name: "same.txt", Content: []byte("s")},
	)

	ds := Compare(left, right)
	assert.Equal(t, Differences{
		PathDifference{Left: "/a", Right: "/b"},
		TitleDifference{Left: "left", Right: "right"},
		AttachmentDifference{Name: "both.txt", Left: []byte("left"), Right: []byte("right")},
		AttachmentDifference{Name: "left-only.txt", Left: []byte("l"), Right: nil},
		AttachmentDifference{Name: "right-only.txt", Left: nil, Right: []byte("r")},
	}, ds)

	// pure and repeatable
	assert.Equal(t, ds, Compare(left, right))
}

func TestCompare_Symmetry(t *testing.T) {
	notes := []note.Note{
		note.Empty("n1"),
		build(t, "n1", note.Created{Title: "a"}),
		build(t, "n1", note.Created{Title: "b"}, note.Deleted{}),
		build(t, "n1", note.Created{Title: "c", Path: "/p"}, note.AttachmentAdded{Name: "x", Content: []byte("1")}),
	}

	for _, a := range notes {
		for _, b := range notes {
			assert.Equal(t, Compare(a, b), Compare(b, a).Swap())
		}
	}
}

func TestCompensate_ExistenceOrdering(t *testing.T) {
	existing := build(t, "n1", note.Created{Path: "/p", Title: "t", Content: "c"})
	deleted := build(t, "n1", note.Created{Path: "/p", Title: "t", Content: "c"}, note.Deleted{})
	empty := note.Empty("n1")

	cases := []struct {
		name        string
		left, right note.Note
		want        []note.EventType
	}{
		{"create", empty, existing, []note.EventType{note.TypeCreated}},
		{"create then delete", empty, deleted, []note.EventType{note.TypeCreated, note.TypeDeleted}},
		{"delete", existing, deleted, []note.EventType{note.TypeDeleted}},
		{"undelete", deleted, existing, []note.EventType{note.TypeUndeleted}},
		{"winner never created", existing, empty, []note.EventType{note.TypeDeleted}},
		{"both never created", empty, empty, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Compensate("n1", Compare(tc.left, tc.right), Right)
			assert.Empty(t, c.RightEvents)
			assert.Equal(t, tc.want, types(c.LeftEvents))
		})
	}
}

func TestCompensate_CreatedCarriesWinner(t *testing.T) {
	right := build(t, "n1",
		note.Created{Path: "/p", Title: "t", Content: "c"},
		note.AttachmentAdded{Name: "b.txt", Content: []byte("b")},
		note.AttachmentAdded{Name: "a.txt", Content: []byte("a")},
	)

	c := Compensate("copy", Compare(note.Empty("copy"), right), Right)
	require.Len(t, c.LeftEvents, 3)
	assert.Equal(t, note.Created{Path: "/p", Title: "t", Content: "c"}, c.LeftEvents[0].Payload)
	assert.Equal(t, note.AttachmentAdded{Name: "a.txt", Content: []byte("a")}, c.LeftEvents[1].Payload)
	assert.Equal(t, note.AttachmentAdded{Name: "b.txt", Content: []byte("b")}, c.LeftEvents[2].Payload)
	for _, e := range c.LeftEvents {
		assert.Equal(t, "copy", e.NoteID)
		assert.Empty(t, e.EventID)
		assert.Zero(t, e.Revision)
	}
}

func TestCompensate_ChangedAttachmentIsDeleteThenAdd(t *testing.T) {
	left := build(t, "n1", note.Created{}, note.AttachmentAdded{Name: "a", Content: []byte("old")})
	right := build(t, "n1", note.Created{}, note.AttachmentAdded{Name: "a", Content: []byte("new")})

	c := Compensate("n1", Compare(left, right), Right)
	assert.Equal(t, []note.Payload{
		note.AttachmentDeleted{Name: "a"},
		note.AttachmentAdded{Name: "a", Content: []byte("new")},
	}, payloads(c.LeftEvents))
}

func TestCompensate_TowardLeftFillsRight(t *testing.T) {
	left := build(t, "n1", note.Created{Title: "keep me"})
	right := build(t, "n1", note.Created{Title: "lose me"})

	c := Compensate("n1", Compare(left, right), Left)
	assert.Empty(t, c.LeftEvents)
	assert.Equal(t, []note.Payload{note.TitleChanged{Title: "keep me"}}, payloads(c.RightEvents))
}

func TestCompensate_RoundTrip(t *testing.T) {
	notes := []note.Note{
		note.Empty("n1"),
		build(t, "n1", note.Created{Path: "/a", Title: "a", Content: "a"}),
		build(t, "n1", note.Created{Path: "/b", Title: "b"}, note.AttachmentAdded{Name: "x", Content: []byte("1")}),
		build(t, "n1", note.Created{Title: "c"}, note.AttachmentAdded{Name: "x", Content: []byte("2")}, note.Deleted{}),
		build(t, "n1", note.Created{Content: "d"}, note.AttachmentAdded{Name: "y", Content: []byte{}}),
	}

	for i, left := range notes {
		for j, right := range notes {
			if right.Existence() == note.NotYetCreated && left.Existence() != note.NotYetCreated {
				continue // a created note cannot return to never-created
			}
			c := Compensate("n1", Compare(left, right), Right)
			got, err := note.Replay(left, c.LeftEvents)
			require.NoError(t, err, "left %d right %d", i, j)
			assert.True(t, Compare(got, right).Empty(), "left %d right %d: %v", i, j, Compare(got, right))
		}
	}
}

func types(events []note.Event) []note.EventType {
	if len(events) == 0 {
		return nil
	}
	out := make([]note.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type()
	}
	return out
}

func payloads(events []note.Event) []note.Payload {
	out := make([]note.Payload, len(events))
	for i, e := range events {
		out[i] = e.Payload
	}
	return out
}
