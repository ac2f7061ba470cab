package command

import (
	"testing"

	"github.com/openmined/syftnotes/internal/note"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allPayloads = []note.Payload{
	note.Created{Path: "/inbox", Title: "t", Content: "c"},
	note.Deleted{},
	note.Undeleted{},
	note.AttachmentAdded{Name: "a.png", Content: []byte{0x89, 0x50}},
	note.AttachmentDeleted{Name: "a.png"},
	note.ContentChanged{Content: "new"},
	note.TitleChanged{Title: "new"},
	note.Moved{Path: "/archive"},
}

func TestFromEvent_Total(t *testing.T) {
	for _, p := range allPayloads {
		e := note.Event{EventID: "e1", NoteID: "n1", Revision: 9, Payload: p}

		cmd := FromEvent(e, 4)
		assert.Equal(t, Target{NoteID: "n1", LastRevision: 4}, TargetOf(cmd), p.Type())
		assert.Equal(t, p, cmd.Payload(), p.Type())

		kind, ok := KindOf(p.Type())
		require.True(t, ok)
		assert.Equal(t, kind, cmd.Kind())
	}
}

func TestFromEvent_NilPayloadPanics(t *testing.T) {
	assert.Panics(t, func() {
		FromEvent(note.Event{EventID: "e1", NoteID: "n1"}, 0)
	})
}

func TestEvent(t *testing.T) {
	cmd := ChangeTitle{Target: Target{NoteID: "n1", LastRevision: 1}, Title: "A"}

	e := Event(cmd, "evt")
	assert.Equal(t, note.Event{EventID: "evt", NoteID: "n1", Revision: 2, Payload: note.TitleChanged{Title: "A"}}, e)
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, p := range allPayloads {
		cmd, err := FromPayload(Target{NoteID: "n1", LastRevision: 3}, p)
		require.NoError(t, err)

		data, err := Marshal(cmd)
		require.NoError(t, err)

		decoded, err := Unmarshal(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, cmd, decoded)
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"unknown kind", `{"kind":"rename","note_id":"n1","last_revision":0}`},
		{"missing note", `{"kind":"delete_note","last_revision":0}`},
		{"negative revision", `{"kind":"delete_note","note_id":"n1","last_revision":-1}`},
		{"bad data", `{"kind":"change_title","note_id":"n1","last_revision":1,"data":{"title":3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	n, _, err := Apply(note.Empty("n1"), CreateNote{Target: Target{NoteID: "n1"}, Title: "t"}, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, n.Revision)

	_, _, err = Apply(n, ChangeTitle{Target: Target{NoteID: "n1", LastRevision: 0}, Title: "x"}, "e2")
	assert.ErrorIs(t, err, ErrCommandRejected)

	_, _, err = Apply(n, ChangeTitle{Target: Target{NoteID: "n2", LastRevision: 1}, Title: "x"}, "e2")
	assert.ErrorIs(t, err, ErrCommandRejected)

	same, applied, err := Apply(n, ChangeTitle{Target: Target{NoteID: "n1", LastRevision: 1}, Title: "t"}, "e2")
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Equal(t, n, same)

	_, _, err = Apply(n, CreateNote{Target: Target{NoteID: "n1", LastRevision: 1}}, "e2")
	assert.ErrorIs(t, err, note.ErrIllegalState)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRemoteUnavailable))
	assert.False(t, IsRetryable(ErrCommandRejected))
	assert.False(t, IsRetryable(nil))
}
