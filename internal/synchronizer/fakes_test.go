package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/stretchr/testify/require"
)

// memoryLog is a note log that executes commands and answers history queries.
type memoryLog struct {
	mu       sync.Mutex
	name     string
	seq      int
	events   map[string][]note.Event
	commands []command.Command

	// failAt makes the n-th executed command (1-based) fail with failErr.
	failAt  int
	failErr error
	// onExecute runs before every command.
	onExecute func(cmd command.Command)
}

func newLog(name string) *memoryLog {
	return &memoryLog{name: name, events: map[string][]note.Event{}}
}

func (l *memoryLog) nextID() string {
	l.seq++
	return fmt.Sprintf("%s-%d", l.name, l.seq)
}

// write appends payloads to a note as if a user edited it, and returns the
// produced events.
func (l *memoryLog) write(t *testing.T, noteID string, payloads ...note.Payload) []note.Event {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []note.Event
	for _, p := range payloads {
		current, err := l.project(noteID, -1)
		require.NoError(t, err)
		cmd, err := command.FromPayload(command.Target{NoteID: noteID, LastRevision: current.Revision}, p)
		require.NoError(t, err)
		_, applied, err := command.Apply(current, cmd, l.nextID())
		require.NoError(t, err)
		require.NotNil(t, applied, "write of %s must change the note", p.Type())
		l.events[noteID] = append(l.events[noteID], *applied)
		out = append(out, *applied)
	}
	return out
}

func (l *memoryLog) Execute(_ context.Context, cmd command.Command) (*command.Result, error) {
	if l.onExecute != nil {
		l.onExecute(cmd)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.commands = append(l.commands, cmd)
	if l.failAt > 0 && len(l.commands) == l.failAt {
		return nil, l.failErr
	}

	t := command.TargetOf(cmd)
	current, err := l.project(t.NoteID, -1)
	if err != nil {
		return nil, err
	}
	_, applied, err := command.Apply(current, cmd, l.nextID())
	if err != nil {
		return nil, err
	}
	if applied == nil {
		return &command.Result{}, nil
	}
	l.events[t.NoteID] = append(l.events[t.NoteID], *applied)
	return &command.Result{Event: applied}, nil
}

func (l *memoryLog) NoteAt(_ context.Context, noteID string, revision int) (note.Note, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.project(noteID, revision)
}

// project folds the note up to revision, or entirely when revision < 0.
func (l *memoryLog) project(noteID string, revision int) (note.Note, error) {
	events := l.events[noteID]
	if revision >= 0 && revision < len(events) {
		events = events[:revision]
	}
	return note.Fold(note.Empty(noteID), events)
}

func (l *memoryLog) note(t *testing.T, noteID string) note.Note {
	t.Helper()
	n, err := l.NoteAt(context.Background(), noteID, -1)
	require.NoError(t, err)
	return n
}

func (l *memoryLog) executed() []command.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]command.Command(nil), l.commands...)
}

// strategyFunc adapts a function to Strategy.
type strategyFunc func(ctx context.Context, noteID string, local, remote []note.Event) (*Resolution, error)

func (f strategyFunc) Resolve(ctx context.Context, noteID string, local, remote []note.Event) (*Resolution, error) {
	return f(ctx, noteID, local, remote)
}

// failingStore fails every save after the first okSaves.
type failingStore struct {
	*MemoryStateStore
	okSaves int
}

func (s *failingStore) Save(ctx context.Context, st *State) error {
	if s.Saves() >= s.okSaves {
		return fmt.Errorf("disk full")
	}
	return s.MemoryStateStore.Save(ctx, st)
}

var errRemoveFailed = errors.New("remove failed")

// flakyRepository fails the first failRemoves removals.
type flakyRepository struct {
	EventRepository
	mu          sync.Mutex
	failRemoves int
}

func (r *flakyRepository) Remove(ctx context.Context, e note.Event) error {
	r.mu.Lock()
	fail := r.failRemoves > 0
	if fail {
		r.failRemoves--
	}
	r.mu.Unlock()
	if fail {
		return errRemoveFailed
	}
	return r.EventRepository.Remove(ctx, e)
}

func (r *flakyRepository) Len() int {
	events, err := r.Events(context.Background())
	if err != nil {
		return -1
	}
	return len(events)
}
