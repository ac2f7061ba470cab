package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmined/syftnotes/internal/note"
)

var (
	// ErrRemoteUnavailable means the target could not be reached. The command
	// may be retried unchanged.
	ErrRemoteUnavailable = errors.New("command: remote unavailable")
	// ErrCommandRejected means the target refused the command, usually because
	// the note moved past the command's last revision.
	ErrCommandRejected = errors.New("command: rejected")
)

// Result describes what the target did with a command. Event is nil when the
// command changed nothing there.
type Result struct {
	Event *note.Event
}

// Executor runs commands against one note log.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, cmd Command) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return f(ctx, cmd)
}

// Apply runs cmd against the projection n, which must be the current state
// of the note in the target log. The produced event gets eventID.
func Apply(n note.Note, cmd Command, eventID string) (note.Note, *note.Event, error) {
	t := TargetOf(cmd)
	if t.NoteID != n.ID {
		return n, nil, fmt.Errorf("%w: command for note %q applied to %q", ErrCommandRejected, t.NoteID, n.ID)
	}
	if t.LastRevision != n.Revision {
		return n, nil, fmt.Errorf("%w: note %s is at revision %d, command expects %d", ErrCommandRejected, n.ID, n.Revision, t.LastRevision)
	}
	return n.Apply(Event(cmd, eventID))
}

// IsRetryable reports whether a failed command may succeed later unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
