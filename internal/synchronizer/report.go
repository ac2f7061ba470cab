package synchronizer

import (
	"log/slog"
	"slices"
	"time"
)

// Outcome is what a pass did with one note.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Report summarizes a pass.
type Report struct {
	StartedAt  time.Time
	Duration   time.Duration
	Generation uint64

	Committed []string
	Skipped   []string
	Failed    []string
	Errors    map[string]error

	// Commands counts the commands that succeeded on either side.
	Commands int
	// Dropped counts events discarded because this synchronizer produced them.
	Dropped int
	// Cancelled is set when the pass stopped before visiting every note.
	Cancelled bool
}

// HasChanges reports whether the pass touched any repository or log.
func (r *Report) HasChanges() bool {
	return len(r.Committed) > 0 || r.Commands > 0 || r.Dropped > 0
}

// Outcome returns the outcome of a note, and false when the pass did not
// visit it.
func (r *Report) Outcome(noteID string) (Outcome, bool) {
	switch {
	case slices.Contains(r.Committed, noteID):
		return OutcomeCommitted, true
	case slices.Contains(r.Failed, noteID):
		return OutcomeFailed, true
	case slices.Contains(r.Skipped, noteID):
		return OutcomeSkipped, true
	default:
		return "", false
	}
}

func (r *Report) fail(noteID string, err error) {
	slog.Warn("sync", "note", noteID, "outcome", OutcomeFailed, "error", err)
	r.Failed = append(r.Failed, noteID)
	r.Errors[noteID] = err
}
