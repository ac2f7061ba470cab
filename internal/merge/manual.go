package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftnotes/internal/difference"
	"github.com/openmined/syftnotes/internal/note"
)

const conflictEventBufferSize = 16

var (
	ErrNoConflict    = errors.New("merge: no conflict for note")
	ErrInvalidChoice = errors.New("merge: invalid choice")
)

var _ Strategy = (*Manual)(nil)

// Choice is how a user resolved a conflict.
type Choice string

const (
	ChoiceLocal  Choice = "local"
	ChoiceRemote Choice = "remote"
	ChoiceBoth   Choice = "both"
)

func (c Choice) IsValid() bool {
	switch c {
	case ChoiceLocal, ChoiceRemote, ChoiceBoth:
		return true
	default:
		return false
	}
}

// Conflict is a divergence waiting for a decision.
type Conflict struct {
	Input
	Differences difference.Differences
	Choice      Choice
	DetectedAt  time.Time
	ResolvedAt  time.Time
}

// Resolved reports whether a choice was recorded.
func (c *Conflict) Resolved() bool {
	return c.Choice != ""
}

// ConflictEventType describes a change in the set of conflicts.
type ConflictEventType string

const (
	ConflictOpened   ConflictEventType = "opened"
	ConflictResolved ConflictEventType = "resolved"
	ConflictCleared  ConflictEventType = "cleared"
)

type ConflictEvent struct {
	Type   ConflictEventType
	NoteID string
}

// Manual parks divergences until a user picks a side.
type Manual struct {
	keepBoth *KeepBoth

	mu         sync.RWMutex
	conflicts  map[string]*Conflict
	conflicted mapset.Set[string]

	subsMu sync.RWMutex
	subs   []chan ConflictEvent
}

// NewManual returns the strategy. newID is used for the copies created when
// a conflict is resolved with ChoiceBoth.
func NewManual(newID func() string) *Manual {
	return &Manual{
		keepBoth:   NewKeepBoth(newID),
		conflicts:  make(map[string]*Conflict),
		conflicted: mapset.NewSet[string](),
	}
}

func (m *Manual) Merge(in Input) *Solution {
	diffs := difference.Compare(in.Local, in.Remote)
	if diffs.Empty() {
		m.clear(in.NoteID)
		return &Solution{}
	}

	m.mu.Lock()
	existing, ok := m.conflicts[in.NoteID]
	if ok && sameInput(existing.Input, in) {
		choice := existing.Choice
		m.mu.Unlock()
		if choice == "" {
			return nil
		}
		slog.Info("merge", "strategy", NameManual, "note", in.NoteID, "choice", choice)
		sol := m.solve(in, diffs, choice)
		// the solution consumes the pending events, so this input is not
		// seen again
		m.clear(in.NoteID)
		return sol
	}

	m.conflicts[in.NoteID] = &Conflict{
		Input:       in,
		Differences: diffs,
		DetectedAt:  time.Now(),
	}
	m.conflicted.Add(in.NoteID)
	m.mu.Unlock()

	if ok {
		slog.Warn("merge", "strategy", NameManual, "note", in.NoteID, "conflict", "reopened")
	} else {
		slog.Warn("merge", "strategy", NameManual, "note", in.NoteID, "conflict", "opened", "differences", len(diffs))
	}
	m.broadcast(ConflictEvent{Type: ConflictOpened, NoteID: in.NoteID})
	return nil
}

func (m *Manual) solve(in Input, diffs difference.Differences, choice Choice) *Solution {
	switch choice {
	case ChoiceLocal:
		return &Solution{NewRemoteEvents: difference.Compensate(in.NoteID, diffs, difference.Left).RightEvents}
	case ChoiceRemote:
		return &Solution{NewLocalEvents: difference.Compensate(in.NoteID, diffs, difference.Right).LeftEvents}
	default:
		return m.keepBoth.Merge(in)
	}
}

// Resolve records the choice for a pending conflict. The next Merge with the
// same input returns the corresponding solution and forgets the conflict.
func (m *Manual) Resolve(noteID string, choice Choice) error {
	if !choice.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}

	m.mu.Lock()
	c, ok := m.conflicts[noteID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoConflict, noteID)
	}
	c.Choice = choice
	c.ResolvedAt = time.Now()
	m.conflicted.Remove(noteID)
	m.mu.Unlock()

	slog.Info("merge", "strategy", NameManual, "note", noteID, "resolved", choice)
	m.broadcast(ConflictEvent{Type: ConflictResolved, NoteID: noteID})
	return nil
}

// Conflict returns a copy of the conflict recorded for a note.
func (m *Manual) Conflict(noteID string) (Conflict, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conflicts[noteID]
	if !ok {
		return Conflict{}, false
	}
	return *c, true
}

// ConflictedIDs returns the sorted ids of notes with unresolved conflicts.
func (m *Manual) ConflictedIDs() []string {
	ids := m.conflicted.ToSlice()
	slices.Sort(ids)
	return ids
}

// IsConflicted reports whether a note waits for a decision.
func (m *Manual) IsConflicted(noteID string) bool {
	return m.conflicted.Contains(noteID)
}

// Subscribe returns a channel receiving conflict set changes. Slow
// subscribers miss events instead of blocking merges.
func (m *Manual) Subscribe() <-chan ConflictEvent {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	ch := make(chan ConflictEvent, conflictEventBufferSize)
	m.subs = append(m.subs, ch)
	return ch
}

// Unsubscribe closes a channel obtained from Subscribe.
func (m *Manual) Unsubscribe(ch <-chan ConflictEvent) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for i, sub := range m.subs {
		if sub == ch {
			close(sub)
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			break
		}
	}
}

func (m *Manual) clear(noteID string) {
	m.mu.Lock()
	_, ok := m.conflicts[noteID]
	delete(m.conflicts, noteID)
	m.conflicted.Remove(noteID)
	m.mu.Unlock()

	if ok {
		m.broadcast(ConflictEvent{Type: ConflictCleared, NoteID: noteID})
	}
}

func (m *Manual) broadcast(event ConflictEvent) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	for _, sub := range m.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// sameInput reports whether a merge sees the same divergence again.
func sameInput(a, b Input) bool {
	if !slices.Equal(note.EventIDs(a.LocalEvents), note.EventIDs(b.LocalEvents)) ||
		!slices.Equal(note.EventIDs(a.RemoteEvents), note.EventIDs(b.RemoteEvents)) {
		return false
	}
	return a.Base.EqualIgnoringRevision(b.Base) &&
		a.Local.EqualIgnoringRevision(b.Local) &&
		a.Remote.EqualIgnoringRevision(b.Remote)
}
