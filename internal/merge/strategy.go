// Package merge holds the policies that decide what to do when a note was
// changed on both sides since the last synchronization.
package merge

import (
	"fmt"

	"github.com/openmined/syftnotes/internal/note"
)

// Input is everything a strategy may look at. Base is the last common
// projection; Local and Remote are Base with each side's pending events
// replayed on top.
type Input struct {
	NoteID       string
	LocalEvents  []note.Event
	RemoteEvents []note.Event
	Base         note.Note
	Local        note.Note
	Remote       note.Note
}

// Solution lists the events to append to each side. An empty solution means
// both sides already agree and the pending events can simply be consumed.
type Solution struct {
	NewLocalEvents  []note.Event
	NewRemoteEvents []note.Event
}

// IsEmpty reports whether the solution requires no new events.
func (s *Solution) IsEmpty() bool {
	return len(s.NewLocalEvents) == 0 && len(s.NewRemoteEvents) == 0
}

// Strategy resolves a divergence. A nil solution means the strategy cannot
// decide, and the note stays pending.
type Strategy interface {
	Merge(in Input) *Solution
}

// Name identifies a configured strategy.
type Name string

const (
	NameEquality Name = "equality"
	NameKeepBoth Name = "keep-both"
	NameManual   Name = "manual"
)

func (n Name) IsValid() bool {
	switch n {
	case NameEquality, NameKeepBoth, NameManual:
		return true
	default:
		return false
	}
}

// AllNames returns every supported strategy name.
func AllNames() []Name {
	return []Name{NameEquality, NameKeepBoth, NameManual}
}

// New builds the strategy registered under name.
func New(name Name) (Strategy, error) {
	switch name {
	case NameEquality:
		return &Equality{}, nil
	case NameKeepBoth:
		return NewKeepBoth(nil), nil
	case NameManual:
		return NewManual(nil), nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", name)
	}
}
