package synchronizer

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftnotes/internal/note"
)

// EventRepository holds the events of one side that were not synchronized
// yet.
type EventRepository interface {
	// Events returns a snapshot of every pending event.
	Events(ctx context.Context) ([]note.Event, error)
	Add(ctx context.Context, e note.Event) error
	// Remove deletes a pending event. Removing an absent event is not an error.
	Remove(ctx context.Context, e note.Event) error
}

// CompensatingAction consumes pending events and lists the new events that
// must be appended to each side in exchange.
type CompensatingAction struct {
	CompensatedLocalEvents  []note.Event
	CompensatedRemoteEvents []note.Event
	NewLocalEvents          []note.Event
	NewRemoteEvents         []note.Event
}

// Resolution is the ordered list of actions that settles a note. Strategy
// names the chain link that produced it.
type Resolution struct {
	Strategy string
	Actions  []CompensatingAction
}

// compensatedIDs returns the ids consumed by all actions on each side.
func (r *Resolution) compensatedIDs() (local, remote mapset.Set[string]) {
	local = mapset.NewThreadUnsafeSet[string]()
	remote = mapset.NewThreadUnsafeSet[string]()
	for _, a := range r.Actions {
		local.Append(note.EventIDs(a.CompensatedLocalEvents)...)
		remote.Append(note.EventIDs(a.CompensatedRemoteEvents)...)
	}
	return local, remote
}

func (r *Resolution) newEventCount() int {
	n := 0
	for _, a := range r.Actions {
		n += len(a.NewLocalEvents) + len(a.NewRemoteEvents)
	}
	return n
}

// maxRevision returns the highest revision among events, 0 for none.
func maxRevision(events []note.Event) int {
	rev := 0
	for _, e := range events {
		rev = max(rev, e.Revision)
	}
	return rev
}
