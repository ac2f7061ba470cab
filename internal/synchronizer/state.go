package synchronizer

import (
	"context"
	"maps"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// State tracks revisions per note and the ids of events this synchronizer
// produced itself. A State is never mutated after it has been saved; every
// commit works on a clone with a higher generation.
type State struct {
	Generation uint64

	// LastSynchronized* mark the highest pending revision a committed
	// action compensated. Pending events at or below the mark are leftovers
	// of a commit whose cleanup did not finish.
	LastSynchronizedLocalRevision  map[string]int
	LastSynchronizedRemoteRevision map[string]int
	LastKnownLocalRevision         map[string]int
	LastKnownRemoteRevision        map[string]int

	LocalEventIDsToIgnore  mapset.Set[string]
	RemoteEventIDsToIgnore mapset.Set[string]
}

// NewState returns the empty state of a first run.
func NewState() *State {
	return &State{
		LastSynchronizedLocalRevision:  map[string]int{},
		LastSynchronizedRemoteRevision: map[string]int{},
		LastKnownLocalRevision:         map[string]int{},
		LastKnownRemoteRevision:        map[string]int{},
		LocalEventIDsToIgnore:          mapset.NewThreadUnsafeSet[string](),
		RemoteEventIDsToIgnore:         mapset.NewThreadUnsafeSet[string](),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{
		Generation:                     s.Generation,
		LastSynchronizedLocalRevision:  cloneRevisions(s.LastSynchronizedLocalRevision),
		LastSynchronizedRemoteRevision: cloneRevisions(s.LastSynchronizedRemoteRevision),
		LastKnownLocalRevision:         cloneRevisions(s.LastKnownLocalRevision),
		LastKnownRemoteRevision:        cloneRevisions(s.LastKnownRemoteRevision),
		LocalEventIDsToIgnore:          mapset.NewThreadUnsafeSet[string](),
		RemoteEventIDsToIgnore:         mapset.NewThreadUnsafeSet[string](),
	}
	if s.LocalEventIDsToIgnore != nil {
		c.LocalEventIDsToIgnore.Append(s.LocalEventIDsToIgnore.ToSlice()...)
	}
	if s.RemoteEventIDsToIgnore != nil {
		c.RemoteEventIDsToIgnore.Append(s.RemoteEventIDsToIgnore.ToSlice()...)
	}
	return c
}

// next returns the clone a commit works on.
func (s *State) next() *State {
	c := s.Clone()
	c.Generation++
	return c
}

// raise lifts the revision recorded for noteID to rev when rev is higher.
func raise(revisions map[string]int, noteID string, rev int) {
	if rev > revisions[noteID] {
		revisions[noteID] = rev
	}
}

func cloneRevisions(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return maps.Clone(m)
}

// StateStore persists the state. Save must replace the stored value
// atomically.
type StateStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}

var _ StateStore = (*MemoryStateStore)(nil)

// MemoryStateStore keeps the state in memory.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *State
	saves int
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{state: NewState()}
}

func (m *MemoryStateStore) Load(context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

func (m *MemoryStateStore) Save(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	m.saves++
	return nil
}

// Saves returns how many times the state was saved.
func (m *MemoryStateStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
