// Package synchronizer reconciles the pending events of a local and a remote
// note log until both describe the same notes.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/note"
)

var (
	ErrSyncAlreadyRunning       = errors.New("sync already running")
	ErrInconsistentCompensation = errors.New("inconsistent compensation")
)

// Replica is one side of the synchronization: the events it has not
// synchronized yet and the executor appending to its log.
type Replica struct {
	Repository EventRepository
	Executor   command.Executor
}

// Synchronizer runs synchronization passes. Passes never overlap.
type Synchronizer struct {
	local    Replica
	remote   Replica
	strategy Strategy
	store    StateStore

	muSync   sync.Mutex
	muReport sync.RWMutex
	last     *Report
}

func New(local, remote Replica, strategy Strategy, store StateStore) *Synchronizer {
	return &Synchronizer{
		local:    local,
		remote:   remote,
		strategy: strategy,
		store:    store,
	}
}

// LastReport returns the report of the most recent pass, nil before the
// first one.
func (s *Synchronizer) LastReport() *Report {
	s.muReport.RLock()
	defer s.muReport.RUnlock()
	return s.last
}

// Synchronize runs one pass. It returns ErrSyncAlreadyRunning when a pass is
// in progress. Failures of single notes are recorded in the report and do
// not fail the pass. Cancelling ctx stops the pass before the next note.
func (s *Synchronizer) Synchronize(ctx context.Context) (*Report, error) {
	if !s.muSync.TryLock() {
		return nil, ErrSyncAlreadyRunning
	}
	defer s.muSync.Unlock()

	p, err := s.newPass(ctx)
	if err != nil {
		return nil, err
	}

	// commands of a started note always run to completion
	execCtx := context.WithoutCancel(ctx)

	for _, noteID := range p.noteIDs() {
		if err := ctx.Err(); err != nil {
			p.report.Cancelled = true
			break
		}
		s.synchronizeNote(execCtx, p, noteID)
	}

	p.report.Generation = p.state.Generation
	p.report.Duration = time.Since(p.report.StartedAt)
	s.muReport.Lock()
	s.last = p.report
	s.muReport.Unlock()

	if p.report.HasChanges() || len(p.report.Failed) > 0 {
		slog.Info("sync",
			"committed", len(p.report.Committed),
			"skipped", len(p.report.Skipped),
			"failed", len(p.report.Failed),
			"commands", p.report.Commands,
			"dropped", p.report.Dropped,
			"generation", p.report.Generation,
			"cancelled", p.report.Cancelled,
			"tsTotal", p.report.Duration,
		)
	}
	return p.report, nil
}

// pass is the working set of one Synchronize call.
type pass struct {
	state  *State
	local  map[string][]note.Event
	remote map[string][]note.Event
	report *Report
}

func (p *pass) noteIDs() []string {
	ids := make([]string, 0, len(p.local)+len(p.remote))
	for id := range p.local {
		ids = append(ids, id)
	}
	for id := range p.remote {
		if _, ok := p.local[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (s *Synchronizer) newPass(ctx context.Context) (*pass, error) {
	report := &Report{StartedAt: time.Now(), Errors: map[string]error{}}

	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state = state.Clone()

	localEvents, err := s.local.Repository.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local events: %w", err)
	}
	remoteEvents, err := s.remote.Repository.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("read remote events: %w", err)
	}

	for _, e := range localEvents {
		raise(state.LastKnownLocalRevision, e.NoteID, e.Revision)
	}
	for _, e := range remoteEvents {
		raise(state.LastKnownRemoteRevision, e.NoteID, e.Revision)
	}

	localEvents, droppedLocal := dropIgnored(ctx, s.local.Repository, localEvents, state.LocalEventIDsToIgnore)
	remoteEvents, droppedRemote := dropIgnored(ctx, s.remote.Repository, remoteEvents, state.RemoteEventIDsToIgnore)
	localEvents, staleLocal := dropSynchronized(ctx, s.local.Repository, localEvents, state.LastSynchronizedLocalRevision)
	remoteEvents, staleRemote := dropSynchronized(ctx, s.remote.Repository, remoteEvents, state.LastSynchronizedRemoteRevision)
	report.Dropped = droppedLocal + droppedRemote + staleLocal + staleRemote

	if report.Dropped > 0 {
		state.Generation++
		if err := s.store.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
	}

	return &pass{
		state:  state,
		local:  groupByNote(localEvents),
		remote: groupByNote(remoteEvents),
		report: report,
	}, nil
}

// dropIgnored removes the events this synchronizer produced itself from the
// repository and forgets their ids. Ids stay in the set until the removal
// succeeded.
func dropIgnored(ctx context.Context, repo EventRepository, events []note.Event, ignore mapset.Set[string]) ([]note.Event, int) {
	kept := events[:0:0]
	dropped := 0
	for _, e := range events {
		if !ignore.Contains(e.EventID) {
			kept = append(kept, e)
			continue
		}
		if err := repo.Remove(ctx, e); err != nil {
			slog.Warn("sync drop ignored event", "event", e, "error", err)
			continue
		}
		ignore.Remove(e.EventID)
		dropped++
	}
	return kept, dropped
}

// dropSynchronized removes events a committed action already compensated.
// They are left behind when the process stops between saving the state and
// consuming the action.
func dropSynchronized(ctx context.Context, repo EventRepository, events []note.Event, synchronized map[string]int) ([]note.Event, int) {
	kept := events[:0:0]
	dropped := 0
	for _, e := range events {
		if e.Revision > synchronized[e.NoteID] {
			kept = append(kept, e)
			continue
		}
		if err := repo.Remove(ctx, e); err != nil {
			slog.Warn("sync drop synchronized event", "event", e, "error", err)
			continue
		}
		dropped++
	}
	return kept, dropped
}

func groupByNote(events []note.Event) map[string][]note.Event {
	byNote := make(map[string][]note.Event)
	for _, e := range events {
		byNote[e.NoteID] = append(byNote[e.NoteID], e)
	}
	for _, list := range byNote {
		slices.SortStableFunc(list, func(a, b note.Event) int { return a.Revision - b.Revision })
	}
	return byNote
}

func (s *Synchronizer) synchronizeNote(ctx context.Context, p *pass, noteID string) {
	local, remote := p.local[noteID], p.remote[noteID]

	res, err := s.strategy.Resolve(ctx, noteID, local, remote)
	if err != nil {
		p.report.fail(noteID, fmt.Errorf("resolve: %w", err))
		return
	}
	if res == nil {
		slog.Debug("sync", "note", noteID, "outcome", OutcomeSkipped, "local", len(local), "remote", len(remote))
		p.report.Skipped = append(p.report.Skipped, noteID)
		return
	}

	if err := validate(res, local, remote); err != nil {
		p.report.fail(noteID, err)
		return
	}

	for i, action := range res.Actions {
		next := p.state.next()
		commands, err := s.execute(ctx, next, action)
		p.report.Commands += commands
		if err != nil {
			// keep the revisions the produced events took. Their ids are not
			// ignored, so they come back as pending events and get reconciled
			// by the next pass instead of being replayed.
			if commands > 0 {
				if saveErr := s.store.Save(ctx, next); saveErr != nil {
					slog.Error("sync save partial progress", "note", noteID, "error", saveErr)
				} else {
					p.state = next
				}
			}
			p.report.fail(noteID, fmt.Errorf("action %d/%d: %w", i+1, len(res.Actions), err))
			return
		}

		if rev := maxRevision(action.CompensatedLocalEvents); rev > 0 {
			raise(next.LastSynchronizedLocalRevision, noteID, rev)
		}
		if rev := maxRevision(action.CompensatedRemoteEvents); rev > 0 {
			raise(next.LastSynchronizedRemoteRevision, noteID, rev)
		}
		if err := s.store.Save(ctx, next); err != nil {
			p.report.fail(noteID, fmt.Errorf("save state: %w", err))
			return
		}
		p.state = next

		if err := s.consume(ctx, action); err != nil {
			p.report.fail(noteID, err)
			return
		}
	}

	slog.Info("sync", "note", noteID, "outcome", OutcomeCommitted, "strategy", res.Strategy,
		"actions", len(res.Actions), "events", res.newEventCount())
	p.report.Committed = append(p.report.Committed, noteID)
}

// validate checks that the resolution consumes exactly the pending events.
func validate(res *Resolution, local, remote []note.Event) error {
	compLocal, compRemote := res.compensatedIDs()
	pendingLocal := mapset.NewThreadUnsafeSet(note.EventIDs(local)...)
	pendingRemote := mapset.NewThreadUnsafeSet(note.EventIDs(remote)...)

	if !compLocal.Equal(pendingLocal) {
		return fmt.Errorf("%w: %s compensates local events %v, pending %v", ErrInconsistentCompensation,
			res.Strategy, sorted(compLocal), sorted(pendingLocal))
	}
	if !compRemote.Equal(pendingRemote) {
		return fmt.Errorf("%w: %s compensates remote events %v, pending %v", ErrInconsistentCompensation,
			res.Strategy, sorted(compRemote), sorted(pendingRemote))
	}
	return nil
}

// execute appends the action's new events, remote first. It returns the
// number of commands that succeeded. The produced events are ignored only
// once every command of the action succeeded.
func (s *Synchronizer) execute(ctx context.Context, state *State, action CompensatingAction) (int, error) {
	done := 0
	var producedRemote, producedLocal []string
	for _, e := range action.NewRemoteEvents {
		id, err := run(ctx, s.remote.Executor, e, state.LastKnownRemoteRevision)
		if err != nil {
			return done, fmt.Errorf("remote %s: %w", e.Type(), err)
		}
		producedRemote = appendID(producedRemote, id)
		done++
	}
	for _, e := range action.NewLocalEvents {
		id, err := run(ctx, s.local.Executor, e, state.LastKnownLocalRevision)
		if err != nil {
			return done, fmt.Errorf("local %s: %w", e.Type(), err)
		}
		producedLocal = appendID(producedLocal, id)
		done++
	}
	state.RemoteEventIDsToIgnore.Append(producedRemote...)
	state.LocalEventIDsToIgnore.Append(producedLocal...)
	return done, nil
}

// run executes one event and returns the id of the event it produced, if any.
func run(ctx context.Context, exec command.Executor, e note.Event, lastKnown map[string]int) (string, error) {
	cmd := command.FromEvent(e, lastKnown[e.NoteID])
	res, err := exec.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res == nil || res.Event == nil {
		return "", nil
	}
	raise(lastKnown, res.Event.NoteID, res.Event.Revision)
	return res.Event.EventID, nil
}

func appendID(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	return append(ids, id)
}

// consume removes the events an action compensated.
func (s *Synchronizer) consume(ctx context.Context, action CompensatingAction) error {
	for _, e := range action.CompensatedRemoteEvents {
		if err := s.remote.Repository.Remove(ctx, e); err != nil {
			return fmt.Errorf("remove remote event %s: %w", e.EventID, err)
		}
	}
	for _, e := range action.CompensatedLocalEvents {
		if err := s.local.Repository.Remove(ctx, e); err != nil {
			return fmt.Errorf("remove local event %s: %w", e.EventID, err)
		}
	}
	return nil
}

func sorted(set mapset.Set[string]) []string {
	ids := set.ToSlice()
	slices.Sort(ids)
	return ids
}
