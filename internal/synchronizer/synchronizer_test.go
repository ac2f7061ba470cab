package synchronizer

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/eventrepo"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	localLog, remoteLog   *memoryLog
	localRepo, remoteRepo *eventrepo.Memory
	store                 *MemoryStateStore
	sync                  *Synchronizer
}

func newHarness(t *testing.T, merger merge.Strategy) *harness {
	t.Helper()
	h := &harness{
		localLog:   newLog("local"),
		remoteLog:  newLog("remote"),
		localRepo:  eventrepo.NewMemory(),
		remoteRepo: eventrepo.NewMemory(),
		store:      NewMemoryStateStore(),
	}
	if merger == nil {
		merger = &merge.Equality{}
	}
	chain := NewChain(&Merging{Merger: merger, LocalHistory: h.localLog, RemoteHistory: h.remoteLog})
	h.sync = h.build(chain, h.store)
	return h
}

func (h *harness) build(strategy Strategy, store StateStore) *Synchronizer {
	return New(
		Replica{Repository: h.localRepo, Executor: h.localLog},
		Replica{Repository: h.remoteRepo, Executor: h.remoteLog},
		strategy,
		store,
	)
}

// editLocal writes to the local log and queues the events as pending.
func (h *harness) editLocal(t *testing.T, noteID string, payloads ...note.Payload) []note.Event {
	t.Helper()
	events := h.localLog.write(t, noteID, payloads...)
	for _, e := range events {
		require.NoError(t, h.localRepo.Add(context.Background(), e))
	}
	return events
}

func (h *harness) editRemote(t *testing.T, noteID string, payloads ...note.Payload) []note.Event {
	t.Helper()
	events := h.remoteLog.write(t, noteID, payloads...)
	for _, e := range events {
		require.NoError(t, h.remoteRepo.Add(context.Background(), e))
	}
	return events
}

// shared writes the same history to both logs without queueing anything, as
// if it had been synchronized before.
func (h *harness) shared(t *testing.T, noteID string, payloads ...note.Payload) {
	t.Helper()
	local := h.localLog.write(t, noteID, payloads...)
	h.remoteLog.write(t, noteID, payloads...)

	st, err := h.store.Load(context.Background())
	require.NoError(t, err)
	rev := local[len(local)-1].Revision
	st.LastKnownLocalRevision[noteID] = rev
	st.LastKnownRemoteRevision[noteID] = rev
	st.LastSynchronizedLocalRevision[noteID] = rev
	st.LastSynchronizedRemoteRevision[noteID] = rev
	require.NoError(t, h.store.Save(context.Background(), st))
}

// importAll queues every event the logs produced that is not pending yet,
// the way the importers feed the repositories.
func (h *harness) importAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, pair := range []struct {
		log  *memoryLog
		repo *eventrepo.Memory
	}{{h.localLog, h.localRepo}, {h.remoteLog, h.remoteRepo}} {
		for _, events := range pair.log.events {
			for _, e := range events {
				require.NoError(t, pair.repo.Add(ctx, e))
			}
		}
	}
}

func (h *harness) state(t *testing.T) *State {
	t.Helper()
	st, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return st
}

func TestSynchronize_LocalOnlyScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "n1", note.Created{Path: "/", Title: "t"}, note.ContentChanged{Content: "A"})

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"n1"}, report.Committed)
	assert.Equal(t, 2, report.Commands)

	cmds := h.remoteLog.executed()
	require.Len(t, cmds, 2)
	assert.Equal(t, command.CreateNote{Target: command.Target{NoteID: "n1", LastRevision: 0}, Path: "/", Title: "t"}, cmds[0])
	assert.Equal(t, command.ChangeContent{Target: command.Target{NoteID: "n1", LastRevision: 1}, Content: "A"}, cmds[1])
	assert.Empty(t, h.localLog.executed())

	assert.Zero(t, h.localRepo.Len())

	st := h.state(t)
	assert.Equal(t, 2, st.LastSynchronizedLocalRevision["n1"])
	assert.Equal(t, 2, st.LastKnownRemoteRevision["n1"])
	assert.True(t, st.RemoteEventIDsToIgnore.Contains("remote-1", "remote-2"))
	assert.True(t, h.localLog.note(t, "n1").EqualIgnoringRevision(h.remoteLog.note(t, "n1")))
}

func TestSynchronize_LocalOnlyPreservesOrder(t *testing.T) {
	h := newHarness(t, nil)
	payloads := []note.Payload{
		note.Created{Title: "t"},
		note.Moved{Path: "/a"},
		note.AttachmentAdded{Name: "x", Content: []byte("x")},
		note.TitleChanged{Title: "u"},
		note.Deleted{},
	}
	events := h.editLocal(t, "n1", payloads...)

	_, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)

	cmds := h.remoteLog.executed()
	require.Len(t, cmds, len(events))
	for i, cmd := range cmds {
		assert.Equal(t, payloads[i], cmd.Payload())
		assert.Equal(t, i, command.TargetOf(cmd).LastRevision)
	}
	assert.Zero(t, h.localRepo.Len())
}

func TestSynchronize_RemoteOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.shared(t, "n1", note.Created{Title: "t"})
	h.editRemote(t, "n1", note.TitleChanged{Title: "from server"})

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, report.Committed)

	cmds := h.localLog.executed()
	require.Len(t, cmds, 1)
	assert.Equal(t, command.ChangeTitle{Target: command.Target{NoteID: "n1", LastRevision: 1}, Title: "from server"}, cmds[0])
	assert.Zero(t, h.remoteRepo.Len())
	assert.Equal(t, "from server", h.localLog.note(t, "n1").Title)

	st := h.state(t)
	assert.Equal(t, 2, st.LastKnownLocalRevision["n1"])
	assert.True(t, st.LocalEventIDsToIgnore.Contains("local-2"))
}

func TestSynchronize_EqualityConflictStaysPending(t *testing.T) {
	h := newHarness(t, &merge.Equality{})
	h.shared(t, "n2", note.Created{Title: "base"})
	h.editLocal(t, "n2", note.TitleChanged{Title: "X"})
	h.editRemote(t, "n2", note.TitleChanged{Title: "Y"})

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"n2"}, report.Skipped)
	assert.Empty(t, h.localLog.executed())
	assert.Empty(t, h.remoteLog.executed())
	assert.Equal(t, 1, h.localRepo.Len())
	assert.Equal(t, 1, h.remoteRepo.Len())
}

func TestSynchronize_EqualityConverged(t *testing.T) {
	h := newHarness(t, &merge.Equality{})
	h.shared(t, "n2", note.Created{Title: "base"})
	h.editLocal(t, "n2", note.TitleChanged{Title: "X"})
	h.editRemote(t, "n2", note.TitleChanged{Title: "X"})

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"n2"}, report.Committed)
	assert.Empty(t, h.localLog.executed())
	assert.Empty(t, h.remoteLog.executed())
	assert.Zero(t, h.localRepo.Len())
	assert.Zero(t, h.remoteRepo.Len())
}

func TestSynchronize_KeepBothConverges(t *testing.T) {
	ids := 0
	keepBoth := merge.NewKeepBoth(func() string {
		ids++
		return "copy" + string(rune('0'+ids))
	})
	h := newHarness(t, keepBoth)
	h.shared(t, "n1", note.Created{Path: "/", Title: "base", Content: "body"})
	h.editLocal(t, "n1", note.ContentChanged{Content: "local"})
	h.editRemote(t, "n1", note.ContentChanged{Content: "remote"}, note.TitleChanged{Title: "renamed"})

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"n1"}, report.Committed, report.Errors)

	assert.True(t, h.localLog.note(t, "n1").EqualIgnoringRevision(h.remoteLog.note(t, "n1")))
	assert.Equal(t, "remote", h.localLog.note(t, "n1").Content)

	localCopy, remoteCopy := h.localLog.note(t, "copy1"), h.remoteLog.note(t, "copy1")
	assert.True(t, localCopy.EqualIgnoringRevision(remoteCopy))
	assert.Equal(t, "local", localCopy.Content)
	assert.Equal(t, "base", localCopy.Title)

	// the events the pass produced come back through the importers and are
	// dropped instead of being synchronized again
	h.importAll(t)
	for _, e := range h.localLog.events["n1"][:2] {
		require.NoError(t, h.localRepo.Remove(context.Background(), e))
	}
	for _, e := range h.remoteLog.events["n1"] {
		require.NoError(t, h.remoteRepo.Remove(context.Background(), e))
	}

	before := len(h.localLog.executed()) + len(h.remoteLog.executed())
	report, err = h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Committed)
	assert.Equal(t, before, len(h.localLog.executed())+len(h.remoteLog.executed()))
	assert.Zero(t, h.localRepo.Len())
	assert.Zero(t, h.remoteRepo.Len())

	st := h.state(t)
	assert.Zero(t, st.LocalEventIDsToIgnore.Cardinality())
	assert.Zero(t, st.RemoteEventIDsToIgnore.Cardinality())
}

func TestSynchronize_DropsIgnoredEvents(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "n1", note.Created{Title: "t"})

	_, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)

	for _, e := range h.remoteLog.events["n1"] {
		require.NoError(t, h.remoteRepo.Add(context.Background(), e))
	}
	require.Equal(t, 1, h.remoteRepo.Len())

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped)
	assert.Empty(t, report.Committed)
	assert.Empty(t, h.localLog.executed())
	assert.Zero(t, h.remoteRepo.Len())
	assert.Zero(t, h.state(t).RemoteEventIDsToIgnore.Cardinality())
}

func TestSynchronize_InconsistentCompensation(t *testing.T) {
	h := newHarness(t, nil)
	events := h.editLocal(t, "n1", note.Created{Title: "t"}, note.TitleChanged{Title: "u"})

	// drops the second event on the floor
	buggy := strategyFunc(func(_ context.Context, _ string, local, _ []note.Event) (*Resolution, error) {
		return &Resolution{Strategy: "buggy", Actions: []CompensatingAction{{
			CompensatedLocalEvents: local[:1],
			NewRemoteEvents:        local,
		}}}, nil
	})
	s := h.build(buggy, h.store)

	report, err := s.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"n1"}, report.Failed)
	assert.ErrorIs(t, report.Errors["n1"], ErrInconsistentCompensation)
	assert.Empty(t, h.remoteLog.executed())
	assert.Empty(t, h.localLog.executed())

	pending, err := h.localRepo.Events(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events, pending)
	assert.Zero(t, h.store.Saves())
}

func TestSynchronize_FailureKeepsCommittedActions(t *testing.T) {
	h := newHarness(t, nil)
	events := h.editLocal(t, "n1", note.Created{Title: "t"}, note.TitleChanged{Title: "u"}, note.ContentChanged{Content: "c"})
	h.remoteLog.failAt = 2
	h.remoteLog.failErr = command.ErrRemoteUnavailable

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, report.Failed)
	assert.ErrorIs(t, report.Errors["n1"], command.ErrRemoteUnavailable)

	pending, err := h.localRepo.Events(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events[1:], pending)
	assert.Equal(t, 1, h.state(t).LastSynchronizedLocalRevision["n1"])

	// the next pass retries the rest
	h.remoteLog.failAt = 0
	report, err = h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, report.Committed)
	assert.Zero(t, h.localRepo.Len())
	assert.Equal(t, 3, h.state(t).LastSynchronizedLocalRevision["n1"])
	assert.True(t, h.localLog.note(t, "n1").EqualIgnoringRevision(h.remoteLog.note(t, "n1")))
}

func TestSynchronize_InterruptedConsumeIsNotReplayed(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(h *harness, t *testing.T)
		flaky func(h *harness) (local, remote EventRepository, repo *flakyRepository)
		moved func(h *harness) *memoryLog
	}{
		{
			name: "local",
			edit: func(h *harness, t *testing.T) { h.editLocal(t, "n1", note.Created{Title: "t"}) },
			flaky: func(h *harness) (EventRepository, EventRepository, *flakyRepository) {
				repo := &flakyRepository{EventRepository: h.localRepo, failRemoves: 1}
				return repo, h.remoteRepo, repo
			},
			moved: func(h *harness) *memoryLog { return h.remoteLog },
		},
		{
			name: "remote",
			edit: func(h *harness, t *testing.T) { h.editRemote(t, "n1", note.Created{Title: "t"}) },
			flaky: func(h *harness) (EventRepository, EventRepository, *flakyRepository) {
				repo := &flakyRepository{EventRepository: h.remoteRepo, failRemoves: 1}
				return h.localRepo, repo, repo
			},
			moved: func(h *harness) *memoryLog { return h.localLog },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.edit(h, t)
			localRepo, remoteRepo, flaky := tt.flaky(h)
			s := New(
				Replica{Repository: localRepo, Executor: h.localLog},
				Replica{Repository: remoteRepo, Executor: h.remoteLog},
				NewChain(&Merging{Merger: &merge.Equality{}, LocalHistory: h.localLog, RemoteHistory: h.remoteLog}),
				h.store,
			)

			// the command went through and the state was saved, but the
			// compensated event is still pending
			report, err := s.Synchronize(context.Background())
			require.NoError(t, err)
			require.Equal(t, []string{"n1"}, report.Failed)
			assert.ErrorIs(t, report.Errors["n1"], errRemoveFailed)
			assert.Equal(t, 1, flaky.Len())

			for range 3 {
				report, err = s.Synchronize(context.Background())
				require.NoError(t, err)
				assert.Empty(t, report.Failed, report.Errors)
			}
			assert.Zero(t, h.localRepo.Len())
			assert.Zero(t, h.remoteRepo.Len())
			assert.Len(t, tt.moved(h).executed(), 1)
			assert.True(t, h.localLog.note(t, "n1").EqualIgnoringRevision(h.remoteLog.note(t, "n1")))
		})
	}
}

func TestSynchronize_KeepBothPartialFailureConverges(t *testing.T) {
	ids := 0
	keepBoth := merge.NewKeepBoth(func() string {
		ids++
		return "copy" + string(rune('0'+ids))
	})
	h := newHarness(t, keepBoth)
	h.shared(t, "n1", note.Created{Path: "/", Title: "base", Content: "body"})
	h.editLocal(t, "n1", note.ContentChanged{Content: "local"})
	h.editRemote(t, "n1", note.ContentChanged{Content: "remote"}, note.TitleChanged{Title: "renamed"})

	// the remote copy and the local convergence succeed, the local copy does not
	h.localLog.failAt = 3
	h.localLog.failErr = fmt.Errorf("disk full")

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"n1"}, report.Failed)
	require.Len(t, h.remoteLog.events["copy1"], 1)
	require.Empty(t, h.localLog.events["copy1"])

	st := h.state(t)
	assert.Zero(t, st.LocalEventIDsToIgnore.Cardinality())
	assert.Zero(t, st.RemoteEventIDsToIgnore.Cardinality())
	assert.Equal(t, 4, st.LastKnownLocalRevision["n1"])
	assert.Equal(t, 1, st.LastKnownRemoteRevision["copy1"])

	// the produced events come back as pending
	h.localLog.failAt = 0
	for _, e := range h.localLog.events["n1"][2:] {
		require.NoError(t, h.localRepo.Add(context.Background(), e))
	}
	for _, e := range h.remoteLog.events["copy1"] {
		require.NoError(t, h.remoteRepo.Add(context.Background(), e))
	}

	report, err = h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"copy1", "n1"}, report.Committed, report.Errors)
	assert.Zero(t, h.localRepo.Len())
	assert.Zero(t, h.remoteRepo.Len())

	assert.ElementsMatch(t, []string{"n1", "copy1"}, slices.Collect(maps.Keys(h.localLog.events)))
	assert.ElementsMatch(t, []string{"n1", "copy1"}, slices.Collect(maps.Keys(h.remoteLog.events)))
	for _, id := range []string{"n1", "copy1"} {
		assert.True(t, h.localLog.note(t, id).EqualIgnoringRevision(h.remoteLog.note(t, id)), id)
	}
	assert.Equal(t, "local", h.localLog.note(t, "copy1").Content)
	assert.Equal(t, "remote", h.localLog.note(t, "n1").Content)
}

func TestSynchronize_RejectedCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "n1", note.Created{Title: "t"})
	// the remote already has a note with this id that was never imported
	h.remoteLog.write(t, "n1", note.Created{Title: "other"})

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, report.Failed)
	assert.ErrorIs(t, report.Errors["n1"], command.ErrCommandRejected)
	assert.Equal(t, 1, h.localRepo.Len())
}

func TestSynchronize_FailuresAreNoteScoped(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "a", note.Created{Title: "a"})
	h.editLocal(t, "b", note.Created{Title: "b"})
	h.remoteLog.failAt = 1
	h.remoteLog.failErr = command.ErrRemoteUnavailable

	report, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, report.Failed)
	assert.Equal(t, []string{"b"}, report.Committed)
	outcome, ok := report.Outcome("b")
	require.True(t, ok)
	assert.Equal(t, OutcomeCommitted, outcome)
}

func TestSynchronize_SaveFailureLeavesEventsPending(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "n1", note.Created{Title: "t"})
	store := &failingStore{MemoryStateStore: h.store}

	report, err := h.build(NewChain(&Merging{Merger: &merge.Equality{}, LocalHistory: h.localLog}), store).
		Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, report.Failed)
	assert.Equal(t, 1, h.localRepo.Len())
}

func TestSynchronize_AlreadyRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "n1", note.Created{Title: "t"})

	entered := make(chan struct{})
	release := make(chan struct{})
	h.remoteLog.onExecute = func(command.Command) {
		close(entered)
		<-release
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.sync.Synchronize(context.Background())
		assert.NoError(t, err)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("pass did not start")
	}

	_, err := h.sync.Synchronize(context.Background())
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)

	close(release)
	wg.Wait()
	require.NotNil(t, h.sync.LastReport())
	assert.Equal(t, []string{"n1"}, h.sync.LastReport().Committed)
}

func TestSynchronize_CancelBetweenNotes(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "a", note.Created{Title: "a"}, note.TitleChanged{Title: "aa"})
	h.editLocal(t, "b", note.Created{Title: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.remoteLog.onExecute = func(command.Command) { cancel() }

	report, err := h.sync.Synchronize(ctx)
	require.NoError(t, err)

	// the started note finishes, the next one is not visited
	assert.True(t, report.Cancelled)
	assert.Equal(t, []string{"a"}, report.Committed)
	assert.Len(t, h.remoteLog.executed(), 2)
	assert.Equal(t, 1, h.localRepo.Len())
}

func TestSynchronize_StatePersistsAcrossInstances(t *testing.T) {
	h := newHarness(t, nil)
	h.editLocal(t, "n1", note.Created{Title: "t"})

	_, err := h.sync.Synchronize(context.Background())
	require.NoError(t, err)
	generation := h.state(t).Generation
	assert.Positive(t, generation)

	h.editLocal(t, "n1", note.TitleChanged{Title: "u"})
	other := h.build(NewChain(&Merging{Merger: &merge.Equality{}, LocalHistory: h.localLog}), h.store)
	report, err := other.Synchronize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, report.Committed)
	assert.Greater(t, report.Generation, generation)

	cmds := h.remoteLog.executed()
	require.Len(t, cmds, 2)
	assert.Equal(t, 1, command.TargetOf(cmds[1]).LastRevision)
}
