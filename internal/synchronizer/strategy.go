package synchronizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/note"
)

// Strategy decides how the pending events of one note are synchronized. A nil
// resolution means the strategy does not apply and the events stay pending.
type Strategy interface {
	Resolve(ctx context.Context, noteID string, local, remote []note.Event) (*Resolution, error)
}

// History projects a note at a past revision of one log.
type History interface {
	NoteAt(ctx context.Context, noteID string, revision int) (note.Note, error)
}

// Chain tries each strategy in order; the first resolution wins.
type Chain []Strategy

// NewChain returns the standard chain: local-only, remote-only, then merging.
func NewChain(merging *Merging) Chain {
	return Chain{LocalOnly{}, RemoteOnly{}, merging}
}

func (c Chain) Resolve(ctx context.Context, noteID string, local, remote []note.Event) (*Resolution, error) {
	for _, s := range c {
		res, err := s.Resolve(ctx, noteID, local, remote)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// LocalOnly copies local events verbatim when the remote side has nothing
// pending for the note.
type LocalOnly struct{}

func (LocalOnly) Resolve(_ context.Context, _ string, local, remote []note.Event) (*Resolution, error) {
	if len(remote) > 0 || len(local) == 0 {
		return nil, nil
	}
	res := &Resolution{Strategy: "local-only", Actions: make([]CompensatingAction, 0, len(local))}
	for _, e := range local {
		res.Actions = append(res.Actions, CompensatingAction{
			CompensatedLocalEvents: []note.Event{e},
			NewRemoteEvents:        []note.Event{e},
		})
	}
	return res, nil
}

// RemoteOnly is the mirror of LocalOnly.
type RemoteOnly struct{}

func (RemoteOnly) Resolve(_ context.Context, _ string, local, remote []note.Event) (*Resolution, error) {
	if len(local) > 0 || len(remote) == 0 {
		return nil, nil
	}
	res := &Resolution{Strategy: "remote-only", Actions: make([]CompensatingAction, 0, len(remote))}
	for _, e := range remote {
		res.Actions = append(res.Actions, CompensatingAction{
			CompensatedRemoteEvents: []note.Event{e},
			NewLocalEvents:          []note.Event{e},
		})
	}
	return res, nil
}

// Merging hands notes changed on both sides to a merge strategy.
//
// The base is the local projection just before the oldest pending event of
// either side. Each side's projection is its pending events replayed on top
// of that side's own history. When RemoteHistory is nil the remote events
// are replayed on the base, which is the same thing as long as both logs
// number the note's events alike.
type Merging struct {
	Merger        merge.Strategy
	LocalHistory  History
	RemoteHistory History
}

func (m *Merging) Resolve(ctx context.Context, noteID string, local, remote []note.Event) (*Resolution, error) {
	if len(local) == 0 || len(remote) == 0 {
		return nil, nil
	}

	localFirst, remoteFirst := local[0].Revision, remote[0].Revision
	base, err := m.LocalHistory.NoteAt(ctx, noteID, min(localFirst, remoteFirst)-1)
	if err != nil {
		return nil, fmt.Errorf("project base of %s: %w", noteID, err)
	}

	localStart := base
	if from := localFirst - 1; from != base.Revision {
		if localStart, err = m.LocalHistory.NoteAt(ctx, noteID, from); err != nil {
			return nil, fmt.Errorf("project local %s: %w", noteID, err)
		}
	}
	localNote, err := note.Replay(localStart, local)
	if err != nil {
		return nil, fmt.Errorf("project local %s: %w", noteID, err)
	}

	remoteStart := base
	if m.RemoteHistory != nil {
		if remoteStart, err = m.RemoteHistory.NoteAt(ctx, noteID, remoteFirst-1); err != nil {
			return nil, fmt.Errorf("project remote %s: %w", noteID, err)
		}
	}
	remoteNote, err := note.Replay(remoteStart, remote)
	if err != nil {
		return nil, fmt.Errorf("project remote %s: %w", noteID, err)
	}

	sol := m.Merger.Merge(merge.Input{
		NoteID:       noteID,
		LocalEvents:  local,
		RemoteEvents: remote,
		Base:         base,
		Local:        localNote,
		Remote:       remoteNote,
	})
	if sol == nil {
		slog.Debug("sync merge", "note", noteID, "solution", "none")
		return nil, nil
	}

	return &Resolution{
		Strategy: "merging",
		Actions: []CompensatingAction{{
			CompensatedLocalEvents:  local,
			CompensatedRemoteEvents: remote,
			NewLocalEvents:          sol.NewLocalEvents,
			NewRemoteEvents:         sol.NewRemoteEvents,
		}},
	}, nil
}
