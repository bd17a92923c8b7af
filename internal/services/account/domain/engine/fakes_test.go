package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

type fakeJournal struct {
	mu        sync.Mutex
	events    map[string][]event.Event
	appendErr error
	appends   int
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{events: make(map[string][]event.Event)}
}

func (j *fakeJournal) AppendEvents(_ context.Context, events []event.Event) ([]event.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.appendErr != nil {
		return nil, j.appendErr
	}
	j.appends++
	stored := make([]event.Event, 0, len(events))
	for _, evt := range events {
		evt.Seq = uint64(len(j.events[evt.AccountID]) + 1)
		j.events[evt.AccountID] = append(j.events[evt.AccountID], evt)
		stored = append(stored, evt)
	}
	return stored, nil
}

func (j *fakeJournal) ListEvents(_ context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []event.Event
	for _, evt := range j.events[accountID] {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (j *fakeJournal) LatestSeq(_ context.Context, accountID string) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return uint64(len(j.events[accountID])), nil
}

type fakeSnapshots struct {
	states  map[string]any
	seqs    map[string]uint64
	saveErr error
	saves   int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{states: make(map[string]any), seqs: make(map[string]uint64)}
}

func (s *fakeSnapshots) GetState(_ context.Context, accountID string) (any, uint64, error) {
	state, ok := s.states[accountID]
	if !ok {
		return nil, 0, errNoSnapshot
	}
	return state, s.seqs[accountID], nil
}

func (s *fakeSnapshots) SaveState(_ context.Context, accountID string, lastSeq uint64, state any) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.states[accountID] = state
	s.seqs[accountID] = lastSeq
	return nil
}

var errNoSnapshot = errors.New("snapshot: not found")
