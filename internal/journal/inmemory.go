package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/antoniostano/peek/internal/host"
)

// InMemoryStore keeps snapshots in process memory. It survives nothing and
// is meant for local/dev use and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	snaps map[host.ActorID]Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snaps: make(map[host.ActorID]Snapshot)}
}

func (s *InMemoryStore) Put(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Observer] = snap
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, observer host.ActorID) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[observer]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *InMemoryStore) Delete(_ context.Context, observer host.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, observer)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Observer < out[j].Observer })
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
