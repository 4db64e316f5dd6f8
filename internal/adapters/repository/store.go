// Package repository holds published leaderboard snapshots. A snapshot
// is immutable once published; refresh cycles swap whole values in
// atomically so readers never observe a half-updated aggregation and
// the read path needs no coordination beyond the map lock.
package repository

import (
	"context"
	"sync"

	"github.com/openpace/paceline/internal/domain/types"
	"github.com/openpace/paceline/pkg/metrics"
)

// Store provides read/write access to published snapshots.
type Store interface {
	// Current returns the latest snapshot for a competition.
	Current(ctx context.Context, competitionID string) (types.Snapshot, bool)

	// Publish swaps in a freshly computed snapshot.
	Publish(ctx context.Context, snapshot types.Snapshot)

	// MarkStale flags the current snapshot as stale after a failed
	// refresh, leaving its data intact (stale-while-revalidate).
	MarkStale(ctx context.Context, competitionID string) (types.Snapshot, bool)

	// Count returns the number of competitions with a snapshot.
	Count(ctx context.Context) int
}

// SnapshotStore is the in-memory Store implementation.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]types.Snapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]types.Snapshot)}
}

// Current returns the latest snapshot for a competition.
func (s *SnapshotStore) Current(_ context.Context, competitionID string) (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[competitionID]
	return snap, ok
}

// Publish swaps in a new snapshot for its competition.
func (s *SnapshotStore) Publish(_ context.Context, snapshot types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.CompetitionID] = snapshot
	metrics.RecordSnapshotPublished()
}

// MarkStale sets the stale flag on the current snapshot, if any. The
// prior good data remains current; callers surface staleness instead of
// a hard failure.
func (s *SnapshotStore) MarkStale(_ context.Context, competitionID string) (types.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[competitionID]
	if !ok {
		return types.Snapshot{}, false
	}
	snap.Stale = true
	s.snapshots[competitionID] = snap
	return snap, true
}

// Count returns the number of competitions with a published snapshot.
func (s *SnapshotStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
