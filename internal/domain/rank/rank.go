// Package rank produces ordered, tie-broken leaderboard entries from
// aggregation state. Ranking is a view: it is recomputed fully on every
// call and never persisted as authoritative state.
package rank

import (
	"sort"
	"time"

	"github.com/openpace/paceline/internal/domain/aggregate"
	"github.com/openpace/paceline/internal/domain/model"
)

const maxProgressPercent = 100.0

// Entry is one leaderboard row.
type Entry struct {
	Rank            int
	Participant     model.Identity
	TotalDistanceKm float64
	ActivityCount   int
	LastActivityAt  time.Time
	ProgressPercent float64
}

// Rank orders participants by total distance descending. Ties at equal
// distance go to the earlier LastActivityAt (whoever reached that
// distance first ranks higher); identity ordering is the final
// deterministic fallback, so no ties remain. Participants with zero
// accepted activities are omitted.
func Rank(state *aggregate.State, courseTotalKm float64) []Entry {
	entries := make([]Entry, 0, state.Len())
	for id, t := range state.All() {
		if t.ActivityCount == 0 {
			continue
		}
		entries = append(entries, Entry{
			Participant:     id,
			TotalDistanceKm: t.TotalDistanceKm,
			ActivityCount:   t.ActivityCount,
			LastActivityAt:  t.LastActivityAt,
			ProgressPercent: progress(t.TotalDistanceKm, courseTotalKm),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalDistanceKm != b.TotalDistanceKm {
			return a.TotalDistanceKm > b.TotalDistanceKm
		}
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.Before(b.LastActivityAt)
		}
		return a.Participant < b.Participant
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// progress reports completion of the configured course, capped at 100.
func progress(distanceKm, courseTotalKm float64) float64 {
	if courseTotalKm <= 0 {
		return 0
	}
	p := distanceKm / courseTotalKm * maxProgressPercent
	if p > maxProgressPercent {
		return maxProgressPercent
	}
	return p
}
