// Package aggregate folds accepted activities into per-participant
// running totals. The fold is idempotent under re-delivery and
// insensitive to delivery order, which is the load-bearing correctness
// property of the engine: the federated record source delivers
// duplicates and reorderings routinely.
package aggregate

import (
	"sort"
	"time"

	"github.com/openpace/paceline/internal/domain/model"
)

// Totals is the aggregation state for one participant. TotalDistanceKm
// and ActivityCount are monotonically non-decreasing for the lifetime
// of a competition; records are never retracted.
type Totals struct {
	Participant     model.Identity
	TotalDistanceKm float64
	ActivityCount   int
	LastActivityAt  time.Time

	seen       map[string]struct{}
	activities []model.Activity // ordered by (OccurredAt, RecordID)
}

// NewTotals creates empty totals for a participant.
func NewTotals(participant model.Identity) *Totals {
	return &Totals{
		Participant: participant,
		seen:        make(map[string]struct{}),
	}
}

// Seen reports whether a record id has already been folded in.
func (t *Totals) Seen(recordID string) bool {
	_, ok := t.seen[recordID]
	return ok
}

// Activities returns the accepted activities ordered by occurrence
// time. Callers must not mutate the returned slice.
func (t *Totals) Activities() []model.Activity {
	return t.activities
}

// Fold adds one accepted activity to the totals. Replays of an already
// seen record id are a no-op, so calling Fold repeatedly with the same
// pair is safe. Returns true when the totals changed.
func (t *Totals) Fold(a model.Activity) bool {
	if _, dup := t.seen[a.RecordID]; dup {
		return false
	}
	t.seen[a.RecordID] = struct{}{}
	t.ActivityCount++
	t.TotalDistanceKm += a.DistanceKm
	if a.OccurredAt.After(t.LastActivityAt) {
		t.LastActivityAt = a.OccurredAt
	}
	t.insert(a)
	return true
}

// insert keeps the activity list sorted by (OccurredAt, RecordID) so
// the final state for a fixed activity set is identical regardless of
// arrival order.
func (t *Totals) insert(a model.Activity) {
	i := sort.Search(len(t.activities), func(i int) bool {
		other := t.activities[i]
		if !other.OccurredAt.Equal(a.OccurredAt) {
			return other.OccurredAt.After(a.OccurredAt)
		}
		return other.RecordID > a.RecordID
	})
	t.activities = append(t.activities, model.Activity{})
	copy(t.activities[i+1:], t.activities[i:])
	t.activities[i] = a
}

// State holds totals for every participant of one competition. It is
// owned exclusively by the refresh orchestrator during a refresh cycle;
// readers only ever see completed immutable snapshots derived from it.
type State struct {
	totals map[model.Identity]*Totals
}

// NewState creates an empty aggregation state.
func NewState() *State {
	return &State{totals: make(map[model.Identity]*Totals)}
}

// Fold routes an activity to its participant's totals, creating them
// on first sight. Returns true when the state changed.
func (s *State) Fold(a model.Activity) bool {
	t, ok := s.totals[a.Participant]
	if !ok {
		t = NewTotals(a.Participant)
		s.totals[a.Participant] = t
	}
	return t.Fold(a)
}

// Totals returns the totals for one participant, if any.
func (s *State) Totals(id model.Identity) (*Totals, bool) {
	t, ok := s.totals[id]
	return t, ok
}

// All returns every participant's totals. Callers must not mutate.
func (s *State) All() map[model.Identity]*Totals {
	return s.totals
}

// Len returns the number of participants with at least one accepted
// activity.
func (s *State) Len() int {
	return len(s.totals)
}
