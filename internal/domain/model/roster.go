package model

import (
	"fmt"
	"sort"
	"time"
)

// Participant is one roster entry: an identity plus the instant from
// which its activities count. Immutable once created; changing
// eligibility means a new roster entry, never in-place mutation.
type Participant struct {
	Identity     Identity
	EligibleFrom time.Time
}

// Roster is the set of participants eligible for a competition.
type Roster struct {
	participants map[Identity]Participant
}

// NewRoster validates and builds a roster. Every entry must carry an
// identity and an eligibility start; a missing field rejects roster
// construction outright rather than silently defaulting a window.
func NewRoster(entries []Participant) (*Roster, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty roster", ErrInconsistentRoster)
	}
	m := make(map[Identity]Participant, len(entries))
	for _, p := range entries {
		if p.Identity == "" {
			return nil, fmt.Errorf("%w: entry without identity", ErrInconsistentRoster)
		}
		if p.EligibleFrom.IsZero() {
			return nil, fmt.Errorf("%w: %s has no eligibility start", ErrInconsistentRoster, p.Identity)
		}
		if _, dup := m[p.Identity]; dup {
			return nil, fmt.Errorf("%w: duplicate entry for %s", ErrInconsistentRoster, p.Identity)
		}
		m[p.Identity] = p
	}
	return &Roster{participants: m}, nil
}

// Lookup returns the roster entry for id.
func (r *Roster) Lookup(id Identity) (Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// Identities returns all roster identities in deterministic order.
func (r *Roster) Identities() []Identity {
	ids := make([]Identity, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EarliestEligibility returns the earliest eligibility start across
// the roster, used as the lower bound of source fetches.
func (r *Roster) EarliestEligibility() time.Time {
	var earliest time.Time
	for _, p := range r.participants {
		if earliest.IsZero() || p.EligibleFrom.Before(earliest) {
			earliest = p.EligibleFrom
		}
	}
	return earliest
}

// Size returns the number of roster entries.
func (r *Roster) Size() int {
	return len(r.participants)
}

// Competition is a time-boxed challenge with a fixed end time, a course
// length used for progress display, a single accepted activity mode and
// a curated roster.
type Competition struct {
	ID            string
	Name          string
	EndAt         time.Time
	CourseTotalKm float64
	Mode          ActivityClass
	Roster        *Roster
}
