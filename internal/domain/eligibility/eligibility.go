// Package eligibility decides accept/reject for candidate activities
// against a competition roster, window and mode. The filter is pure and
// has no side effects; every rejection carries a distinct reason so
// outcomes are countable for diagnostics.
package eligibility

import (
	"github.com/openpace/paceline/internal/domain/model"
)

// Reason identifies why an activity was rejected. Rejection is a normal
// filtering outcome, not an error.
type Reason int

const (
	// ReasonAccepted means the activity passed every check.
	ReasonAccepted Reason = iota
	// ReasonUnknownAuthor: the author is not on the roster.
	ReasonUnknownAuthor
	// ReasonBeforeEligibility: before the participant's individual window.
	ReasonBeforeEligibility
	// ReasonAfterCompetitionEnd: after the global competition window.
	ReasonAfterCompetitionEnd
	// ReasonModeMismatch: recognized class that does not match the mode.
	ReasonModeMismatch
	// ReasonNoDistance: the normalizer's rejection sentinel.
	ReasonNoDistance
)

// String returns the label used for metrics and logs.
func (r Reason) String() string {
	switch r {
	case ReasonAccepted:
		return "accepted"
	case ReasonUnknownAuthor:
		return "unknown_author"
	case ReasonBeforeEligibility:
		return "before_eligibility"
	case ReasonAfterCompetitionEnd:
		return "after_competition_end"
	case ReasonModeMismatch:
		return "mode_mismatch"
	case ReasonNoDistance:
		return "no_distance"
	default:
		return "unknown"
	}
}

// Filter evaluates activities against one competition's roster, end
// time and accepted activity mode.
type Filter struct {
	competition model.Competition
}

// New creates a filter for the given competition.
func New(competition model.Competition) *Filter {
	return &Filter{competition: competition}
}

// Accept reports whether the activity counts for the competition.
func (f *Filter) Accept(a model.Activity) bool {
	ok, _ := f.Check(a)
	return ok
}

// Check runs the ordered, short-circuiting checks and returns the
// first rejection reason, or ReasonAccepted.
func (f *Filter) Check(a model.Activity) (bool, Reason) {
	participant, ok := f.competition.Roster.Lookup(a.Participant)
	if !ok {
		return false, ReasonUnknownAuthor
	}
	if a.OccurredAt.Before(participant.EligibleFrom) {
		return false, ReasonBeforeEligibility
	}
	if a.OccurredAt.After(f.competition.EndAt) {
		return false, ReasonAfterCompetitionEnd
	}
	// A recognized class must match the competition mode. An
	// unlabeled activity (ClassOther) is accepted so that a missing
	// exercise tag does not silently vanish from a single-mode
	// competition.
	if a.Class != model.ClassOther && a.Class != f.competition.Mode {
		return false, ReasonModeMismatch
	}
	if a.DistanceKm <= 0 {
		return false, ReasonNoDistance
	}
	return true, ReasonAccepted
}
