// Package membership evaluates the time-gated subscription phase of a
// participant from its payment-receipt history. The evaluation is a
// pure function of (latest period end, now): phases progress forward as
// time passes with no new receipt, and a new qualifying receipt resets
// evaluation to whatever its own period end implies.
package membership

import (
	"time"

	"github.com/openpace/paceline/internal/domain/model"
)

// Grace windows after a subscription period ends.
const (
	// OverdueGrace keeps a participant visible after expiry.
	OverdueGrace = 30 * 24 * time.Hour
	// RemovedGrace is the outer bound before full hiding.
	RemovedGrace = 60 * 24 * time.Hour
)

// Phase is the derived membership state. Not stored, always recomputed.
type Phase int

const (
	// PhaseNone: no receipt ever observed.
	PhaseNone Phase = iota
	// PhaseCurrent: the latest period has not ended.
	PhaseCurrent
	// PhaseOverdue: ended up to 30 days ago.
	PhaseOverdue
	// PhaseRemoved: ended between 30 and 60 days ago.
	PhaseRemoved
	// PhaseHidden: ended more than 60 days ago.
	PhaseHidden
)

// String returns the lowercase phase name used in API payloads.
func (p Phase) String() string {
	switch p {
	case PhaseCurrent:
		return "current"
	case PhaseOverdue:
		return "overdue"
	case PhaseRemoved:
		return "removed"
	case PhaseHidden:
		return "hidden"
	default:
		return "none"
	}
}

// Visible reports whether the phase still allows the participant to
// appear on the leaderboard.
func (p Phase) Visible() bool {
	return p == PhaseCurrent || p == PhaseOverdue
}

// Status is the evaluated membership state plus the renewal deadline.
type Status struct {
	Phase   Phase
	NextDue time.Time // zero when no receipt was ever observed
}

// Evaluate maps the latest period end and the current time to a phase.
// A zero periodEnd means no receipt was ever observed.
func Evaluate(periodEnd, now time.Time) Phase {
	switch {
	case periodEnd.IsZero():
		return PhaseNone
	case !now.After(periodEnd):
		return PhaseCurrent
	case !now.After(periodEnd.Add(OverdueGrace)):
		return PhaseOverdue
	case !now.After(periodEnd.Add(RemovedGrace)):
		return PhaseRemoved
	default:
		return PhaseHidden
	}
}

// StatusOf evaluates a receipt history. The receipt with the latest
// period end wins; order of the input is irrelevant.
func StatusOf(receipts []model.SubscriptionReceipt, now time.Time) Status {
	var latest time.Time
	for _, r := range receipts {
		if r.PeriodEnd.After(latest) {
			latest = r.PeriodEnd
		}
	}
	return Status{Phase: Evaluate(latest, now), NextDue: latest}
}
