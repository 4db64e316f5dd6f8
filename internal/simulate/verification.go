package simulate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/openpace/paceline/internal/adapters/source"
	service "github.com/openpace/paceline/internal/app"
	"github.com/openpace/paceline/internal/domain/model"
	"github.com/openpace/paceline/internal/domain/types"
	"github.com/openpace/paceline/pkg/logger"
)

// Verification tolerance for accumulated float conversions.
const distanceToleranceKm = 0.001

// Receipt phases given to the roster, round-robin.
const (
	receiptPhaseCurrent = 0
	receiptPhaseOverdue = 1
	receiptPhaseRemoved = 2
	receiptPhaseNone    = 3
	receiptPhaseCount   = 4
)

// verifySnapshot checks the published snapshot against the plan's
// independently computed expectation.
func verifySnapshot(ctx context.Context, p *plan, snapshot types.Snapshot, stats *Stats) error {
	log := logger.Get().Named("simulate")

	byParticipant := make(map[string]types.Entry, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		byParticipant[e.Participant] = e
	}

	for identity, wantKm := range p.expected {
		entry, ok := byParticipant[string(identity)]
		if !ok {
			return fmt.Errorf("participant %s missing from leaderboard, expected %.3f km", identity, wantKm)
		}
		if math.Abs(entry.TotalDistanceKm-wantKm) > distanceToleranceKm {
			return fmt.Errorf("participant %s total %.3f km, expected %.3f km", identity, entry.TotalDistanceKm, wantKm)
		}
		if entry.ActivityCount != p.expectedCount[identity] {
			return fmt.Errorf("participant %s count %d, expected %d", identity, entry.ActivityCount, p.expectedCount[identity])
		}
		stats.VerifiedParticips++
	}

	// Participants without accepted activity never appear.
	for participant := range byParticipant {
		if _, ok := p.expected[model.Identity(participant)]; !ok {
			return fmt.Errorf("unexpected leaderboard entry for %s", participant)
		}
	}

	// Ranking order: distance strictly non-increasing, ranks dense from 1.
	for i, e := range snapshot.Entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if i > 0 && e.TotalDistanceKm > snapshot.Entries[i-1].TotalDistanceKm+distanceToleranceKm {
			return fmt.Errorf("leaderboard not sorted at position %d", i)
		}
	}

	// Feed: newest first, within the configured cap.
	for i := 1; i < len(snapshot.Feed); i++ {
		if snapshot.Feed[i].OccurredAt > snapshot.Feed[i-1].OccurredAt {
			return fmt.Errorf("feed not newest-first at position %d", i)
		}
	}

	log.Info(ctx, "snapshot verified",
		logger.Int("entries", len(snapshot.Entries)),
		logger.Int("feed", len(snapshot.Feed)),
		logger.String("version", snapshot.Version),
	)
	return nil
}

// publishReceipts gives each roster member a receipt history matching
// one of the four phases, round-robin over the roster order.
func publishReceipts(p *plan, src *source.MemorySource, now time.Time) {
	for i, identity := range p.competition.Roster.Identities() {
		var periodEnd time.Time
		switch i % receiptPhaseCount {
		case receiptPhaseCurrent:
			periodEnd = now.Add(14 * 24 * time.Hour)
		case receiptPhaseOverdue:
			periodEnd = now.Add(-10 * 24 * time.Hour)
		case receiptPhaseRemoved:
			periodEnd = now.Add(-45 * 24 * time.Hour)
		case receiptPhaseNone:
			continue
		}
		src.Publish(source.KindSubscriptionReceipt, model.RawRecord{
			ID:        "sim_receipt_" + uuid.NewString(),
			Author:    identity,
			CreatedAt: periodEnd.Add(-30 * 24 * time.Hour),
			Tags: []model.Tag{
				{"period_start", strconv.FormatInt(periodEnd.Add(-30*24*time.Hour).Unix(), 10)},
				{"period_end", strconv.FormatInt(periodEnd.Unix(), 10)},
				{"amount", "21000"},
			},
		})
	}
}

// verifyMembership confirms the service reports the phase implied by
// each participant's synthetic receipt history.
func verifyMembership(ctx context.Context, svc *service.Service, p *plan) error {
	want := []string{"current", "overdue", "removed", "none"}
	for i, identity := range p.competition.Roster.Identities() {
		m, err := svc.GetMembership(ctx, p.competition.ID, identity)
		if err != nil {
			return fmt.Errorf("membership lookup for %s: %w", identity, err)
		}
		expected := want[i%receiptPhaseCount]
		if m.Phase != expected {
			return fmt.Errorf("participant %s phase %s, expected %s", identity, m.Phase, expected)
		}
	}
	return nil
}
