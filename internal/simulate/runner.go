package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/openpace/paceline/internal/adapters/source"
	service "github.com/openpace/paceline/internal/app"
	"github.com/openpace/paceline/internal/domain/model"
	"github.com/openpace/paceline/internal/domain/types"
	"github.com/openpace/paceline/pkg/logger"
)

// Run executes a complete in-process simulation: generate a synthetic
// workload, run it through the full refresh pipeline and verify the
// published snapshot against an independently computed expectation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")

	log.Info(ctx, "starting scoring simulation",
		logger.Int("participants", config.Participants),
		logger.Int("records", config.Records),
		logger.Int("duplicates", config.Duplicates),
		logger.Int("malformed", config.Malformed),
		logger.Int("outOfWindow", config.OutOfWindow),
		logger.Int("wrongMode", config.WrongMode),
	)

	// Step 1: Build the synthetic workload and its expectation.
	p := buildPlan(config, time.Now().UTC())
	stats.RecordsPublished = len(p.records)
	stats.DuplicatesAdded = config.Duplicates
	stats.MalformedAdded = config.Malformed
	stats.OutOfWindowAdded = config.OutOfWindow
	stats.WrongModeAdded = config.WrongMode

	// Step 2: Publish records to the in-memory source, receipts too so
	// membership evaluation has material.
	src := source.NewMemorySource()
	p.publish(src)
	publishReceipts(p, src, time.Now().UTC())

	// Step 3: Boot the full service against that source.
	svc := service.New(
		service.WithRecordSource(src),
		service.WithReceiptSource(src),
		service.WithCompetitions([]model.Competition{p.competition}),
		service.WithAutoRefresh(0),
		service.WithRefresherOptions(
			service.WithFeedLimit(config.FeedLimit),
		),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("service start failed: %w", err)
	}
	defer svc.Stop()

	// Step 4: Wait for the warming refresh to publish a snapshot.
	snapshot, err := awaitSnapshot(ctx, svc, p.competition.ID)
	if err != nil {
		return fmt.Errorf("snapshot never became available: %w", err)
	}
	stats.EntriesRanked = len(snapshot.Entries)
	stats.FeedItems = len(snapshot.Feed)

	// Step 5: Verify results.
	if err := verifySnapshot(ctx, p, snapshot, stats); err != nil {
		return fmt.Errorf("snapshot verification failed: %w", err)
	}
	if err := verifyMembership(ctx, svc, p); err != nil {
		return fmt.Errorf("membership verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "simulation completed successfully")
	return nil
}

// Snapshot polling cadence while the warming refresh runs.
const snapshotPollInterval = 50 * time.Millisecond

// awaitSnapshot polls until the first non-stale snapshot is published
// or the context expires.
func awaitSnapshot(ctx context.Context, svc *service.Service, competitionID string) (types.Snapshot, error) {
	ticker := time.NewTicker(snapshotPollInterval)
	defer ticker.Stop()
	for {
		snap, err := svc.GetSnapshot(ctx, competitionID)
		if err != nil {
			return snap, err
		}
		if !snap.Stale && snap.Version != "" {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, fmt.Errorf("wait aborted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("recordsPublished", stats.RecordsPublished),
		logger.Int("duplicatesAdded", stats.DuplicatesAdded),
		logger.Int("malformedAdded", stats.MalformedAdded),
		logger.Int("outOfWindowAdded", stats.OutOfWindowAdded),
		logger.Int("wrongModeAdded", stats.WrongModeAdded),
		logger.Int("entriesRanked", stats.EntriesRanked),
		logger.Int("feedItems", stats.FeedItems),
		logger.Int("verifiedParticipants", stats.VerifiedParticips),
		logger.String("duration", stats.Duration.String()),
	)
}
