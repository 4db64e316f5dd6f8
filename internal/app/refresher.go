// Package service provides the core business service that implements
// the dependencies required by the HTTP API: snapshot reads, membership
// evaluation and refresh orchestration.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/openpace/paceline/internal/adapters/repository"
	"github.com/openpace/paceline/internal/adapters/source"
	"github.com/openpace/paceline/internal/domain/aggregate"
	"github.com/openpace/paceline/internal/domain/eligibility"
	"github.com/openpace/paceline/internal/domain/model"
	"github.com/openpace/paceline/internal/domain/normalize"
	"github.com/openpace/paceline/internal/domain/rank"
	"github.com/openpace/paceline/internal/domain/types"
	"github.com/openpace/paceline/pkg/logger"
	"github.com/openpace/paceline/pkg/metrics"
)

// Refresh outcome labels for metrics.
const (
	outcomeFresh     = "fresh"
	outcomeCached    = "cached"
	outcomeStale     = "stale"
	outcomeThrottled = "throttled"
)

// competitionState is the per-competition aggregation owned by the
// refresher. It is only touched inside a single-flight refresh, so the
// incremental fold never reprocesses history and never races.
type competitionState struct {
	competition model.Competition
	filter      *eligibility.Filter
	state       *aggregate.State
	limiter     *rate.Limiter
	refreshedAt time.Time
}

// Refresher pulls records from the source, runs them through
// normalize -> filter -> fold -> rank and publishes immutable
// snapshots. At most one refresh per competition is in flight at a
// time; concurrent callers collapse onto the in-flight cycle.
type Refresher struct {
	mu           sync.Mutex
	competitions map[string]*competitionState

	records    source.RecordSource
	store      repository.Store
	normalizer *normalize.Normalizer
	group      singleflight.Group

	snapshotTTL  time.Duration
	fetchTimeout time.Duration
	minInterval  time.Duration
	fetchLimit   int
	feedLimit    int

	now    func() time.Time
	logger logger.Logger
}

// RefresherOption applies a configuration option to the Refresher.
type RefresherOption func(*Refresher)

// WithSnapshotTTL sets the freshness window; refreshes inside it reuse
// the cached snapshot without network access.
func WithSnapshotTTL(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.snapshotTTL = d
		}
	}
}

// WithFetchTimeout bounds the source fetch of one refresh cycle.
func WithFetchTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithMinRefreshInterval rate-limits refresh attempts per competition.
func WithMinRefreshInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.minInterval = d
		}
	}
}

// WithFetchLimit caps records requested per refresh.
func WithFetchLimit(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.fetchLimit = n
		}
	}
}

// WithFeedLimit caps the chronological feed in a snapshot.
func WithFeedLimit(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.feedLimit = n
		}
	}
}

// WithRefresherClock overrides the time source, for tests.
func WithRefresherClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRefresherLogger sets a custom logger.
func WithRefresherLogger(l logger.Logger) RefresherOption {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}

// Default refresher configuration constants.
const (
	defaultSnapshotTTL  = 15 * time.Minute
	defaultFetchTimeout = 10 * time.Second
	defaultMinInterval  = 30 * time.Second
	defaultFetchLimit   = 2000
	defaultFeedLimit    = 50
	limiterBurst        = 1
)

// NewRefresher creates a refresher serving the given competitions.
func NewRefresher(records source.RecordSource, store repository.Store, competitions []model.Competition, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		competitions: make(map[string]*competitionState, len(competitions)),
		records:      records,
		store:        store,
		normalizer:   normalize.New(),
		snapshotTTL:  defaultSnapshotTTL,
		fetchTimeout: defaultFetchTimeout,
		minInterval:  defaultMinInterval,
		fetchLimit:   defaultFetchLimit,
		feedLimit:    defaultFeedLimit,
		now:          time.Now,
		logger:       logger.Get().Named("refresher"),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, c := range competitions {
		r.competitions[c.ID] = &competitionState{
			competition: c,
			filter:      eligibility.New(c),
			state:       aggregate.NewState(),
			limiter:     rate.NewLimiter(rate.Every(r.minInterval), limiterBurst),
		}
	}
	return r
}

// Competition returns a served competition by id.
func (r *Refresher) Competition(id string) (model.Competition, bool) {
	cs, ok := r.competitions[id]
	if !ok {
		return model.Competition{}, false
	}
	return cs.competition, true
}

// Refresh runs one refresh cycle for a competition. Concurrent calls
// for the same competition collapse into one underlying fetch; callers
// arriving mid-flight receive that cycle's result. Force bypasses the
// freshness window but not the rate limit.
func (r *Refresher) Refresh(ctx context.Context, competitionID string, force bool) error {
	_, err, _ := r.group.Do(competitionID, func() (any, error) {
		return nil, r.refresh(ctx, competitionID, force)
	})
	return err
}

func (r *Refresher) refresh(ctx context.Context, competitionID string, force bool) error {
	r.mu.Lock()
	cs, ok := r.competitions[competitionID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrUnknownCompetition, competitionID)
	}

	now := r.now()
	if !force && !cs.refreshedAt.IsZero() && now.Sub(cs.refreshedAt) < r.snapshotTTL {
		metrics.RecordRefresh(outcomeCached)
		return nil
	}
	if !cs.limiter.Allow() {
		// A failing source is retried on the next scheduled or
		// manual refresh, never in a tight loop.
		metrics.RecordRefresh(outcomeThrottled)
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RecordRefreshDuration(time.Since(start).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	roster := cs.competition.Roster
	records, err := r.records.Fetch(fetchCtx, source.Filter{
		Kind:    source.KindActivity,
		Authors: roster.Identities(),
		Since:   roster.EarliestEligibility(),
		Until:   cs.competition.EndAt,
		Limit:   r.fetchLimit,
	})
	if err != nil {
		// Prior good snapshot stays current with a staleness flag.
		r.store.MarkStale(ctx, competitionID)
		metrics.RecordRefresh(outcomeStale)
		return fmt.Errorf("source unavailable for %s: %w", competitionID, err)
	}
	metrics.RecordRecordsFetched(len(records))

	r.ingest(ctx, cs, records)

	snapshot := r.buildSnapshot(cs, now)
	r.store.Publish(ctx, snapshot)

	r.mu.Lock()
	cs.refreshedAt = now
	r.mu.Unlock()

	metrics.RecordRefresh(outcomeFresh)
	r.logger.Info(ctx, "snapshot published",
		logger.String("competition", competitionID),
		logger.String("version", snapshot.Version),
		logger.Int("fetched", len(records)),
		logger.Int("entries", len(snapshot.Entries)),
	)
	return nil
}

// ingest folds fetched records into the competition's state. One bad
// record never aborts the cycle: normalization absorbs malformed tags
// and the filter turns ineligible records into counted rejections.
func (r *Refresher) ingest(ctx context.Context, cs *competitionState, records []model.RawRecord) {
	for _, raw := range records {
		activity := r.normalizer.Normalize(raw)
		ok, reason := cs.filter.Check(activity)
		if !ok {
			metrics.RecordRecordRejected(reason.String())
			r.logger.Debug(ctx, "record rejected",
				logger.String("record", raw.ID),
				logger.String("reason", reason.String()),
			)
			continue
		}
		if cs.state.Fold(activity) {
			metrics.RecordRecordAccepted()
		} else {
			metrics.RecordRecordDuplicate()
		}
	}
}

// buildSnapshot derives the immutable read view from the current
// aggregation state. Leaderboard and feed come from the same fold, so
// the two views can never disagree on units or filtering.
func (r *Refresher) buildSnapshot(cs *competitionState, now time.Time) types.Snapshot {
	entries := rank.Rank(cs.state, cs.competition.CourseTotalKm)

	apiEntries := make([]types.Entry, len(entries))
	for i, e := range entries {
		apiEntries[i] = types.Entry{
			Rank:            e.Rank,
			Participant:     string(e.Participant),
			TotalDistanceKm: e.TotalDistanceKm,
			ActivityCount:   e.ActivityCount,
			ProgressPercent: e.ProgressPercent,
		}
	}

	return types.Snapshot{
		CompetitionID: cs.competition.ID,
		Version:       uuid.NewString(),
		Entries:       apiEntries,
		Feed:          r.buildFeed(cs),
		LastUpdated:   now.Unix(),
		Stale:         false,
	}
}

// buildFeed flattens accepted activities into a newest-first feed,
// bounded to the configured size.
func (r *Refresher) buildFeed(cs *competitionState) []types.FeedItem {
	var items []types.FeedItem
	for _, t := range cs.state.All() {
		for _, a := range t.Activities() {
			items = append(items, types.FeedItem{
				RecordID:        a.RecordID,
				Participant:     string(a.Participant),
				OccurredAt:      a.OccurredAt.Unix(),
				Class:           a.Class.String(),
				DistanceKm:      a.DistanceKm,
				Title:           a.Title,
				DurationSeconds: int64(a.Duration.Seconds()),
			})
		}
	}
	sortFeed(items)
	if len(items) > r.feedLimit {
		items = items[:r.feedLimit]
	}
	return items
}

// sortFeed orders feed items newest first, record id as tie-break.
func sortFeed(items []types.FeedItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].OccurredAt != items[j].OccurredAt {
			return items[i].OccurredAt > items[j].OccurredAt
		}
		return items[i].RecordID < items[j].RecordID
	})
}
