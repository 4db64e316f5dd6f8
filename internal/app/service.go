package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/openpace/paceline/internal/adapters/mq/queue"
	workerpool "github.com/openpace/paceline/internal/adapters/mq/worker"
	"github.com/openpace/paceline/internal/adapters/repository"
	"github.com/openpace/paceline/internal/adapters/source"
	"github.com/openpace/paceline/internal/domain/membership"
	"github.com/openpace/paceline/internal/domain/model"
	"github.com/openpace/paceline/internal/domain/types"
	"github.com/openpace/paceline/pkg/logger"
	"github.com/openpace/paceline/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize     = 1024
	receiptFetchLimit    = 20
	shutdownGracePeriod  = 30 * time.Second
	backgroundJobTimeout = time.Minute
)

// Service implements the API dependencies for the scoring engine. The
// record source and the competition roster arrive through constructor
// options, never through ambient global state.
type Service struct {
	mu sync.RWMutex

	// Core components
	records   source.RecordSource
	receipts  source.ReceiptSource
	store     repository.Store
	refresher *Refresher
	queue     queue.Queue
	pool      *workerpool.Pool

	// Configuration
	competitions []model.Competition
	workerCount  int
	queueSize    int
	autoRefresh  time.Duration
	refresherOpt []RefresherOption

	// State
	started bool
	cancel  context.CancelFunc

	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRecordSource sets the activity record source.
func WithRecordSource(s source.RecordSource) Option {
	return func(svc *Service) {
		if s != nil {
			svc.records = s
		}
	}
}

// WithReceiptSource sets the membership receipt source.
func WithReceiptSource(s source.ReceiptSource) Option {
	return func(svc *Service) {
		if s != nil {
			svc.receipts = s
		}
	}
}

// WithCompetitions sets the competitions this instance serves.
func WithCompetitions(competitions []model.Competition) Option {
	return func(svc *Service) {
		svc.competitions = competitions
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(svc *Service) {
		if count > 0 {
			svc.workerCount = count
		}
	}
}

// WithQueueSize sets the refresh queue capacity.
func WithQueueSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.queueSize = size
		}
	}
}

// WithAutoRefresh sets the background refresh period. Zero disables
// background refreshing.
func WithAutoRefresh(d time.Duration) Option {
	return func(svc *Service) {
		if d >= 0 {
			svc.autoRefresh = d
		}
	}
}

// WithRefresherOptions forwards options to the refresher.
func WithRefresherOptions(opts ...RefresherOption) Option {
	return func(svc *Service) {
		svc.refresherOpt = append(svc.refresherOpt, opts...)
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	svc := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		autoRefresh: defaultSnapshotTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.records == nil {
		return ErrNoRecordSource
	}
	if len(s.competitions) == 0 {
		return ErrNoCompetitions
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.store = repository.NewSnapshotStore()
	s.refresher = NewRefresher(s.records, s.store, s.competitions, s.refresherOpt...)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.refresher)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	if s.autoRefresh > 0 {
		go s.backgroundRefresh(runCtx)
	}
	// Warm every competition once at startup.
	for _, c := range s.competitions {
		s.queue.Enqueue(runCtx, queue.Job{CompetitionID: c.ID})
	}

	s.started = true
	s.logger.Info(ctx, "scoring engine started",
		logger.Int("competitions", len(s.competitions)),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	_ = s.queue.Close()
	if err := s.pool.Stop(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool stop", logger.Err(err))
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "scoring engine stopped")
}

// backgroundRefresh enqueues periodic refresh jobs for every served
// competition. Jobs flow through the same queue as manual requests, so
// single-flight and caching rules apply uniformly.
func (s *Service) backgroundRefresh(ctx context.Context) {
	ticker := time.NewTicker(s.autoRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range s.competitions {
				s.queue.Enqueue(ctx, queue.Job{CompetitionID: c.ID})
			}
		}
	}
}

// GetSnapshot returns the current leaderboard snapshot for a
// competition. Before the first refresh completes an empty, stale
// snapshot is returned and a warming refresh is requested; callers see
// a staleness indicator, never a hard error.
func (s *Service) GetSnapshot(ctx context.Context, competitionID string) (types.Snapshot, error) {
	refresher, q := s.components()
	if refresher == nil {
		return types.Snapshot{}, ErrNotStarted
	}
	if _, ok := refresher.Competition(competitionID); !ok {
		return types.Snapshot{}, fmt.Errorf("%w: %s", repository.ErrUnknownCompetition, competitionID)
	}
	if snap, ok := s.store.Current(ctx, competitionID); ok {
		metrics.UpdateSnapshotAge(competitionID, s.now().Sub(time.Unix(snap.LastUpdated, 0)).Seconds())
		return snap, nil
	}
	q.Enqueue(ctx, queue.Job{CompetitionID: competitionID})
	return types.Snapshot{CompetitionID: competitionID, Stale: true}, nil
}

// RequestRefresh triggers a refresh for a competition, honoring
// single-flight and caching rules. Fire-and-forget: the return value
// only reports whether the request was queued.
func (s *Service) RequestRefresh(ctx context.Context, competitionID string, force bool) bool {
	refresher, q := s.components()
	if refresher == nil {
		return false
	}
	if _, ok := refresher.Competition(competitionID); !ok {
		return false
	}
	return q.Enqueue(ctx, queue.Job{CompetitionID: competitionID, Force: force})
}

// GetMembership evaluates the subscription phase of a participant in a
// competition from its receipt history.
func (s *Service) GetMembership(ctx context.Context, competitionID string, participant model.Identity) (types.Membership, error) {
	refresher, _ := s.components()
	if refresher == nil {
		return types.Membership{}, ErrNotStarted
	}
	competition, ok := refresher.Competition(competitionID)
	if !ok {
		return types.Membership{}, fmt.Errorf("%w: %s", repository.ErrUnknownCompetition, competitionID)
	}
	if _, ok := competition.Roster.Lookup(participant); !ok {
		return types.Membership{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, participant)
	}

	var receipts []model.SubscriptionReceipt
	if s.receipts != nil {
		var err error
		receipts, err = s.receipts.FetchReceipts(ctx, participant, receiptFetchLimit)
		if err != nil {
			return types.Membership{}, fmt.Errorf("fetch receipts: %w", err)
		}
		metrics.RecordReceiptsFetched(len(receipts))
	}

	status := membership.StatusOf(receipts, s.now())
	m := types.Membership{
		Participant: string(participant),
		Phase:       status.Phase.String(),
	}
	if !status.NextDue.IsZero() {
		m.NextDue = status.NextDue.Unix()
	}
	return m, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"competitions": len(s.competitions),
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
	}
	if s.started {
		ctx := context.Background()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["snapshots"] = s.store.Count(ctx)
		metrics.UpdateQueueDepth(s.queue.Len(ctx))
	}
	return stats
}

// components returns the refresher and queue under the read lock, or
// nils when the service has not started.
func (s *Service) components() (*Refresher, queue.Queue) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil
	}
	return s.refresher, s.queue
}
