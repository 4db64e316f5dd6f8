package source

import (
	"context"
	"sync"
	"time"

	"github.com/openpace/paceline/internal/domain/model"
	"github.com/openpace/paceline/pkg/logger"
	"github.com/openpace/paceline/pkg/metrics"
)

// Default multi-source configuration constants.
const (
	defaultPerSourceTimeout = 10 * time.Second
)

// Option applies a configuration option to the MultiSource.
type Option func(*MultiSource)

// WithPerSourceTimeout bounds each individual source fetch. Unreachable
// nodes must not hang a refresh indefinitely.
func WithPerSourceTimeout(d time.Duration) Option {
	return func(m *MultiSource) {
		if d > 0 {
			m.perSourceTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the multi-source.
func WithLogger(l logger.Logger) Option {
	return func(m *MultiSource) {
		if l != nil {
			m.logger = l
		}
	}
}

// MultiSource fans a fetch out to several independent sources and
// merges the results by record id. The same record may arrive from
// zero, one or many sources; overlap is expected and harmless because
// the merge dedups and the downstream fold is idempotent anyway.
type MultiSource struct {
	sources          []RecordSource
	perSourceTimeout time.Duration
	logger           logger.Logger
}

// NewMultiSource creates a fan-out source over the given backends.
func NewMultiSource(sources []RecordSource, opts ...Option) *MultiSource {
	m := &MultiSource{
		sources:          sources,
		perSourceTimeout: defaultPerSourceTimeout,
		logger:           logger.Get().Named("source"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fetch queries every backend concurrently and merges the results.
// Partial failure is tolerated: the merged set of whatever complete
// results were gathered is returned as long as at least one source
// succeeded. Only when every source fails does Fetch return an error.
func (m *MultiSource) Fetch(ctx context.Context, f Filter) ([]model.RawRecord, error) {
	if len(m.sources) == 0 {
		return nil, ErrNoSources
	}

	type result struct {
		records []model.RawRecord
		err     error
	}
	results := make([]result, len(m.sources))

	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src RecordSource) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, m.perSourceTimeout)
			defer cancel()
			records, err := src.Fetch(fetchCtx, f)
			results[i] = result{records: records, err: err}
		}(i, src)
	}
	wg.Wait()

	merged := make(map[string]model.RawRecord)
	failures := 0
	for i, res := range results {
		if res.err != nil {
			failures++
			metrics.RecordSourceError()
			m.logger.Debug(ctx, "source fetch failed",
				logger.Int("source", i),
				logger.Err(res.err),
			)
			continue
		}
		for _, r := range res.records {
			if r.ID == "" {
				continue
			}
			merged[r.ID] = r
		}
	}
	if failures == len(m.sources) {
		return nil, ErrAllSourcesFailed
	}

	out := make([]model.RawRecord, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sortRecords(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
