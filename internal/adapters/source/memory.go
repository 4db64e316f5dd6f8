package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/openpace/paceline/internal/domain/model"
)

// MemorySource is an in-process RecordSource and ReceiptSource used by
// tests and the simulator. It stores records per kind and applies
// filters the way a relay would.
type MemorySource struct {
	mu      sync.RWMutex
	records map[int][]model.RawRecord
	closed  bool

	// fetchErr, when set, makes every fetch fail. Tests use this to
	// exercise the stale-while-revalidate path.
	fetchErr error
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{records: make(map[int][]model.RawRecord)}
}

// Publish appends records under a kind. Duplicates are kept as-is;
// delivering the same record twice is normal for a federated store.
func (s *MemorySource) Publish(kind int, records ...model.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[kind] = append(s.records[kind], records...)
}

// FailWith makes subsequent fetches return err; nil restores normal
// operation.
func (s *MemorySource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// Fetch returns activity-kind records matching the filter.
func (s *MemorySource) Fetch(ctx context.Context, f Filter) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	kind := f.Kind
	if kind == 0 {
		kind = KindActivity
	}
	var out []model.RawRecord
	for _, r := range s.records[kind] {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// FetchReceipts returns parsed receipts for a payer, newest period
// first, capped at limit.
func (s *MemorySource) FetchReceipts(ctx context.Context, payer model.Identity, limit int) ([]model.SubscriptionReceipt, error) {
	raw, err := s.Fetch(ctx, Filter{
		Kind:    KindSubscriptionReceipt,
		Authors: []model.Identity{payer},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	receipts := make([]model.SubscriptionReceipt, 0, len(raw))
	for _, r := range raw {
		if receipt, ok := ParseReceipt(r); ok {
			receipts = append(receipts, receipt)
		}
	}
	return receipts, nil
}

// Close marks the source closed; fetches fail afterwards.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
