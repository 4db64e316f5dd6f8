// Package source defines the read interface to the external federated
// record store and a fan-out client that merges results from several
// independent nodes. Fetching is the only operation in the engine that
// may block on network I/O.
package source

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/openpace/paceline/internal/domain/model"
)

// Kind discriminators for the record types the engine consumes.
const (
	// KindActivity marks workout activity records.
	KindActivity = 1301
	// KindSubscriptionReceipt marks membership renewal receipts.
	KindSubscriptionReceipt = 33407
)

// Receipt tag keys.
const (
	periodStartTagKey = "period_start"
	periodEndTagKey   = "period_end"
	amountTagKey      = "amount"
)

// Filter selects records on a fetch: author identities, a kind
// discriminator, a time range and a result cap.
type Filter struct {
	Kind    int
	Authors []model.Identity
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Matches reports whether a record satisfies the filter. Kind matching
// is the caller's concern; sources store records per kind.
func (f Filter) Matches(r model.RawRecord) bool {
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.CreatedAt.After(f.Until) {
		return false
	}
	if len(f.Authors) == 0 {
		return true
	}
	for _, a := range f.Authors {
		if a == r.Author {
			return true
		}
	}
	return false
}

// RecordSource is the fetch primitive for activity records.
type RecordSource interface {
	// Fetch returns records matching the filter. Implementations
	// must honor ctx for cancellation and deadlines.
	Fetch(ctx context.Context, f Filter) ([]model.RawRecord, error)
}

// ReceiptSource is the fetch primitive for membership receipts.
type ReceiptSource interface {
	FetchReceipts(ctx context.Context, payer model.Identity, limit int) ([]model.SubscriptionReceipt, error)
}

// ParseReceipt interprets a raw receipt record. Records without a
// usable period_end are dropped by returning ok=false; receipt
// interpretation absorbs malformed input the same way normalization
// does.
func ParseReceipt(r model.RawRecord) (model.SubscriptionReceipt, bool) {
	endTag, ok := r.Tag(periodEndTagKey)
	if !ok {
		return model.SubscriptionReceipt{}, false
	}
	end, err := strconv.ParseInt(endTag.Value(0), 10, 64)
	if err != nil || end <= 0 {
		return model.SubscriptionReceipt{}, false
	}
	receipt := model.SubscriptionReceipt{
		Payer:     r.Author,
		PeriodEnd: time.Unix(end, 0).UTC(),
	}
	if startTag, ok := r.Tag(periodStartTagKey); ok {
		if start, err := strconv.ParseInt(startTag.Value(0), 10, 64); err == nil && start > 0 {
			receipt.PeriodStart = time.Unix(start, 0).UTC()
		}
	}
	if amountTag, ok := r.Tag(amountTagKey); ok {
		if sats, err := strconv.ParseInt(amountTag.Value(0), 10, 64); err == nil && sats > 0 {
			receipt.AmountSats = sats
		}
	}
	return receipt, true
}

// sortRecords orders records deterministically by (CreatedAt, ID) so
// merged multi-source results are stable.
func sortRecords(records []model.RawRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
