// Package model contains domain models passed between layers.
package model

import "time"

// Identity is the opaque stable identifier of a participant
// (public key of the record author on the federated network).
type Identity string

// ActivityClass is the canonical classification of an activity record.
type ActivityClass int

// Canonical activity classes. ClassOther covers anything the synonym
// table does not recognize, including missing labels.
const (
	ClassOther ActivityClass = iota
	ClassRun
	ClassWalk
	ClassCycle
)

// String returns the lowercase name used in config, logs and API payloads.
func (c ActivityClass) String() string {
	switch c {
	case ClassRun:
		return "run"
	case ClassWalk:
		return "walk"
	case ClassCycle:
		return "cycle"
	default:
		return "other"
	}
}

// Tag is an ordered key/value list entry on a raw record. The first
// element is the key, the remainder are positional values.
type Tag []string

// Key returns the tag key, or "" for an empty tag.
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the i-th value after the key, or "" when absent.
func (t Tag) Value(i int) string {
	if i < 0 || i+1 >= len(t) {
		return ""
	}
	return t[i+1]
}

// RawRecord is an activity record as delivered by the record source.
// It is untrusted: it may be malformed, duplicated across sources, or
// carry timestamps outside any sane range.
type RawRecord struct {
	ID        string    // globally unique, used for dedup
	Author    Identity  // record author's public key
	CreatedAt time.Time // claimed creation time
	Tags      []Tag
	Content   string
}

// Tag returns the first tag with the given key.
func (r RawRecord) Tag(key string) (Tag, bool) {
	for _, t := range r.Tags {
		if t.Key() == key {
			return t, true
		}
	}
	return nil, false
}

// Activity is the canonical, strongly-typed form of an accepted raw
// record. DistanceKm is always kilometers; a value of 0 is the
// normalizer's rejection sentinel. Never mutated after creation.
type Activity struct {
	RecordID    string
	Participant Identity
	OccurredAt  time.Time
	Class       ActivityClass
	DistanceKm  float64
	RawUnit     string        // original unit, retained for display
	Duration    time.Duration // 0 when the record carries no duration
	Title       string        // free-text title for feed display
}

// Rejected reports whether the normalizer discarded this record's
// distance (malformed tags or an implausible value).
func (a Activity) Rejected() bool {
	return a.DistanceKm == 0
}

// SubscriptionReceipt is one observed renewal payment. Immutable.
type SubscriptionReceipt struct {
	Payer       Identity
	PeriodStart time.Time
	PeriodEnd   time.Time
	AmountSats  int64
}
