// Package types contains the read shapes served to presentation
// collaborators. Timestamps are unix seconds on the wire.
package types

// Entry represents a leaderboard row.
type Entry struct {
	Rank            int     `json:"rank"`
	Participant     string  `json:"participant"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	ActivityCount   int     `json:"activity_count"`
	ProgressPercent float64 `json:"progress_percent"`
}

// FeedItem is one accepted activity in the chronological feed. The feed
// derives from the same fold as the leaderboard, so the two views are
// explainably consistent.
type FeedItem struct {
	RecordID        string  `json:"record_id"`
	Participant     string  `json:"participant"`
	OccurredAt      int64   `json:"occurred_at"`
	Class           string  `json:"class"`
	DistanceKm      float64 `json:"distance_km"`
	Title           string  `json:"title,omitempty"`
	DurationSeconds int64   `json:"duration_seconds,omitempty"`
}

// Snapshot is an immutable, fully-computed leaderboard state published
// atomically by a refresh cycle. Consumers diff Version to react to
// changes.
type Snapshot struct {
	CompetitionID string     `json:"competition_id"`
	Version       string     `json:"version"`
	Entries       []Entry    `json:"entries"`
	Feed          []FeedItem `json:"feed"`
	LastUpdated   int64      `json:"last_updated"`
	Stale         bool       `json:"stale"`
}

// Membership is the evaluated subscription state for one participant.
type Membership struct {
	Participant string `json:"participant"`
	Phase       string `json:"phase"`
	NextDue     int64  `json:"next_due,omitempty"`
}
