// Package config defines service configuration structures and loading.
//
// Conventions follow the rest of the codebase: defaults in New, koanf
// tags on every field, validation at load time. Competition rosters are
// declared here because curation is manual; a roster entry without an
// eligibility start fails loading outright instead of defaulting a
// window.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/openpace/paceline/internal/domain/model"
)

// RosterEntry declares one participant of a competition.
type RosterEntry struct {
	// Identity is the participant's public key.
	Identity string `koanf:"identity"`

	// EligibleFrom is RFC3339 or unix seconds. Activities before
	// this instant never count for the participant.
	EligibleFrom string `koanf:"eligible_from"`
}

// CompetitionConfig declares one time-boxed competition.
type CompetitionConfig struct {
	ID            string        `koanf:"id"`
	Name          string        `koanf:"name"`
	EndAt         string        `koanf:"end_at"` // RFC3339 or unix seconds
	CourseTotalKm float64       `koanf:"course_total_km"`
	Mode          string        `koanf:"mode"` // run, walk, cycle
	Roster        []RosterEntry `koanf:"roster"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RefreshQueueSize bounds the refresh-request queue.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// SnapshotTTLSec is how long a computed snapshot stays fresh;
	// refreshes inside the window return the cache without network
	// access.
	SnapshotTTLSec int `koanf:"snapshot_ttl_sec"`

	// AutoRefreshSec is the background refresh period per
	// competition. Zero disables background refreshing.
	AutoRefreshSec int `koanf:"auto_refresh_sec"`

	// MinRefreshIntervalSec rate-limits refresh attempts per
	// competition so a failing source is not retried in a tight loop.
	MinRefreshIntervalSec int `koanf:"min_refresh_interval_sec"`

	// FetchTimeoutMS bounds a single source fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// FetchLimit caps records requested per refresh.
	FetchLimit int `koanf:"fetch_limit"`

	// FeedLimit caps the chronological feed in a snapshot.
	FeedLimit int `koanf:"feed_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Competitions declares the leagues this instance serves.
	Competitions []CompetitionConfig `koanf:"competitions"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		RefreshQueueSize:      1024,
		WorkerCount:           runtime.NumCPU(),
		SnapshotTTLSec:        15 * 60,
		AutoRefreshSec:        15 * 60,
		MinRefreshIntervalSec: 30,
		FetchTimeoutMS:        10_000,
		FetchLimit:            2000,
		FeedLimit:             50,
		MaxLeaderboardLimit:   100,
	}
}

// SnapshotTTL returns the snapshot freshness window.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSec) * time.Second
}

// AutoRefresh returns the background refresh period, 0 when disabled.
func (c *Config) AutoRefresh() time.Duration {
	return time.Duration(c.AutoRefreshSec) * time.Second
}

// MinRefreshInterval returns the per-competition refresh rate floor.
func (c *Config) MinRefreshInterval() time.Duration {
	return time.Duration(c.MinRefreshIntervalSec) * time.Second
}

// FetchTimeout returns the per-fetch deadline.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// Competition materializes one declared competition, validating its
// roster. The returned error wraps ErrInvalidConfig or, for roster
// problems, model.ErrInconsistentRoster.
func (cc CompetitionConfig) Competition() (model.Competition, error) {
	if cc.ID == "" {
		return model.Competition{}, fmt.Errorf("%w: competition without id", ErrInvalidConfig)
	}
	endAt, err := parseTime(cc.EndAt)
	if err != nil {
		return model.Competition{}, fmt.Errorf("%w: competition %s end_at: %v", ErrInvalidConfig, cc.ID, err)
	}
	mode, err := parseMode(cc.Mode)
	if err != nil {
		return model.Competition{}, fmt.Errorf("%w: competition %s: %v", ErrInvalidConfig, cc.ID, err)
	}

	entries := make([]model.Participant, 0, len(cc.Roster))
	for _, e := range cc.Roster {
		eligibleFrom, err := parseTime(e.EligibleFrom)
		if err != nil {
			return model.Competition{}, fmt.Errorf("%w: roster entry %s: %v", model.ErrInconsistentRoster, e.Identity, err)
		}
		entries = append(entries, model.Participant{
			Identity:     model.Identity(e.Identity),
			EligibleFrom: eligibleFrom,
		})
	}
	roster, err := model.NewRoster(entries)
	if err != nil {
		return model.Competition{}, fmt.Errorf("competition %s: %w", cc.ID, err)
	}

	return model.Competition{
		ID:            cc.ID,
		Name:          cc.Name,
		EndAt:         endAt,
		CourseTotalKm: cc.CourseTotalKm,
		Mode:          mode,
		Roster:        roster,
	}, nil
}

// Competitions materializes every declared competition.
func (c *Config) CompetitionList() ([]model.Competition, error) {
	out := make([]model.Competition, 0, len(c.Competitions))
	for _, cc := range c.Competitions {
		comp, err := cc.Competition()
		if err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, nil
}

// parseTime accepts RFC3339 or unix seconds.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("not RFC3339 or unix seconds: %q", s)
	}
	return t.UTC(), nil
}

// parseMode maps a configured mode string to an activity class. An
// empty mode is invalid: a competition always targets one mode.
func parseMode(s string) (model.ActivityClass, error) {
	switch s {
	case "run":
		return model.ClassRun, nil
	case "walk":
		return model.ClassWalk, nil
	case "cycle":
		return model.ClassCycle, nil
	default:
		return model.ClassOther, fmt.Errorf("unknown mode: %q", s)
	}
}
