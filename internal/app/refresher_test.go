package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openpace/paceline/internal/adapters/repository"
	"github.com/openpace/paceline/internal/adapters/source"
	service "github.com/openpace/paceline/internal/app"
	"github.com/openpace/paceline/internal/domain/model"
)

// countingSource wraps a MemorySource and counts fetches. An optional
// gate blocks fetches until released, for concurrency tests.
type countingSource struct {
	*source.MemorySource

	mu      sync.Mutex
	fetches int
	gate    chan struct{}
}

func newCountingSource() *countingSource {
	return &countingSource{MemorySource: source.NewMemorySource()}
}

func (s *countingSource) Fetch(ctx context.Context, f source.Filter) ([]model.RawRecord, error) {
	s.mu.Lock()
	s.fetches++
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.MemorySource.Fetch(ctx, f)
}

func (s *countingSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

var (
	eligibleP1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	eligibleP2 = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	endAt      = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
)

func springRun(t *testing.T) model.Competition {
	t.Helper()
	roster, err := model.NewRoster([]model.Participant{
		{Identity: "p1", EligibleFrom: eligibleP1},
		{Identity: "p2", EligibleFrom: eligibleP2},
	})
	if err != nil {
		t.Fatal(err)
	}
	return model.Competition{
		ID:            "spring-run",
		Name:          "Spring Run",
		EndAt:         endAt,
		CourseTotalKm: 100,
		Mode:          model.ClassRun,
		Roster:        roster,
	}
}

func runRecord(id string, author model.Identity, at time.Time, distance, unit string) model.RawRecord {
	return model.RawRecord{
		ID:        id,
		Author:    author,
		CreatedAt: at,
		Tags: []model.Tag{
			{"distance", distance, unit},
			{"exercise", "running"},
		},
	}
}

func TestRefresherScenario(t *testing.T) {
	ctx := context.Background()

	Convey("Given a competition and a mixed batch of records", t, func() {
		competition := springRun(t)
		src := newCountingSource()
		inWindow := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

		src.Publish(source.KindActivity,
			// Counts once for p1.
			runRecord("rec-1", "p1", inWindow, "5.0", "km"),
			// Same id delivered again by another relay.
			runRecord("rec-1", "p1", inWindow, "5.0", "km"),
			// Before p2's individual eligibility window.
			runRecord("rec-2", "p2", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "10.0", "km"),
			// Author not on the roster.
			runRecord("rec-4", "mallory", inWindow, "7.0", "km"),
			// Wrong activity class for a run competition.
			model.RawRecord{
				ID: "rec-5", Author: "p1", CreatedAt: inWindow,
				Tags: []model.Tag{{"distance", "20", "km"}, {"exercise", "cycling"}},
			},
			// Corrupt distance.
			model.RawRecord{
				ID: "rec-6", Author: "p1", CreatedAt: inWindow,
				Tags: []model.Tag{{"distance", "far", "km"}, {"exercise", "running"}},
			},
		)
		// After the competition end; outside the fetch window entirely.
		src.Publish(source.KindActivity,
			runRecord("rec-3", "p1", endAt.Add(time.Hour), "3.0", "km"),
		)

		store := repository.NewSnapshotStore()
		refresher := service.NewRefresher(src, store, []model.Competition{competition},
			service.WithMinRefreshInterval(time.Nanosecond),
		)

		Convey("When one refresh cycle runs", func() {
			err := refresher.Refresh(ctx, "spring-run", false)

			Convey("Then a snapshot with only the valid activity publishes", func() {
				So(err, ShouldBeNil)
				snap, ok := store.Current(ctx, "spring-run")
				So(ok, ShouldBeTrue)
				So(snap.Stale, ShouldBeFalse)
				So(snap.Version, ShouldNotBeEmpty)

				So(len(snap.Entries), ShouldEqual, 1)
				So(snap.Entries[0].Participant, ShouldEqual, "p1")
				So(snap.Entries[0].Rank, ShouldEqual, 1)
				So(snap.Entries[0].TotalDistanceKm, ShouldEqual, 5.0)
				So(snap.Entries[0].ActivityCount, ShouldEqual, 1)
				So(snap.Entries[0].ProgressPercent, ShouldEqual, 5.0)
			})

			Convey("Then the feed mirrors the accepted set", func() {
				snap, _ := store.Current(ctx, "spring-run")
				So(len(snap.Feed), ShouldEqual, 1)
				So(snap.Feed[0].RecordID, ShouldEqual, "rec-1")
				So(snap.Feed[0].Class, ShouldEqual, "run")
			})
		})

		Convey("When the same batch is refreshed again with force", func() {
			So(refresher.Refresh(ctx, "spring-run", false), ShouldBeNil)
			So(refresher.Refresh(ctx, "spring-run", true), ShouldBeNil)

			Convey("Then totals do not double", func() {
				snap, _ := store.Current(ctx, "spring-run")
				So(snap.Entries[0].TotalDistanceKm, ShouldEqual, 5.0)
				So(snap.Entries[0].ActivityCount, ShouldEqual, 1)
			})
		})

		Convey("When refreshing an unknown competition", func() {
			err := refresher.Refresh(ctx, "nope", false)

			So(errors.Is(err, repository.ErrUnknownCompetition), ShouldBeTrue)
		})
	})
}

func TestRefresherCaching(t *testing.T) {
	ctx := context.Background()

	Convey("Given a refresher with a freshness window", t, func() {
		competition := springRun(t)
		src := newCountingSource()
		store := repository.NewSnapshotStore()
		refresher := service.NewRefresher(src, store, []model.Competition{competition},
			service.WithSnapshotTTL(time.Hour),
			service.WithMinRefreshInterval(time.Nanosecond),
		)

		Convey("When refreshing twice inside the window", func() {
			So(refresher.Refresh(ctx, "spring-run", false), ShouldBeNil)
			So(refresher.Refresh(ctx, "spring-run", false), ShouldBeNil)

			Convey("Then the second call never reaches the source", func() {
				So(src.fetchCount(), ShouldEqual, 1)
			})
		})

		Convey("When forcing a refresh inside the window", func() {
			So(refresher.Refresh(ctx, "spring-run", false), ShouldBeNil)
			So(refresher.Refresh(ctx, "spring-run", true), ShouldBeNil)

			Convey("Then force bypasses the freshness window", func() {
				So(src.fetchCount(), ShouldEqual, 2)
			})
		})

		Convey("When the window has passed", func() {
			now := time.Now()
			clock := now
			var mu sync.Mutex
			tick := func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return clock
			}
			aged := service.NewRefresher(src, store, []model.Competition{competition},
				service.WithSnapshotTTL(time.Hour),
				service.WithMinRefreshInterval(time.Nanosecond),
				service.WithRefresherClock(tick),
			)

			So(aged.Refresh(ctx, "spring-run", false), ShouldBeNil)
			mu.Lock()
			clock = now.Add(2 * time.Hour)
			mu.Unlock()
			So(aged.Refresh(ctx, "spring-run", false), ShouldBeNil)

			Convey("Then the second refresh fetches again", func() {
				So(src.fetchCount(), ShouldEqual, 2)
			})
		})
	})
}

func TestRefresherThrottling(t *testing.T) {
	ctx := context.Background()

	Convey("Given a refresher with a rate floor", t, func() {
		competition := springRun(t)
		src := newCountingSource()
		store := repository.NewSnapshotStore()
		refresher := service.NewRefresher(src, store, []model.Competition{competition},
			service.WithMinRefreshInterval(time.Hour),
		)

		Convey("When forcing refreshes back to back", func() {
			So(refresher.Refresh(ctx, "spring-run", true), ShouldBeNil)
			So(refresher.Refresh(ctx, "spring-run", true), ShouldBeNil)

			Convey("Then the rate limit holds even against force", func() {
				So(src.fetchCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestRefresherStaleOnError(t *testing.T) {
	ctx := context.Background()

	Convey("Given a refresher with a published snapshot", t, func() {
		competition := springRun(t)
		src := newCountingSource()
		src.Publish(source.KindActivity,
			runRecord("rec-1", "p1", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), "5.0", "km"),
		)
		store := repository.NewSnapshotStore()
		refresher := service.NewRefresher(src, store, []model.Competition{competition},
			service.WithMinRefreshInterval(time.Nanosecond),
		)
		So(refresher.Refresh(ctx, "spring-run", false), ShouldBeNil)

		Convey("When the source starts failing", func() {
			src.FailWith(errors.New("relay unreachable"))
			err := refresher.Refresh(ctx, "spring-run", true)

			Convey("Then the refresh reports the failure", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "source unavailable")
			})

			Convey("Then the prior snapshot survives, flagged stale", func() {
				snap, ok := store.Current(ctx, "spring-run")
				So(ok, ShouldBeTrue)
				So(snap.Stale, ShouldBeTrue)
				So(len(snap.Entries), ShouldEqual, 1)
				So(snap.Entries[0].TotalDistanceKm, ShouldEqual, 5.0)
			})

			Convey("And recovery publishes fresh again", func() {
				src.FailWith(nil)
				So(refresher.Refresh(ctx, "spring-run", true), ShouldBeNil)
				snap, _ := store.Current(ctx, "spring-run")
				So(snap.Stale, ShouldBeFalse)
			})
		})
	})
}

func TestRefresherSingleFlight(t *testing.T) {
	ctx := context.Background()

	Convey("Given a refresher over a slow source", t, func() {
		competition := springRun(t)
		src := newCountingSource()
		src.gate = make(chan struct{})
		store := repository.NewSnapshotStore()
		refresher := service.NewRefresher(src, store, []model.Competition{competition},
			service.WithMinRefreshInterval(time.Nanosecond),
		)

		Convey("When refreshes race for the same competition", func() {
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = refresher.Refresh(ctx, "spring-run", false)
				}()
			}
			// Let the callers pile onto the in-flight cycle.
			time.Sleep(100 * time.Millisecond)
			close(src.gate)
			wg.Wait()

			Convey("Then at most one fetch ran", func() {
				So(src.fetchCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestRefresherFeedLimit(t *testing.T) {
	ctx := context.Background()

	Convey("Given more accepted activities than the feed cap", t, func() {
		competition := springRun(t)
		src := newCountingSource()
		base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 10; i++ {
			src.Publish(source.KindActivity,
				runRecord("rec-"+string(rune('a'+i)), "p1", base.Add(time.Duration(i)*time.Hour), "2.0", "km"),
			)
		}
		store := repository.NewSnapshotStore()
		refresher := service.NewRefresher(src, store, []model.Competition{competition},
			service.WithFeedLimit(3),
			service.WithMinRefreshInterval(time.Nanosecond),
		)

		Convey("When a refresh publishes", func() {
			So(refresher.Refresh(ctx, "spring-run", false), ShouldBeNil)
			snap, _ := store.Current(ctx, "spring-run")

			Convey("Then the feed keeps only the newest records", func() {
				So(len(snap.Feed), ShouldEqual, 3)
				So(snap.Feed[0].OccurredAt, ShouldBeGreaterThanOrEqualTo, snap.Feed[1].OccurredAt)
				So(snap.Feed[1].OccurredAt, ShouldBeGreaterThanOrEqualTo, snap.Feed[2].OccurredAt)
				So(snap.Feed[0].RecordID, ShouldEqual, "rec-j")
			})

			Convey("Then the leaderboard still counts everything", func() {
				So(snap.Entries[0].ActivityCount, ShouldEqual, 10)
				So(snap.Entries[0].TotalDistanceKm, ShouldEqual, 20.0)
			})
		})
	})
}
