package aggregate_test

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openpace/paceline/internal/domain/aggregate"
	"github.com/openpace/paceline/internal/domain/model"
)

func act(id string, km float64, at time.Time) model.Activity {
	return model.Activity{
		RecordID:    id,
		Participant: "alice",
		OccurredAt:  at,
		Class:       model.ClassRun,
		DistanceKm:  km,
	}
}

func TestTotalsFold(t *testing.T) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	Convey("Given per-participant totals", t, func() {
		totals := aggregate.NewTotals("alice")

		Convey("When folding a new activity", func() {
			changed := totals.Fold(act("rec-1", 5, base))

			Convey("Then the totals advance", func() {
				So(changed, ShouldBeTrue)
				So(totals.TotalDistanceKm, ShouldEqual, 5.0)
				So(totals.ActivityCount, ShouldEqual, 1)
				So(totals.LastActivityAt, ShouldEqual, base)
				So(totals.Seen("rec-1"), ShouldBeTrue)
			})
		})

		Convey("When folding the same record twice", func() {
			totals.Fold(act("rec-1", 5, base))
			changed := totals.Fold(act("rec-1", 5, base))

			Convey("Then the replay is a no-op", func() {
				So(changed, ShouldBeFalse)
				So(totals.TotalDistanceKm, ShouldEqual, 5.0)
				So(totals.ActivityCount, ShouldEqual, 1)
			})
		})

		Convey("When activities arrive out of order", func() {
			totals.Fold(act("rec-2", 3, base.Add(2*time.Hour)))
			totals.Fold(act("rec-1", 5, base))

			Convey("Then LastActivityAt tracks the latest occurrence", func() {
				So(totals.LastActivityAt, ShouldEqual, base.Add(2*time.Hour))
			})

			Convey("Then the activity list is ordered by occurrence", func() {
				activities := totals.Activities()
				So(len(activities), ShouldEqual, 2)
				So(activities[0].RecordID, ShouldEqual, "rec-1")
				So(activities[1].RecordID, ShouldEqual, "rec-2")
			})
		})

		Convey("When two activities share a timestamp", func() {
			totals.Fold(act("rec-b", 3, base))
			totals.Fold(act("rec-a", 5, base))

			Convey("Then record id breaks the ordering tie", func() {
				activities := totals.Activities()
				So(activities[0].RecordID, ShouldEqual, "rec-a")
				So(activities[1].RecordID, ShouldEqual, "rec-b")
			})
		})
	})
}

func TestStateOrderInsensitivity(t *testing.T) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	Convey("Given a fixed set of activities", t, func() {
		activities := make([]model.Activity, 0, 20)
		for i := 0; i < 20; i++ {
			activities = append(activities, model.Activity{
				RecordID:    "rec-" + strconv.Itoa(i),
				Participant: model.Identity("p-" + strconv.Itoa(i%3)),
				OccurredAt:  base.Add(time.Duration(i) * time.Hour),
				DistanceKm:  float64(i%7) + 1,
			})
		}

		fold := func(order []model.Activity) *aggregate.State {
			state := aggregate.NewState()
			for _, a := range order {
				state.Fold(a)
			}
			// Replay everything once more to also exercise idempotence.
			for _, a := range order {
				state.Fold(a)
			}
			return state
		}

		reference := fold(activities)

		Convey("When folding random permutations with duplicates", func() {
			r := rand.New(rand.NewSource(42))
			for trial := 0; trial < 5; trial++ {
				shuffled := make([]model.Activity, len(activities))
				copy(shuffled, activities)
				r.Shuffle(len(shuffled), func(i, j int) {
					shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
				})
				state := fold(shuffled)

				Convey("Then totals match the reference order (trial "+strconv.Itoa(trial)+")", func() {
					So(state.Len(), ShouldEqual, reference.Len())
					for id, want := range reference.All() {
						got, ok := state.Totals(id)
						So(ok, ShouldBeTrue)
						So(got.TotalDistanceKm, ShouldEqual, want.TotalDistanceKm)
						So(got.ActivityCount, ShouldEqual, want.ActivityCount)
						So(got.LastActivityAt, ShouldEqual, want.LastActivityAt)
						So(len(got.Activities()), ShouldEqual, len(want.Activities()))
						for i := range got.Activities() {
							So(got.Activities()[i].RecordID, ShouldEqual, want.Activities()[i].RecordID)
						}
					}
				})
			}
		})
	})
}

func TestStateFold(t *testing.T) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	Convey("Given aggregation state over several participants", t, func() {
		state := aggregate.NewState()

		Convey("When participants fold their first activities", func() {
			So(state.Fold(model.Activity{RecordID: "r1", Participant: "alice", DistanceKm: 5, OccurredAt: base}), ShouldBeTrue)
			So(state.Fold(model.Activity{RecordID: "r2", Participant: "bob", DistanceKm: 3, OccurredAt: base}), ShouldBeTrue)

			Convey("Then each participant has independent totals", func() {
				So(state.Len(), ShouldEqual, 2)
				alice, _ := state.Totals("alice")
				bob, _ := state.Totals("bob")
				So(alice.TotalDistanceKm, ShouldEqual, 5.0)
				So(bob.TotalDistanceKm, ShouldEqual, 3.0)
			})
		})

		Convey("When the same record id appears for two participants", func() {
			state.Fold(model.Activity{RecordID: "r1", Participant: "alice", DistanceKm: 5, OccurredAt: base})
			changed := state.Fold(model.Activity{RecordID: "r1", Participant: "bob", DistanceKm: 3, OccurredAt: base})

			Convey("Then dedup is scoped per participant", func() {
				So(changed, ShouldBeTrue)
				So(state.Len(), ShouldEqual, 2)
			})
		})

		Convey("When looking up a participant with no activity", func() {
			_, ok := state.Totals("carol")
			So(ok, ShouldBeFalse)
		})
	})
}
