package queue_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openpace/paceline/internal/adapters/mq/queue"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory refresh queue", t, func() {
		Convey("When enqueuing within capacity", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(2))

			So(q.Enqueue(ctx, queue.Job{CompetitionID: "a"}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Job{CompetitionID: "b"}), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)
		})

		Convey("When the queue is full", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(1))
			q.Enqueue(ctx, queue.Job{CompetitionID: "a"})

			Convey("Then the extra job is dropped, not blocked on", func() {
				So(q.Enqueue(ctx, queue.Job{CompetitionID: "b"}), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When dequeuing jobs", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))
			q.Enqueue(ctx, queue.Job{CompetitionID: "a", Force: true})

			jobs := q.Dequeue(ctx)

			select {
			case job := <-jobs:
				Convey("Then the job round-trips with metadata set", func() {
					So(job.CompetitionID, ShouldEqual, "a")
					So(job.Force, ShouldBeTrue)
					So(job.EnqueuedAt.IsZero(), ShouldBeFalse)
				})
			case <-time.After(time.Second):
				t.Fatal("no job received")
			}
		})

		Convey("When the queue is closed", func() {
			q := queue.NewInMemoryQueue()
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue drops and the state reads closed", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, queue.Job{CompetitionID: "a"}), ShouldBeFalse)
			})

			Convey("Then closing again is harmless", func() {
				So(q.Close(), ShouldBeNil)
			})
		})

		Convey("When closing with queued jobs", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))
			q.Enqueue(ctx, queue.Job{CompetitionID: "a"})
			q.Enqueue(ctx, queue.Job{CompetitionID: "b"})
			jobs := q.Dequeue(ctx)
			So(q.Close(), ShouldBeNil)

			Convey("Then queued jobs drain before the channel closes", func() {
				received := 0
				for range jobs {
					received++
				}
				So(received, ShouldEqual, 2)
			})
		})
	})
}
