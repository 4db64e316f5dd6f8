package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openpace/paceline/internal/adapters/mq/queue"
	"github.com/openpace/paceline/internal/adapters/mq/worker"
)

// recordingRefresher counts refreshes and optionally fails them.
type recordingRefresher struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan struct{}
}

func newRecordingRefresher(expected int) *recordingRefresher {
	return &recordingRefresher{done: make(chan struct{}, expected)}
}

func (r *recordingRefresher) Refresh(_ context.Context, competitionID string, _ bool) error {
	r.mu.Lock()
	r.calls = append(r.calls, competitionID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.err
}

func (r *recordingRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFor(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for refreshes")
		}
	}
}

func TestWorker(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		Convey("When jobs are enqueued", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			q := queue.NewInMemoryQueue(queue.WithCapacity(8))
			r := newRecordingRefresher(2)
			w := worker.New(q, r, worker.WithName("test-worker"))
			go w.Run(ctx)

			q.Enqueue(ctx, queue.Job{CompetitionID: "a"})
			q.Enqueue(ctx, queue.Job{CompetitionID: "b", Force: true})
			waitFor(t, r.done, 2)

			Convey("Then each job reaches the refresher", func() {
				So(r.callCount(), ShouldEqual, 2)
			})

			Convey("Then shutdown completes cleanly", func() {
				So(w.Shutdown(context.Background()), ShouldBeNil)
			})
		})

		Convey("When a refresh fails", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			q := queue.NewInMemoryQueue(queue.WithCapacity(8))
			r := newRecordingRefresher(2)
			r.err = errors.New("source unavailable")
			w := worker.New(q, r)
			go w.Run(ctx)

			q.Enqueue(ctx, queue.Job{CompetitionID: "a"})
			q.Enqueue(ctx, queue.Job{CompetitionID: "b"})
			waitFor(t, r.done, 2)

			Convey("Then the worker keeps consuming jobs", func() {
				So(r.callCount(), ShouldEqual, 2)
			})
		})

		Convey("When the queue closes", func() {
			ctx := context.Background()
			q := queue.NewInMemoryQueue()
			r := newRecordingRefresher(1)
			w := worker.New(q, r)

			finished := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(finished)
			}()
			So(q.Close(), ShouldBeNil)

			Convey("Then the worker loop exits", func() {
				select {
				case <-finished:
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not exit after queue close")
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a worker pool", t, func() {
		Convey("When jobs flow through the pool", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			q := queue.NewInMemoryQueue(queue.WithCapacity(16))
			r := newRecordingRefresher(4)
			pool := worker.NewPool(3, q, r)
			pool.Start(ctx)

			for _, id := range []string{"a", "b", "c", "d"} {
				q.Enqueue(ctx, queue.Job{CompetitionID: id})
			}
			waitFor(t, r.done, 4)

			Convey("Then every job is processed exactly once", func() {
				So(r.callCount(), ShouldEqual, 4)
			})

			Convey("Then the pool stops within the deadline", func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer stopCancel()
				So(pool.Stop(stopCtx), ShouldBeNil)
			})
		})

		Convey("When created with a non-positive worker count", func() {
			q := queue.NewInMemoryQueue()
			r := newRecordingRefresher(1)

			Convey("Then construction still succeeds", func() {
				So(func() { worker.NewPool(0, q, r) }, ShouldNotPanic)
			})
		})
	})
}
