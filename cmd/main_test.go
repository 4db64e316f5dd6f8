package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/openpace/paceline/internal/adapters/http/api"
	"github.com/openpace/paceline/internal/adapters/http/swagger"
	"github.com/openpace/paceline/internal/adapters/source"
	service "github.com/openpace/paceline/internal/app"
	"github.com/openpace/paceline/internal/config"
	"github.com/openpace/paceline/pkg/metrics"
)

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			_ = os.Setenv("PACELINE_ADDR", ":8080")
			_ = os.Setenv("PACELINE_REFRESH_QUEUE_SIZE", "1000")
			_ = os.Setenv("PACELINE_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("PACELINE_ADDR")
				_ = os.Unsetenv("PACELINE_REFRESH_QUEUE_SIZE")
				_ = os.Unsetenv("PACELINE_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RefreshQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When creating the service", func() {
			convey.Convey("Then defaults are enough for construction", func() {
				convey.So(service.New(), convey.ShouldNotBeNil)
			})

			convey.Convey("And custom options apply cleanly", func() {
				svc := service.New(
					service.WithWorkerCount(8),
					service.WithQueueSize(2000),
					service.WithAutoRefresh(time.Minute),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When wiring the HTTP layer", func() {
			svc := service.New(service.WithRecordSource(source.NewMemorySource()))

			convey.Convey("Then the API server registers its routes", func() {
				mux := http.NewServeMux()
				server := api.NewServer(svc, svc, 100)
				convey.So(server, convey.ShouldNotBeNil)
				convey.So(func() { server.Register(context.Background(), mux) }, convey.ShouldNotPanic)
			})

			convey.Convey("Then the documentation routes register", func() {
				mux := http.NewServeMux()
				convey.So(func() { swagger.Register(context.Background(), mux) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When initializing metrics", func() {
			convey.So(metrics.NewManager(), convey.ShouldNotBeNil)
			convey.So(metrics.GetRegistry(), convey.ShouldNotBeNil)
		})
	})
}
