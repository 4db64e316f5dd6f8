package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/openpace/paceline/internal/adapters/http/api"
	"github.com/openpace/paceline/internal/adapters/http/swagger"
	"github.com/openpace/paceline/internal/adapters/source"
	service "github.com/openpace/paceline/internal/app"
	"github.com/openpace/paceline/internal/config"
	"github.com/openpace/paceline/pkg/logger"
	"github.com/openpace/paceline/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Err(err))
		_ = logger.SetLevelString("info")
	}

	competitions, err := cfg.CompetitionList()
	if err != nil {
		os.Stderr.WriteString("failed to build competitions: " + err.Error() + "\n")
		return
	}

	// The federated transport is injected here. Without external
	// nodes configured the engine runs against an in-process source,
	// which is what the simulator feeds.
	mem := source.NewMemorySource()
	records := source.NewMultiSource(
		[]source.RecordSource{mem},
		source.WithPerSourceTimeout(cfg.FetchTimeout()),
	)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithRecordSource(records),
		service.WithReceiptSource(mem),
		service.WithCompetitions(competitions),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.RefreshQueueSize),
		service.WithAutoRefresh(cfg.AutoRefresh()),
		service.WithRefresherOptions(
			service.WithSnapshotTTL(cfg.SnapshotTTL()),
			service.WithFetchTimeout(cfg.FetchTimeout()),
			service.WithMinRefreshInterval(cfg.MinRefreshInterval()),
			service.WithFetchLimit(cfg.FetchLimit),
			service.WithFeedLimit(cfg.FeedLimit),
		),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiServer := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "HTTP shutdown", logger.Err(err))
	}
}

// startSystemMetricsUpdater publishes process health gauges until ctx
// is cancelled.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateMemoryAlloc(m.HeapAlloc)
			metrics.UpdateGoroutines(runtime.NumGoroutine())
		}
	}
}
