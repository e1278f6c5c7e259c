// Command sweeper runs the hourly auto-approval sweep. Run one replica;
// additional replicas are safe but idle behind the Redis lease.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigede/internal/cache"
	"sigede/internal/config"
	"sigede/internal/database"
	"sigede/internal/featureflags"
	"sigede/internal/middleware"
	"sigede/internal/observability"
	"sigede/internal/repository"
	"sigede/internal/sweeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()
	os.Exit(run(*once))
}

func run(once bool) int {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "sigede-sweeper",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	loc, err := cfg.SweepLocation()
	if err != nil {
		log.Fatalf("Invalid SWEEP_TIMEZONE: %v", err)
	}

	sw := sweeper.New(
		repository.NewRequestRepository(db),
		sweeper.NewLocker(rdb),
		sweeper.ConfigFrom(cfg),
		sweeper.WithFlags(featureflags.NewManager(cfg.FeatureFlags)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if once {
		exitCode = runOnce(ctx, sw)
	} else {
		metricsSrv := serveMetrics(cfg.SweeperMetricsPort)

		sched := sweeper.NewScheduler(sw, sweeper.SchedulerConfig{Interval: cfg.SweepInterval, Location: loc})
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		<-ctx.Done()
		log.Println("Shutting down sweeper...")
		_ = sched.Stop()

		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsSrv.Shutdown(shutdownCtx)
			cancel()
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(closeCtx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return exitCode
}

// runOnce performs a single sweep. Exit status is 1 when the run could not
// start or any item failed.
func runOnce(ctx context.Context, sw *sweeper.Sweeper) int {
	res, err := sw.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, sweeper.ErrSweepDisabled) || errors.Is(err, sweeper.ErrSweepInProgress) {
			middleware.Logger.Info("Sweep skipped", slog.String("reason", err.Error()))
			return 0
		}
		middleware.Logger.Error("Sweep failed", slog.String("error", err.Error()))
		return 1
	}
	middleware.Logger.Info("Sweep finished",
		slog.String("run_id", res.RunID),
		slog.Int("promoted", res.Promoted),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
	)
	if res.Failed > 0 {
		return 1
	}
	return 0
}

func serveMetrics(port string) *http.Server {
	if port == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics listener stopped: %v", err)
		}
	}()
	log.Printf("Sweeper metrics on :%s/metrics", port)
	return srv
}
