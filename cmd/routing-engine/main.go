// cmd/routing-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"leadrouter/db"
	"leadrouter/internal/audit"
	"leadrouter/internal/common/config"
	"leadrouter/internal/common/database"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/observability"
	"leadrouter/internal/directory"
	"leadrouter/internal/ledger"
	"leadrouter/internal/notify"
	"leadrouter/internal/routing/recommend"
	"leadrouter/internal/routing/scoring"
	"leadrouter/internal/server"
	"leadrouter/internal/sweep"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting routing engine",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := db.Migrate(pg.DB); err != nil {
		zapLog.Fatal("migrations failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected, schema up to date")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected")

	// --- Notification gateway ---
	gateway, err := notify.NewAWSGateway(ctx, notify.AWSConfig{
		Region:       cfg.Notifications.AWS.Region,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		EmailEnabled: cfg.Notifications.Email.Enabled,
		TextEnabled:  cfg.Notifications.Text.Enabled,
	}, pg.DB, log)
	if err != nil {
		zapLog.Fatal("notification gateway init failed", zap.Error(err))
	}

	// --- Core components ---
	auditRec := audit.NewPostgresRecorder(pg.DB, log)
	events := ledger.NewEventStore(pg.DB)
	handoffLedger := ledger.New(pg.DB, events, gateway, auditRec, cfg.Routing, log)

	vendorDir := directory.NewPostgresDirectory(
		pg.DB, rdb.Client,
		time.Duration(cfg.Routing.DirectoryCacheTTL)*time.Second,
		log,
	)
	engine := scoring.NewEngine(cfg.Routing.WeightsByUrgency)
	recommender := recommend.NewService(vendorDir, engine, log)

	slaMonitor := sweep.NewSLAMonitor(handoffLedger, events, gateway, auditRec, cfg.Routing, log)
	feedbackScheduler := sweep.NewFeedbackScheduler(handoffLedger, events, gateway, auditRec, cfg.Routing, log)
	lock := sweep.NewLock(rdb.Client, time.Duration(cfg.Sweeps.LockTTLSeconds)*time.Second)

	// --- Periodic sweeps ---
	go sweep.RunPeriodic(ctx, "sla-monitor",
		time.Duration(cfg.Sweeps.SLAIntervalMinutes)*time.Minute,
		lock, obs, log,
		func(ctx context.Context, now time.Time) error {
			_, err := slaMonitor.Sweep(ctx, now)
			return err
		})

	go sweep.RunPeriodic(ctx, "feedback-scheduler",
		time.Duration(cfg.Sweeps.FeedbackIntervalMinutes)*time.Minute,
		lock, obs, log,
		func(ctx context.Context, now time.Time) error {
			_, err := feedbackScheduler.Sweep(ctx, now)
			return err
		})

	// --- HTTP server ---
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.New(recommender, cfg.Server.MaxRecommendations, log).Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http shutdown incomplete", zap.Error(err))
	}
}
