package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfarhadi/pos-sync/internal/config"
	"github.com/jfarhadi/pos-sync/internal/db"
	"github.com/jfarhadi/pos-sync/internal/delivery"
	"github.com/jfarhadi/pos-sync/internal/engine"
	"github.com/jfarhadi/pos-sync/internal/logger"
	"github.com/jfarhadi/pos-sync/internal/metrics"
	"github.com/jfarhadi/pos-sync/internal/notify"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jfarhadi/pos-sync/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the synchronization worker loop",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	log := logger.Log

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) record store
	dbx, err := db.NewConnection(cfg.Database.Driver, cfg.Database.DSN, db.Opts{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		PingTimeout:     cfg.Database.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer dbx.Close()

	// 3) repositories
	recordsRepo := repository.NewRecordsRepository(dbx)
	retriesRepo := repository.NewRetryLogRepository(dbx)
	snapsRepo := repository.NewSnapshotsRepository(dbx)

	// 4) delivery policy
	client := delivery.NewClient(delivery.Options{
		Endpoint:         cfg.Central.Endpoint,
		HealthURL:        cfg.Central.HealthURL,
		Timeout:          cfg.Central.Timeout,
		MaxRetries:       cfg.Central.MaxHTTPRetries,
		BackoffBase:      cfg.Central.BackoffBase,
		BreakerThreshold: cfg.Central.Breaker.FailThreshold,
		BreakerOpenFor:   cfg.Central.Breaker.OpenFor,
	})

	// 5) best-effort synced notifications (nil when no brokers configured)
	var notifier engine.Notifier
	producer := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if producer != nil {
		notifier = producer
		defer producer.Close()
	}

	eng := engine.New(
		dbx,
		recordsRepo,
		retriesRepo,
		snapsRepo,
		client,
		notifier,
		cfg.StoreID,
		cfg.Sync.MaxRetryAttempts,
		cfg.Sync.BatchSize,
		cfg.Sync.RetryDelay,
		log,
	)

	loop := worker.New(dbx, eng, recordsRepo, retriesRepo, snapsRepo, client, log)
	loop.Driver = cfg.Database.Driver
	loop.MaxRetryAttempts = cfg.Sync.MaxRetryAttempts
	loop.HealthEnabled = cfg.Health.Enabled
	if cfg.Sync.Interval > 0 {
		loop.Interval = cfg.Sync.Interval
	}
	if cfg.Cleanup.Interval > 0 {
		loop.CleanupInterval = cfg.Cleanup.Interval
	}
	if cfg.Cleanup.RetentionDays > 0 {
		loop.RetentionDays = cfg.Cleanup.RetentionDays
	}

	// 6) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> sync worker starting",
		zap.String("store_id", cfg.StoreID),
		zap.String("endpoint", cfg.Central.Endpoint),
		zap.Duration("interval", loop.Interval),
		zap.Int("batch_size", cfg.Sync.BatchSize),
		zap.Int("max_retry_attempts", cfg.Sync.MaxRetryAttempts),
	)

	return loop.Run(ctx)
}
