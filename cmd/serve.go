package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfarhadi/pos-sync/internal/config"
	"github.com/jfarhadi/pos-sync/internal/db"
	httpSrv "github.com/jfarhadi/pos-sync/internal/http"
	"github.com/jfarhadi/pos-sync/internal/logger"
	"github.com/jfarhadi/pos-sync/internal/metrics"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jfarhadi/pos-sync/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local capture and health/stats HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		log := logger.Log

		metrics.MustRegister(prometheus.DefaultRegisterer)

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

		recordsRepo := repository.NewRecordsRepository(dbx)
		retriesRepo := repository.NewRetryLogRepository(dbx)
		snapsRepo := repository.NewSnapshotsRepository(dbx)

		reporter := stats.New(
			dbx,
			recordsRepo,
			retriesRepo,
			snapsRepo,
			cfg.Sync.MaxRetryAttempts,
			cfg.Health.PendingThreshold,
			cfg.Health.FailuresThreshold,
			log,
		)

		server := httpSrv.NewServer(cfg.StoreID, recordsRepo, reporter, retriesRepo)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr, log)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
