package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jfarhadi/pos-sync/internal/config"
	"github.com/jfarhadi/pos-sync/internal/db"
	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/spf13/cobra"
)

// seedCmd inserts a deterministic set of demo pending records. Seeding only
// ever happens through this explicit operator command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the record store with demo pending events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

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

		if err := db.Migrate(dbx, cfg.Database.Driver); err != nil {
			return err
		}

		log.Println(">> Seeding demo pending records...")
		if err := seedRecords(cmd.Context(), repository.NewRecordsRepository(dbx), cfg.StoreID); err != nil {
			return err
		}
		log.Println(">> Seed completed")
		return nil
	},
}

// seedRecords inserts fixed-id demo events, skipping ones already present so
// the command stays idempotent.
func seedRecords(ctx context.Context, repo repository.RecordsRepository, storeID string) error {
	now := time.Now().UTC()
	demo := []model.Record{
		{
			ID: "SEED-TXN-0001", Kind: model.KindTransaction, StoreID: storeID,
			ProductID: "SKU-1001", Type: model.EventSale,
			Quantity: 2, UnitPrice: 1250, Total: 2500,
			EventTime: now.Add(-45 * time.Minute), CreatedAt: now.Add(-45 * time.Minute),
		},
		{
			ID: "SEED-TXN-0002", Kind: model.KindTransaction, StoreID: storeID,
			ProductID: "SKU-1002", Type: model.EventSale,
			Quantity: 1, UnitPrice: 4990, Total: 4990,
			EventTime: now.Add(-30 * time.Minute), CreatedAt: now.Add(-30 * time.Minute),
		},
		{
			ID: "SEED-TXN-0003", Kind: model.KindTransaction, StoreID: storeID,
			ProductID: "SKU-1001", Type: model.EventReturn,
			Quantity: 1, UnitPrice: 1250, Total: 1250,
			EventTime: now.Add(-20 * time.Minute), CreatedAt: now.Add(-20 * time.Minute),
		},
		{
			ID: "SEED-INV-0001", Kind: model.KindInventory, StoreID: storeID,
			ProductID: "SKU-2001", Type: model.EventRestock,
			Quantity: 48,
			EventTime: now.Add(-15 * time.Minute), CreatedAt: now.Add(-15 * time.Minute),
		},
		{
			ID: "SEED-INV-0002", Kind: model.KindInventory, StoreID: storeID,
			ProductID: "SKU-2002", Type: model.EventDamage,
			Quantity: -3,
			EventTime: now.Add(-10 * time.Minute), CreatedAt: now.Add(-10 * time.Minute),
		},
		{
			ID: "SEED-INV-0003", Kind: model.KindInventory, StoreID: storeID,
			ProductID: "SKU-2003", Type: model.EventAdjustment,
			Quantity: -1,
			EventTime: now.Add(-5 * time.Minute), CreatedAt: now.Add(-5 * time.Minute),
		},
	}

	for _, rec := range demo {
		_, err := repo.Get(ctx, rec.Kind, rec.ID)
		if err == nil {
			continue // already seeded
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("check %s: %w", rec.ID, err)
		}
		if err := repo.Insert(ctx, nil, rec); err != nil {
			return fmt.Errorf("insert %s: %w", rec.ID, err)
		}
	}
	return nil
}
