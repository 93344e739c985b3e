package cmd

import (
	"fmt"

	"github.com/jfarhadi/pos-sync/internal/config"
	"github.com/jfarhadi/pos-sync/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the record-store schema",
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

		fmt.Println(">> Migration complete")
		return nil
	},
}
