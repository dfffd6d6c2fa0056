package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the raw tables and pipeline_runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(nil)
		if err != nil {
			return err
		}
		defer a.close()
		if err := db.AutoMigrate(a.db); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		a.logger.Info("migration complete", zap.Int("models", len(db.Models())), zap.String("driver", a.db.Driver))
		return nil
	},
}
