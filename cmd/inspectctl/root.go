package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/fieldtrack/internal/config"
	"github.com/stwalsh4118/fieldtrack/internal/database"
	"github.com/stwalsh4118/fieldtrack/internal/logger"
	"github.com/stwalsh4118/fieldtrack/internal/repository"
	"github.com/stwalsh4118/fieldtrack/internal/services"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "inspectctl",
	Short: "Process field inspection data for mass-appraisal jobs",
	Long: `Runs inspection processing sessions against the job database without the
HTTP API: fetch a file version's property records, validate them, apply
manager decisions, reconcile, export the reports and commit the ledger.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		log = logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel).WithComponent("inspectctl")
		return nil
	},
}

// openService connects to the database and builds the inspection service.
// The returned func closes the pool.
func openService(ctx context.Context) (services.InspectionService, func(), error) {
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewInspectionService(
		repository.NewRecordRepository(db),
		repository.NewEmployeeRepository(db),
		repository.NewJobRepository(db),
		repository.NewLedgerRepository(db),
		log,
		services.OptionsFromConfig(cfg.Processing),
	)
	return svc, db.Close, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
