package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/config"
	"Mansoor88-6/segment-tracker/internal/database"
	"Mansoor88-6/segment-tracker/internal/logger"
	"Mansoor88-6/segment-tracker/internal/repository"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "segment-tracker",
	Short:         "Machine segment tracker",
	Long:          "Records uptime, downtime and idle segments per machine and reports on them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/local.yaml", "Path to configuration file")
}

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	db   *database.DB
	repo *repository.SegmentRepository
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.New(ctx, cfg.StoragePath, log.Logger)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &app{
		cfg:  cfg,
		log:  log,
		db:   db,
		repo: repository.NewSegmentRepository(db.DB),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("Failed to close database", zap.Error(err))
	}
	a.log.Sync()
}
