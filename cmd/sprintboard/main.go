package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sprintboard/internal/auth"
	"sprintboard/internal/blob"
	"sprintboard/internal/config"
	"sprintboard/internal/service"
	"sprintboard/internal/storage/sqlstore"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "sprintboard",
		Short:         "Sprint board backend: tasks, sprints and their history",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand shares once configuration is resolved.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sqlstore.Store
	blobs  *blob.LocalStore
	svc    *service.Services
}

func (r *app) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

// loadConfig reads the dotenv file and environment, then lets flags on cmd
// override the database settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("db-driver"); f != nil && f.Changed {
		cfg.DBDriver = f.Value.String()
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		cfg.DBDSN = f.Value.String()
	}
	return cfg, nil
}

func addDBFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-driver", sqlstore.DriverSQLite, "database driver (sqlite3 or postgres)")
	cmd.Flags().String("db", "data/sprintboard.db", "database DSN or sqlite file path")
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// setup opens the store and builds the services.
func setup(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	store, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	blobs, err := blob.NewLocalStore(cfg.BlobDir, cfg.BlobURL)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	svc := service.New(service.Deps{
		Store:     store,
		Blobs:     blobs,
		Tokens:    auth.NewTokenManager(cfg.Secret(), cfg.TokenTTL),
		Passwords: auth.NewPasswordManager(),
		Logger:    logger,
		Now:       time.Now,
	})
	return &app{cfg: cfg, logger: logger, store: store, blobs: blobs, svc: svc}, nil
}
