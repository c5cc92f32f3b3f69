package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"session-service/internal/api"
	"session-service/internal/config"
	_ "session-service/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "Directory holding the migrations package")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Require("DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME"); err != nil {
		return err
	}

	api.SetupGlobalHandler(serviceName, cfg.LogLevel, cfg.IsDevelopment())
	slog.Info("Running database migrations...")

	db, err := sql.Open("pgx", cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database for migration: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(cmd.Context(), db, migrationsDir); err != nil {
		return fmt.Errorf("goose: failed to run migrations: %w", err)
	}

	slog.Info("Migrations applied successfully")
	return nil
}
