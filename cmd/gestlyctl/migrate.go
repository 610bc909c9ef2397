package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/gestly/gestly/internal/app/runtime"
	"github.com/gestly/gestly/internal/config"
	"github.com/gestly/gestly/internal/platform/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(db *sqlx.DB) error {
				if err := migrations.Down(db.DB, steps); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(db *sqlx.DB) error {
				if err := migrations.Up(db.DB); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}, down, &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(db *sqlx.DB) error {
				v, dirty, err := migrations.Version(db.DB)
				if err != nil {
					return fmt.Errorf("read version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})
	return cmd
}

func withDatabase(ctx context.Context, fn func(*sqlx.DB) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Store != config.StorePostgres {
		return fmt.Errorf("migrations need GESTLY_STORE=postgres, got %q", cfg.Database.Store)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := runtime.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
