package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/database"
)

// newMigrateCommand groups the schema maintenance subcommands. The bridge
// applies pending migrations on start; these operate on the database
// without starting it.
func newMigrateCommand(ctx context.Context, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the database schema",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(ctx, opts, func(db *database.DB) error {
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(ctx, opts, func(db *database.DB) error {
					if err := db.Migrate(ctx); err != nil {
						return err
					}
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(ctx, opts, func(db *database.DB) error {
					if err := db.MigrateDown(ctx); err != nil {
						return err
					}
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
	)
	return cmd
}

// withDatabase opens the configured database, calls fn and closes it.
func withDatabase(ctx context.Context, opts *rootOptions, fn func(db *database.DB) error) (err error) {
	cfg, err := config.Load(getConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", closeErr)
		}
	}()

	return fn(db)
}

func printMigrationStatus(ctx context.Context, out io.Writer, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	all, err := database.LoadMigrations(database.MigrationsFS, database.MigrationsDir)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(all))
	for _, m := range all {
		names[m.Version] = m.Name
	}

	fmt.Fprintf(out, "database: %s\n", db.Path())
	table := uitable.New()
	table.AddRow("VERSION", "NAME", "STATUS", "APPLIED")
	for _, r := range applied {
		table.AddRow(r.Version, names[r.Version], "applied", r.AppliedAt.Local().Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		table.AddRow(m.Version, m.Name, "pending", "-")
	}
	fmt.Fprintln(out, table)
	return nil
}
