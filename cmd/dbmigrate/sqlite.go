package main

import (
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/willemschots/sessiongate/internal"
	"github.com/willemschots/sessiongate/internal/db"
	"github.com/willemschots/sessiongate/internal/migrate"
	"github.com/willemschots/sessiongate/migrations"
)

// NewSQLiteCmd creates the sqlite subcommand.
func NewSQLiteCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "sqlite <file>",
		Short: "Migrate a SQLite database",
		Long: `Apply all pending migrations to the SQLite database in file. The file
is created when it does not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQLite(cmd, args[0], status)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list pending migrations without applying them")

	return cmd
}

func runSQLite(cmd *cobra.Command, file string, status bool) (err error) {
	ctx := cmd.Context()

	conn, err := db.OpenSQLite(file, true)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("file", file).Wrap(err)
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	if status {
		pending, err := migrate.Pending(ctx, conn, migrations.SQLite)
		if err != nil {
			return oops.Code("MIGRATION_STATUS_FAILED").With("file", file).Wrap(err)
		}

		if len(pending) == 0 {
			cmd.Println("Database is up to date")
			return nil
		}

		for _, name := range pending {
			cmd.Printf("Pending: %s\n", name)
		}
		return nil
	}

	applied, err := migrate.RunFS(ctx, conn, migrations.SQLite, migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("file", file).Wrap(err)
	}

	for _, m := range applied {
		cmd.Printf("Applied: %s\n", m.Filename)
	}
	cmd.Printf("Migrations completed successfully, %d applied\n", len(applied))

	return nil
}
