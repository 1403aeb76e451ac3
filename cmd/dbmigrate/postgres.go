package main

import (
	"errors"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/willemschots/sessiongate/internal/auth/postgres"
)

// migrator applies postgres migrations. *postgres.Migrator satisfies it.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return postgres.NewMigrator(databaseURL)
}

// NewPostgresCmd creates the postgres subcommand.
func NewPostgresCmd() *cobra.Command {
	var (
		down   bool
		status bool
	)

	cmd := &cobra.Command{
		Use:   "postgres [url]",
		Short: "Migrate a PostgreSQL database",
		Long: `Apply all pending migrations to the PostgreSQL database at url. When
url is omitted the DB_URL environment variable is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseURL, err := getDatabaseURL(args)
			if err != nil {
				return err
			}
			return runPostgres(cmd, databaseURL, down, status)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations, this drops every table")
	cmd.Flags().BoolVar(&status, "status", false, "print the current version without migrating")
	cmd.MarkFlagsMutuallyExclusive("down", "status")

	return cmd
}

func getDatabaseURL(args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}

	if url := os.Getenv("DB_URL"); url != "" {
		return url, nil
	}

	return "", oops.Code("CONFIG_INVALID").Errorf("database url argument or DB_URL environment variable is required")
}

func runPostgres(cmd *cobra.Command, databaseURL string, down, status bool) (err error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()

	switch {
	case status:
		// printed below
	case down:
		cmd.Println("Rolling back migrations...")
		if err := m.Down(); err != nil {
			return err
		}
	default:
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	if dirty {
		return oops.Code("MIGRATION_DIRTY").With("version", version).Errorf("database is dirty at version %d, fix it manually", version)
	}

	cmd.Printf("Database is at version %d\n", version)
	return nil
}
