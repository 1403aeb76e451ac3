package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command of the dbmigrate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dbmigrate",
		Short: "Apply sessiongate database migrations",
		Long: `Apply the database migrations embedded in sessiongate to a SQLite
file or a PostgreSQL database.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewSQLiteCmd())
	cmd.AddCommand(NewPostgresCmd())

	return cmd
}
