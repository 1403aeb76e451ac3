// Package migrations embeds the schema of every supported database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

var (
	// SQLite holds the files applied by internal/migrate.
	SQLite fs.FS
	// Postgres holds golang-migrate style up and down files.
	Postgres fs.FS
)

func init() {
	var err error

	SQLite, err = fs.Sub(sqliteFS, "sqlite")
	if err != nil {
		panic("failed to subtree sqlite FS " + err.Error())
	}

	Postgres, err = fs.Sub(postgresFS, "postgres")
	if err != nil {
		panic("failed to subtree postgres FS " + err.Error())
	}
}
