package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"sqlite", "postgres"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
}

func TestSQLiteCommand(t *testing.T) {
	t.Run("applies migrations once", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "test.db")

		out, err := execute(t, "sqlite", "--status", file)
		require.NoError(t, err)
		assert.Contains(t, out, "Pending: 001_create_users.sql")

		out, err = execute(t, "sqlite", file)
		require.NoError(t, err)
		assert.Contains(t, out, "Applied: 001_create_users.sql")
		assert.Contains(t, out, "1 applied")

		out, err = execute(t, "sqlite", file)
		require.NoError(t, err)
		assert.NotContains(t, out, "Applied:")
		assert.Contains(t, out, "0 applied")

		out, err = execute(t, "sqlite", "--status", file)
		require.NoError(t, err)
		assert.Contains(t, out, "Database is up to date")
	})

	t.Run("requires a file argument", func(t *testing.T) {
		_, err := execute(t, "sqlite")
		require.Error(t, err)
	})

	t.Run("fails on a file in a missing directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "missing", "test.db")

		_, err := execute(t, "sqlite", file)
		require.Error(t, err)

		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Contains(t, []any{"MIGRATION_FAILED", "DB_CONNECT_FAILED"}, oopsErr.Code())
	})
}

type fakeMigrator struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error

	calls  []string
	closed bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.downErr
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

// useMigrator makes the postgres command use fake for the duration of the test.
func useMigrator(t *testing.T, fake *fakeMigrator, factoryErr error) *string {
	t.Helper()

	var gotURL string
	orig := newMigrator
	newMigrator = func(databaseURL string) (migrator, error) {
		gotURL = databaseURL
		if factoryErr != nil {
			return nil, factoryErr
		}
		return fake, nil
	}
	t.Cleanup(func() {
		newMigrator = orig
	})

	return &gotURL
}

func TestPostgresCommand(t *testing.T) {
	const url = "postgres://localhost:5432/sessiongate"

	tests := []struct {
		name      string
		args      []string
		fake      *fakeMigrator
		wantCalls []string
		wantOut   string
		wantErr   bool
	}{
		{
			name:      "up by default",
			args:      []string{"postgres", url},
			fake:      &fakeMigrator{version: 1},
			wantCalls: []string{"up", "version"},
			wantOut:   "Database is at version 1",
		},
		{
			name:      "down",
			args:      []string{"postgres", "--down", url},
			fake:      &fakeMigrator{},
			wantCalls: []string{"down", "version"},
			wantOut:   "Database is at version 0",
		},
		{
			name:      "status",
			args:      []string{"postgres", "--status", url},
			fake:      &fakeMigrator{version: 1},
			wantCalls: []string{"version"},
			wantOut:   "Database is at version 1",
		},
		{
			name:      "up fails",
			args:      []string{"postgres", url},
			fake:      &fakeMigrator{upErr: errors.New("boom")},
			wantCalls: []string{"up"},
			wantErr:   true,
		},
		{
			name:      "dirty database",
			args:      []string{"postgres", url},
			fake:      &fakeMigrator{version: 1, dirty: true},
			wantCalls: []string{"up", "version"},
			wantErr:   true,
		},
		{
			name:      "version fails",
			args:      []string{"postgres", "--status", url},
			fake:      &fakeMigrator{versionErr: errors.New("boom")},
			wantCalls: []string{"version"},
			wantErr:   true,
		},
		{
			name:    "down and status are exclusive",
			args:    []string{"postgres", "--down", "--status", url},
			fake:    &fakeMigrator{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotURL := useMigrator(t, tt.fake, nil)

			out, err := execute(t, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out, tt.wantOut)
				assert.Equal(t, url, *gotURL)
			}

			assert.Equal(t, tt.wantCalls, tt.fake.calls)
			if len(tt.wantCalls) > 0 {
				assert.True(t, tt.fake.closed, "migrator was not closed")
			}
		})
	}

	t.Run("factory fails", func(t *testing.T) {
		useMigrator(t, nil, errors.New("boom"))

		_, err := execute(t, "postgres", url)
		require.Error(t, err)

		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Equal(t, "DB_CONNECT_FAILED", oopsErr.Code())
	})
}

func TestGetDatabaseURL(t *testing.T) {
	t.Run("argument wins", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://env")

		got, err := getDatabaseURL([]string{"postgres://arg"})
		require.NoError(t, err)
		assert.Equal(t, "postgres://arg", got)
	})

	t.Run("falls back to DB_URL", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://env")

		got, err := getDatabaseURL(nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres://env", got)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("DB_URL", "")

		_, err := getDatabaseURL(nil)
		require.Error(t, err)

		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Equal(t, "CONFIG_INVALID", oopsErr.Code())
	})
}
