package migrate_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/willemschots/sessiongate/internal/db/testdb"
	"github.com/willemschots/sessiongate/internal/migrate"
)

func Test_RunFS(t *testing.T) {
	t.Run("ok, empty dir", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		meta := migrate.Metadata{
			AppVersion: "v1.0.0",
			Timestamp:  timeRFC3339(t, "2024-03-20T14:56:00Z"),
		}

		got, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/emptydir"), meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertMigrations(t, got, []migrate.Migration{})
		assertTable(t, db, []migrate.Migration{})
	})

	t.Run("ok, nested directory is skipped", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		meta := migrate.Metadata{
			AppVersion: "v1.0.0",
			Timestamp:  timeRFC3339(t, "2024-03-20T14:56:00Z"),
		}

		got, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/skip_subdir"), meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []migrate.Migration{
			{Sequence: 0, Filename: "2_create_test_table.sql", Metadata: meta},
		}
		assertMigrations(t, got, want)
		assertTable(t, db, want)
		assertNrOfRowsInTestTable(t, db, 0)
	})

	t.Run("ok, progression of migrations", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		metas := []migrate.Metadata{
			{AppVersion: "v1.0.0", Timestamp: timeRFC3339(t, "2024-03-20T14:56:00Z")},
			{AppVersion: "v2.0.0", Timestamp: timeRFC3339(t, "2024-04-20T14:56:00Z")},
			{AppVersion: "v3.0.0", Timestamp: timeRFC3339(t, "2024-05-20T14:56:00Z")},
		}

		migrations := []migrate.Migration{
			{Sequence: 0, Filename: "1_create_test_table.sql", Metadata: metas[0]},
			{Sequence: 1, Filename: "2_add_row_to_test_table.sql", Metadata: metas[1]},
			{Sequence: 2, Filename: "3_add_another_row.sql", Metadata: metas[2]},
			{Sequence: 3, Filename: "4_and_one_more.sql", Metadata: metas[2]},
		}

		runs := []struct {
			dir      string
			wantNew  []migrate.Migration
			wantAll  []migrate.Migration
			wantRows int
		}{
			{"./testdata/progression/run_1", migrations[:1], migrations[:1], 0},
			{"./testdata/progression/run_2", migrations[1:2], migrations[:2], 1},
			{"./testdata/progression/run_3", migrations[2:4], migrations[:4], 3},
		}

		for i, run := range runs {
			got, err := migrate.RunFS(context.Background(), db, os.DirFS(run.dir), metas[i])
			if err != nil {
				t.Fatalf("run %d: unexpected error: %v", i+1, err)
			}

			assertMigrations(t, got, run.wantNew)
			assertTable(t, db, run.wantAll)
			assertNrOfRowsInTestTable(t, db, run.wantRows)
		}
	})

	t.Run("ok, running twice applies nothing the second time", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)
		fsys := os.DirFS("./testdata/progression/run_3")

		_, err := migrate.RunFS(context.Background(), db, fsys, migrate.Metadata{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := migrate.RunFS(context.Background(), db, fsys, migrate.Metadata{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertMigrations(t, got, []migrate.Migration{})
		assertNrOfRowsInTestTable(t, db, 3)
	})

	t.Run("fail, error in migration", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		_, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/error_in_migration/run_1"), migrate.Metadata{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = migrate.RunFS(context.Background(), db, os.DirFS("./testdata/error_in_migration/run_2"), migrate.Metadata{})

		var mErr migrate.MigrationError
		if !errors.As(err, &mErr) {
			t.Fatalf("got %T, want %T", err, mErr)
		}

		if mErr.Sequence != 1 || mErr.Filename != "2_insert_with_typo.sql" {
			t.Errorf("got %v, want sequence 1 and file 2_insert_with_typo.sql", mErr)
		}

		assertTable(t, db, []migrate.Migration{
			{Sequence: 0, Filename: "1_create_test_table.sql"},
		})
	})

	mismatchTests := map[string]string{
		"fail, applied file was removed": "./testdata/removal_mismatch",
		"fail, applied file was renamed": "./testdata/rename_mismatch",
	}

	for name, dir := range mismatchTests {
		t.Run(name, func(t *testing.T) {
			db := testdb.RunUnmigratedWhile(t, true)

			_, err := migrate.RunFS(context.Background(), db, os.DirFS(dir+"/run_1"), migrate.Metadata{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			assertNrOfRowsInTestTable(t, db, 3)

			_, err = migrate.RunFS(context.Background(), db, os.DirFS(dir+"/run_2"), migrate.Metadata{})
			if !errors.Is(err, migrate.ErrMigrationsMismatch) {
				t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrMigrationsMismatch)
			}

			assertNrOfRowsInTestTable(t, db, 3)
		})
	}
}

func Test_Pending(t *testing.T) {
	t.Run("ok, everything pending without table", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		got, err := migrate.Pending(context.Background(), db, os.DirFS("./testdata/progression/run_2"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"1_create_test_table.sql", "2_add_row_to_test_table.sql"}
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("ok, only new files pending", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		_, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/progression/run_2"), migrate.Metadata{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := migrate.Pending(context.Background(), db, os.DirFS("./testdata/progression/run_3"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"3_add_another_row.sql", "4_and_one_more.sql"}
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("fail, mismatch", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		_, err := migrate.RunFS(context.Background(), db, os.DirFS("./testdata/rename_mismatch/run_1"), migrate.Metadata{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = migrate.Pending(context.Background(), db, os.DirFS("./testdata/rename_mismatch/run_2"))
		if !errors.Is(err, migrate.ErrMigrationsMismatch) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrMigrationsMismatch)
		}
	})
}

func Test_QueryMigrations(t *testing.T) {
	t.Run("fail, no table", func(t *testing.T) {
		db := testdb.RunUnmigratedWhile(t, true)

		_, err := migrate.QueryMigrations(context.Background(), db)
		if !errors.Is(err, migrate.ErrNoTable) {
			t.Fatalf("got %v, want %v (via errors.Is)", err, migrate.ErrNoTable)
		}
	})
}

func assertTable(t *testing.T, db *sql.DB, want []migrate.Migration) {
	t.Helper()

	got, err := migrate.QueryMigrations(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to query migrations: %v", err)
	}

	assertMigrations(t, got, want)
}

func assertMigrations(t *testing.T, got, want []migrate.Migration) {
	t.Helper()

	if got == nil {
		t.Fatalf("got nil slice, want %+v", want)
	}

	if len(got) != len(want) {
		t.Fatalf("got\n%+v\nwant\n%+v\n", got, want)
	}

	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Errorf("got\n%+v\nwant\n%+v\n", got, want)
		}
	}
}

// assertNrOfRowsInTestTable checks the number of rows in test_table,
// which some testdata migrations insert into.
func assertNrOfRowsInTestTable(t *testing.T, db *sql.DB, want int) {
	t.Helper()

	row := db.QueryRow("SELECT COUNT(*) FROM test_table")

	var got int
	err := row.Scan(&got)
	if err != nil {
		t.Fatalf("failed to scan test_table: %v", err)
	}

	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func timeRFC3339(t *testing.T, v string) time.Time {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("failed to parse time: %v", err)
	}

	return ts
}
