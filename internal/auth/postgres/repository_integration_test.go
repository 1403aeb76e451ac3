//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/auth/postgres"
	"github.com/willemschots/sessiongate/internal/errorz"
	"golang.org/x/sync/errgroup"
)

// testPool is shared by the integration tests.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("sessiongate_test"),
		tcpostgres.WithUsername("sessiongate"),
		tcpostgres.WithPassword("sessiongate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := postgres.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}

	if err := migrator.Up(); err != nil {
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	testPool, err = postgres.Open(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to open pool: " + err.Error())
	}

	code := m.Run()

	testPool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.New(testPool)

	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users`)
	})

	created, err := repo.Create(ctx, "carol@example.com", auth.NewCredential(testDigest))
	require.NoError(t, err)

	found, cred, err := repo.FindByEmailWithCredential(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, created.CreatedAt.Equal(found.CreatedAt))
	assert.Equal(t, testDigest, cred.Digest())

	_, err = repo.FindByEmail(ctx, "Carol@example.com")
	assert.ErrorIs(t, err, errorz.ErrNotFound)

	_, err = repo.Create(ctx, "carol@example.com", auth.NewCredential(testDigest))
	assert.ErrorIs(t, err, errorz.ErrConflict)

	superuser := true
	updated, err := repo.Update(ctx, created.ID, auth.UserUpdate{IsSuperuser: &superuser})
	require.NoError(t, err)
	assert.True(t, updated.IsSuperuser)
	assert.Equal(t, created.Email, updated.Email)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, errorz.ErrNotFound)
}

func TestRepository_Integration_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := postgres.New(testPool)

	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users`)
	})

	const n = 10
	errs := make([]error, n)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			_, errs[i] = repo.Create(ctx, "dave@example.com", auth.NewCredential(testDigest))
			return nil
		})
	}
	_ = g.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, errorz.ErrConflict)
	}
	assert.Equal(t, 1, created)
}
