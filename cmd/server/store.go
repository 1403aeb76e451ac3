package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/willemschots/sessiongate/internal"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/auth/postgres"
	"github.com/willemschots/sessiongate/internal/auth/sqlite"
	"github.com/willemschots/sessiongate/internal/db"
	"github.com/willemschots/sessiongate/internal/migrate"
	"github.com/willemschots/sessiongate/migrations"
)

// store is an opened user repository with its lifecycle hooks.
type store struct {
	repo  auth.UserRepository
	ping  func(ctx context.Context) error
	close func() error
}

func openStore(ctx context.Context, logger *slog.Logger, cfg dbConfig) (*store, error) {
	switch cfg.driver {
	case driverSQLite:
		return openSQLite(ctx, logger, cfg)
	case driverPostgres:
		return openPostgres(ctx, logger, cfg)
	default:
		return nil, oops.Code("STORE_DRIVER_UNKNOWN").With("driver", cfg.driver).Errorf("unknown database driver")
	}
}

func openSQLite(ctx context.Context, logger *slog.Logger, cfg dbConfig) (*store, error) {
	errb := oops.Code("STORE_OPEN_FAILED").With("driver", cfg.driver, "file", cfg.file)

	pool, err := db.OpenPool(cfg.file)
	if err != nil {
		return nil, errb.Wrapf(err, "open sqlite database")
	}

	if cfg.migrate {
		logger.Info("attempting to migrate database", "driver", cfg.driver)

		applied, err := migrate.RunFS(ctx, pool.Write, migrations.SQLite, migrate.Metadata{
			AppVersion: internal.BuildRevision,
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			_ = pool.Close()
			return nil, oops.Code("STORE_MIGRATE_FAILED").With("driver", cfg.driver).Wrapf(err, "migrate sqlite database")
		}

		for _, m := range applied {
			logger.Info("migration ran", "sequence", m.Sequence, "filename", m.Filename)
		}
		if len(applied) == 0 {
			logger.Info("database is up to date")
		}
	}

	return &store{
		repo:  sqlite.New(pool.Write, pool.Read),
		ping:  pool.Read.PingContext,
		close: pool.Close,
	}, nil
}

func openPostgres(ctx context.Context, logger *slog.Logger, cfg dbConfig) (*store, error) {
	url := string(cfg.url.SecretValue())

	if cfg.migrate {
		logger.Info("attempting to migrate database", "driver", cfg.driver)

		err := migratePostgres(url)
		if err != nil {
			return nil, oops.Code("STORE_MIGRATE_FAILED").With("driver", cfg.driver).Wrapf(err, "migrate postgres database")
		}

		logger.Info("migration ran", "driver", cfg.driver)
	}

	pool, err := postgres.Open(ctx, url)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", cfg.driver).Wrapf(err, "open postgres database")
	}

	return &store{
		repo: postgres.New(pool),
		ping: pool.Ping,
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

func migratePostgres(url string) (err error) {
	m, err := postgres.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := m.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return m.Up()
}
