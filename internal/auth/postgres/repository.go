// Package postgres stores users in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/email"
	"github.com/willemschots/sessiongate/internal/errorz"
)

// DB is the part of *pgxpool.Pool used by Repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open connects to the database at url and checks the connection.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, oops.Code("POSTGRES_CONFIG_INVALID").Wrap(err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("POSTGRES_UNAVAILABLE").Wrap(errors.Join(errorz.ErrUnavailable, err))
	}

	return pool, nil
}

const userColumns = `id, email, password, is_superuser, created_at, updated_at`

// Repository implements auth.UserRepository.
type Repository struct {
	db DB

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
	// NewID generates user IDs.
	// Exposed for testing purposes.
	NewID func() (uuid.UUID, error)
}

// New creates a new Repository.
func New(db DB) *Repository {
	return &Repository{
		db: db,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewV7,
	}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	u, _, err := scanUser(row)
	if err != nil {
		return auth.User{}, mapErr(err, "USER_GET_FAILED", "id", id.String())
	}
	return u, nil
}

func (r *Repository) FindByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	u, _, err := r.FindByEmailWithCredential(ctx, addr)
	return u, err
}

func (r *Repository) FindByEmailWithCredential(ctx context.Context, addr email.Address) (auth.User, auth.Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, string(addr))
	u, cred, err := scanUser(row)
	if err != nil {
		return auth.User{}, auth.Credential{}, mapErr(err, "USER_GET_FAILED", "email", string(addr))
	}
	return u, cred, nil
}

// Create inserts the user and its credential in a single statement.
// A taken email address results in errorz.ErrConflict.
func (r *Repository) Create(ctx context.Context, addr email.Address, cred auth.Credential) (auth.User, error) {
	id, err := r.NewID()
	if err != nil {
		return auth.User{}, oops.Code("USER_ID_FAILED").Wrap(err)
	}

	now := r.NowFunc()
	u := auth.User{
		ID:        id,
		Email:     addr,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID.String(), string(u.Email), cred.Digest(), u.IsSuperuser, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return auth.User{}, mapErr(err, "USER_CREATE_FAILED", "id", u.ID.String())
	}

	return u, nil
}

// Update applies upd and returns the updated user. UpdatedAt is always set.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, upd auth.UserUpdate) (auth.User, error) {
	var addr *string
	if upd.Email != nil {
		s := string(*upd.Email)
		addr = &s
	}

	row := r.db.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE($2, email),
			is_superuser = COALESCE($3, is_superuser),
			updated_at = $4
		WHERE id = $1
		RETURNING `+userColumns,
		id.String(), addr, upd.IsSuperuser, r.NowFunc())
	u, _, err := scanUser(row)
	if err != nil {
		return auth.User{}, mapErr(err, "USER_UPDATE_FAILED", "id", id.String())
	}
	return u, nil
}

// Delete removes the user and its credential.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return mapErr(err, "USER_DELETE_FAILED", "id", id.String())
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(errorz.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (auth.User, auth.Credential, error) {
	var (
		u      auth.User
		id     string
		addr   string
		digest string
	)
	err := row.Scan(&id, &addr, &digest, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, auth.Credential{}, err
	}

	u.ID, err = uuid.Parse(id)
	if err != nil {
		return auth.User{}, auth.Credential{}, oops.Code("USER_ID_CORRUPT").With("id", id).Wrap(err)
	}
	u.Email = email.Address(addr)

	return u, auth.NewCredential(digest), nil
}

// mapErr wraps err with an oops code and joins the matching errorz sentinel.
func mapErr(err error, code, key string, value any) error {
	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(errors.Join(errorz.ErrNotFound, err))
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return oops.Code("USER_EMAIL_TAKEN").With(key, value).With("constraint", pgErr.ConstraintName).Wrap(errors.Join(errorz.ErrConflict, err))
	case errors.As(err, &pgErr) && (pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsOperatorIntervention(pgErr.Code)):
		return oops.Code("USER_STORE_UNAVAILABLE").With(key, value).Wrap(errors.Join(errorz.ErrUnavailable, err))
	case errors.As(err, &connErr) || pgconn.Timeout(err):
		return oops.Code("USER_STORE_UNAVAILABLE").With(key, value).Wrap(errors.Join(errorz.ErrUnavailable, err))
	}
	return oops.Code(code).With(key, value).Wrap(err)
}
