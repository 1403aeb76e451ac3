package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/db"
	"github.com/willemschots/sessiongate/internal/email"
	"github.com/willemschots/sessiongate/internal/errorz"
)

type execFunc func(ctx context.Context, query string, params ...any) (sql.Result, error)
type queryRowFunc func(ctx context.Context, query string, params ...any) *sql.Row

const userColumns = `id, email, password, is_superuser, created_at, updated_at`

func insertUser(ctx context.Context, ef execFunc, u auth.User, cred auth.Credential) error {
	if u.ID == uuid.Nil {
		return errors.New("zero uuid provided")
	}

	var q db.Query
	q.Unsafe(`INSERT INTO users (` + userColumns + `) VALUES (`)
	q.Params(u.ID.String(), string(u.Email), cred.Digest(), u.IsSuperuser, u.CreatedAt, u.UpdatedAt)
	q.Unsafe(`)`)

	s, params := q.Get()
	_, err := ef(ctx, s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func updateUser(ctx context.Context, ef execFunc, id uuid.UUID, upd auth.UserUpdate, now time.Time) error {
	var q db.Query
	q.Unsafe(`UPDATE users SET `)

	if upd.Email != nil {
		q.Set("email", string(*upd.Email))
	}

	if upd.IsSuperuser != nil {
		q.Set("is_superuser", *upd.IsSuperuser)
	}

	q.Set("updated_at", now)

	q.Unsafe(` WHERE id = `)
	q.Param(id.String())

	s, params := q.Get()
	result, err := ef(ctx, s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return expectOneRow(result)
}

func deleteUser(ctx context.Context, ef execFunc, id uuid.UUID) error {
	var q db.Query
	q.Unsafe(`DELETE FROM users WHERE id = `)
	q.Param(id.String())

	s, params := q.Get()
	result, err := ef(ctx, s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return expectOneRow(result)
}

// selectUser selects the single user where column equals v.
func selectUser(ctx context.Context, qf queryRowFunc, column string, v any) (auth.User, auth.Credential, error) {
	var q db.Query
	q.Unsafe(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = `)
	q.Param(v)

	s, params := q.Get()

	var (
		u      auth.User
		addr   string
		digest string
	)
	err := qf(ctx, s, params...).Scan(&u.ID, &addr, &digest, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, auth.Credential{}, errorz.MapDBErr(err)
	}

	u.Email = email.Address(addr)

	return u, auth.NewCredential(digest), nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}
