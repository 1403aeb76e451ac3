// Package sqlite stores users in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/email"
)

// Repository implements auth.UserRepository. Reads and writes may use
// separate pools, see db.OpenPool.
type Repository struct {
	write *sql.DB
	read  *sql.DB

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
	// NewID generates user IDs.
	// Exposed for testing purposes.
	NewID func() (uuid.UUID, error)
}

// New creates a new Repository.
func New(write, read *sql.DB) *Repository {
	return &Repository{
		write: write,
		read:  read,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewV7,
	}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	u, _, err := selectUser(ctx, r.read.QueryRowContext, "id", id.String())
	return u, err
}

func (r *Repository) FindByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	u, _, err := selectUser(ctx, r.read.QueryRowContext, "email", string(addr))
	return u, err
}

func (r *Repository) FindByEmailWithCredential(ctx context.Context, addr email.Address) (auth.User, auth.Credential, error) {
	return selectUser(ctx, r.read.QueryRowContext, "email", string(addr))
}

// Create inserts the user and its credential in a single statement.
// A taken email address results in errorz.ErrConflict.
func (r *Repository) Create(ctx context.Context, addr email.Address, cred auth.Credential) (auth.User, error) {
	id, err := r.NewID()
	if err != nil {
		return auth.User{}, err
	}

	now := r.NowFunc()
	u := auth.User{
		ID:        id,
		Email:     addr,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = insertUser(ctx, r.write.ExecContext, u, cred)
	if err != nil {
		return auth.User{}, err
	}

	return u, nil
}

// Update applies upd and returns the updated user. UpdatedAt is always set.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, upd auth.UserUpdate) (auth.User, error) {
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, err
	}
	defer tx.Rollback() // no-op after commit.

	err = updateUser(ctx, tx.ExecContext, id, upd, r.NowFunc())
	if err != nil {
		return auth.User{}, err
	}

	u, _, err := selectUser(ctx, tx.QueryRowContext, "id", id.String())
	if err != nil {
		return auth.User{}, err
	}

	err = tx.Commit()
	if err != nil {
		return auth.User{}, err
	}

	return u, nil
}

// Delete removes the user and its credential.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteUser(ctx, r.write.ExecContext, id)
}
