package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/willemschots/sessiongate/internal/email"
)

// UserRepository stores users and their credentials.
//
// Failures are reported with errorz.ErrNotFound when no user matches,
// errorz.ErrConflict when the email address is taken and
// errorz.ErrUnavailable when storage can't be reached. Email addresses are
// matched exactly.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	FindByEmail(ctx context.Context, addr email.Address) (User, error)
	FindByEmailWithCredential(ctx context.Context, addr email.Address) (User, Credential, error)
	// Create stores a new user and its credential in a single write.
	Create(ctx context.Context, addr email.Address, cred Credential) (User, error)
	Update(ctx context.Context, id uuid.UUID, upd UserUpdate) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
