package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/sessiongate/internal/email"
)

// User contains the data for a user. It never carries the credential,
// use UserRepository.FindByEmailWithCredential when it is needed.
type User struct {
	ID          uuid.UUID
	Email       email.Address
	IsSuperuser bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserUpdate describes a partial update of a user. Nil fields are left untouched.
type UserUpdate struct {
	Email       *email.Address
	IsSuperuser *bool
}

// IsEmpty reports whether the update would not change anything.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.IsSuperuser == nil
}
