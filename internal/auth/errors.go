package auth

import (
	"errors"
	"fmt"

	"github.com/willemschots/sessiongate/internal/email"
)

var (
	// ErrUserNotFound is returned by Login when no user has the email address.
	ErrUserNotFound = errors.New("user not found")
	// ErrIncorrectPassword is returned by Login when the password does not match.
	ErrIncorrectPassword = errors.New("incorrect password")
)

// InvalidPasswordError is returned by Signup when the password
// does not satisfy the policy. Reason is safe to show to users.
type InvalidPasswordError struct {
	Reason string
}

func (e InvalidPasswordError) Error() string {
	return e.Reason
}

// EmailAlreadyExistsError is returned by Signup when the email
// address is taken.
type EmailAlreadyExistsError struct {
	Email email.Address
}

func (e EmailAlreadyExistsError) Error() string {
	return fmt.Sprintf("User with email %s already exists", e.Email)
}
