// Package account implements the login and signup workflows. Failures caused
// by user input are returned as an unsuccessful Outcome. Any other failure is
// returned as an error.
package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/email"
)

// Messages shown to users.
const (
	MsgInvalidEmail       = "Invalid email address"
	MsgPasswordMismatch   = "Passwords do not match"
	MsgInvalidCredentials = "Invalid email or password"
)

// RedirectAfterAuth is where users are sent after signing in.
const RedirectAfterAuth = "/"

// Authenticator verifies and creates users. *auth.Service satisfies it.
type Authenticator interface {
	Login(ctx context.Context, addr email.Address, password string) (auth.User, error)
	Signup(ctx context.Context, addr email.Address, password string) (auth.User, error)
}

// SessionCreator issues session cookies. *session.Manager satisfies it.
type SessionCreator interface {
	Create(userID uuid.UUID) (*http.Cookie, error)
}

// LoginInput is the data submitted by the login form.
type LoginInput struct {
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

// SignupInput is the data submitted by the signup form.
type SignupInput struct {
	Email           string `schema:"email"`
	Password        string `schema:"password"`
	ConfirmPassword string `schema:"confirmPassword"`
}

// Outcome is the result of a login or signup attempt. On success Cookie
// should be set on the response and the user redirected to RedirectTo. On
// failure Error holds a message that is safe to show.
type Outcome struct {
	Success    bool
	Error      string
	User       auth.User
	Cookie     *http.Cookie
	RedirectTo string
}

func failure(msg string) Outcome {
	return Outcome{Success: false, Error: msg}
}

// UseCases runs the login and signup workflows.
type UseCases struct {
	auth     Authenticator
	sessions SessionCreator
}

// New creates the use cases.
func New(a Authenticator, s SessionCreator) *UseCases {
	return &UseCases{
		auth:     a,
		sessions: s,
	}
}

// Login signs in a user. Unknown emails and wrong passwords both result in
// MsgInvalidCredentials.
func (u *UseCases) Login(ctx context.Context, in LoginInput) (Outcome, error) {
	addr, err := email.ParseAddress(in.Email)
	if err != nil {
		return failure(MsgInvalidEmail), nil
	}

	user, err := u.auth.Login(ctx, addr, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrIncorrectPassword) {
			return failure(MsgInvalidCredentials), nil
		}
		return Outcome{}, err
	}

	return u.signIn(user)
}

// Signup creates a user and signs them in. The password confirmation is
// checked before anything is hashed or stored.
func (u *UseCases) Signup(ctx context.Context, in SignupInput) (Outcome, error) {
	addr, err := email.ParseAddress(in.Email)
	if err != nil {
		return failure(MsgInvalidEmail), nil
	}

	if in.Password != in.ConfirmPassword {
		return failure(MsgPasswordMismatch), nil
	}

	user, err := u.auth.Signup(ctx, addr, in.Password)
	if err != nil {
		var pErr auth.InvalidPasswordError
		var eErr auth.EmailAlreadyExistsError
		if errors.As(err, &pErr) || errors.As(err, &eErr) {
			return failure(err.Error()), nil
		}
		return Outcome{}, err
	}

	return u.signIn(user)
}

func (u *UseCases) signIn(user auth.User) (Outcome, error) {
	cookie, err := u.sessions.Create(user.ID)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Success:    true,
		User:       user,
		Cookie:     cookie,
		RedirectTo: RedirectAfterAuth,
	}, nil
}
