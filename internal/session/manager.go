// Package session issues and reads the cookie that keeps users signed in.
//
// Sessions are stateless: the cookie carries the user ID, signed with
// HMAC-SHA256 and encrypted with AES-256. Nothing is stored server side, so a
// copied cookie stays valid until it expires even after the user logs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/errorz"
	"github.com/willemschots/sessiongate/internal/krypto"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "__session"
	// DefaultMaxAge is the lifetime of a session in seconds, 7 days.
	DefaultMaxAge = 7 * 24 * 60 * 60

	hashKeyPurpose  = "sessiongate session hash key"
	blockKeyPurpose = "sessiongate session block key"
)

// ErrUnauthenticated is returned by RequireUser when the request has no valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

// UserFinder finds users by ID. auth.UserRepository satisfies it.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (auth.User, error)
}

// Config configures a Manager.
type Config struct {
	// Secret is what the signing and encryption keys are derived from.
	// It needs to be at least krypto.MinSecretLen bytes.
	Secret krypto.Secret
	// Secure sets the Secure attribute on cookies, enable it in production.
	Secure bool
	// MaxAge is the session lifetime in seconds, DefaultMaxAge when 0.
	MaxAge int
}

type payload struct {
	UID string `json:"uid"`
}

// Manager creates, reads and clears session cookies.
// It is safe for concurrent use.
type Manager struct {
	codec  *securecookie.SecureCookie
	opts   sessions.Options
	users  UserFinder
	logger *slog.Logger
}

// NewManager creates a new session manager.
func NewManager(cfg Config, users UserFinder, logger *slog.Logger) (*Manager, error) {
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}

	if maxAge < 0 {
		return nil, fmt.Errorf("invalid session max age %d", maxAge)
	}

	hashKey, err := krypto.DeriveKey(cfg.Secret, hashKeyPurpose, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to derive hash key: %w", err)
	}

	blockKey, err := krypto.DeriveKey(cfg.Secret, blockKeyPurpose, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive block key: %w", err)
	}

	codec := securecookie.New(hashKey.SecretValue(), blockKey.SecretValue())
	codec.MaxAge(maxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec: codec,
		opts: sessions.Options{
			Path:     "/",
			MaxAge:   maxAge,
			Secure:   cfg.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		users:  users,
		logger: logger,
	}, nil
}

// Create returns a cookie that signs in the user with userID.
func (m *Manager) Create(userID uuid.UUID) (*http.Cookie, error) {
	if userID == uuid.Nil {
		return nil, errors.New("can't create session for nil user id")
	}

	value, err := m.codec.Encode(CookieName, payload{UID: userID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	return sessions.NewCookie(CookieName, value, &m.opts), nil
}

// Destroy returns a cookie that clears the session cookie in the browser.
// The old cookie value is not revoked.
func (m *Manager) Destroy(ctx context.Context, cookieHeader string) *http.Cookie {
	if id, ok := m.UserID(cookieHeader); ok {
		m.logger.DebugContext(ctx, "session destroyed", "user_id", id)
	}

	opts := m.opts
	opts.MaxAge = -1

	return sessions.NewCookie(CookieName, "", &opts)
}

// UserID returns the user ID stored in the session cookie in cookieHeader.
// It reports false when the cookie is missing, tampered with or expired.
func (m *Manager) UserID(cookieHeader string) (uuid.UUID, bool) {
	if cookieHeader == "" {
		return uuid.Nil, false
	}

	r := http.Request{Header: http.Header{"Cookie": {cookieHeader}}}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return uuid.Nil, false
	}

	var p payload
	err = m.codec.Decode(CookieName, c.Value, &p)
	if err != nil {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(p.UID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}

// User returns the signed in user. It reports false when there is no valid
// session or when the user no longer exists. Errors are only returned for
// infrastructure failures.
func (m *Manager) User(ctx context.Context, cookieHeader string) (auth.User, bool, error) {
	id, ok := m.UserID(cookieHeader)
	if !ok {
		return auth.User{}, false, nil
	}

	user, err := m.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return auth.User{}, false, nil
		}
		return auth.User{}, false, fmt.Errorf("failed to find session user: %w", err)
	}

	return user, true, nil
}

// RequireUser is like User but returns ErrUnauthenticated when no user is signed in.
func (m *Manager) RequireUser(ctx context.Context, cookieHeader string) (auth.User, error) {
	user, ok, err := m.User(ctx, cookieHeader)
	if err != nil {
		return auth.User{}, err
	}

	if !ok {
		return auth.User{}, ErrUnauthenticated
	}

	return user, nil
}
