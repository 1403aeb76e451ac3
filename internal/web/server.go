package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"
	"github.com/willemschots/sessiongate/internal"
	"github.com/willemschots/sessiongate/internal/account"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/errorz"
	"github.com/willemschots/sessiongate/internal/krypto"
)

const (
	csrfTokenCookieName = "__csrf"
	csrfTokenField      = "csrf_token"

	// csrfKeyPurpose is used to derive the CSRF key from the session secret.
	csrfKeyPurpose = "sessiongate csrf key"
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// Accounts runs the login and signup workflows. *account.UseCases satisfies it.
type Accounts interface {
	Login(ctx context.Context, in account.LoginInput) (account.Outcome, error)
	Signup(ctx context.Context, in account.SignupInput) (account.Outcome, error)
}

// SessionManager reads and clears session cookies. *session.Manager satisfies it.
// RequireUser returns session.ErrUnauthenticated when nobody is signed in.
type SessionManager interface {
	User(ctx context.Context, cookieHeader string) (auth.User, bool, error)
	RequireUser(ctx context.Context, cookieHeader string) (auth.User, error)
	Destroy(ctx context.Context, cookieHeader string) *http.Cookie
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	ViewRenderer ViewRenderer
	Accounts     Accounts
	Sessions     SessionManager
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// HealthCheck is called by GET /healthz when set.
	HealthCheck func(ctx context.Context) error
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	CSRFKey      krypto.Key
	SecureCookie bool
}

// CSRFKeyFromSecret derives the key that signs CSRF tokens.
func CSRFKeyFromSecret(secret krypto.Secret) (krypto.Key, error) {
	return krypto.DeriveKey(secret, csrfKeyPurpose, 32)
}

type Server struct {
	deps    *ServerDeps
	mux     *http.ServeMux
	decoder *schema.Decoder
	handler http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) (*Server, error) {
	if deps == nil || deps.Logger == nil || deps.ViewRenderer == nil || deps.Accounts == nil || deps.Sessions == nil {
		return nil, errors.New("missing server dependencies")
	}

	if len(cfg.CSRFKey.SecretValue()) != 32 {
		return nil, errors.New("csrf key must be 32 bytes")
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		deps:    deps,
		mux:     http.NewServeMux(),
		decoder: decoder,
	}

	// Home.
	s.loggedIn("GET /{$}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeView(w, r, http.StatusOK, "home", viewData{})
	}))

	// Login endpoints.
	s.publicOnly("GET /login", s.staticHandler("login"))
	{
		h := mapForm(s, deps.Accounts.Login)
		h.response(outcomeResponse("login", func(in account.LoginInput) string {
			return in.Email
		}))

		s.public("POST /login", h)
	}

	// Signup endpoints.
	s.publicOnly("GET /signup", s.staticHandler("signup"))
	{
		h := mapForm(s, deps.Accounts.Signup)
		h.response(outcomeResponse("signup", func(in account.SignupInput) string {
			return in.Email
		}))

		s.public("POST /signup", h)
	}

	// Logout endpoints. Clearing the cookie works with or without a valid session.
	s.public("POST /logout", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, s.deps.Sessions.Destroy(r.Context(), cookieHeader(r)))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}))
	s.public("GET /logout", http.RedirectHandler("/", http.StatusSeeOther))

	// Operational endpoints.
	if deps.Metrics != nil {
		s.public("GET /metrics", deps.Metrics)
	}
	s.public("GET /healthz", http.HandlerFunc(s.healthz))

	// Wrap the mux with global middlewares.
	csrfMW := csrf.Protect(
		cfg.CSRFKey.SecretValue(),
		csrf.CookieName(csrfTokenCookieName),
		csrf.FieldName(csrfTokenField),
		csrf.Secure(cfg.SecureCookie),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
	)

	middlewares := []func(http.Handler) http.Handler{
		plaintextUnlessSecure(cfg.SecureCookie),
		csrfMW,
	}
	s.handler = s.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		s.handler = middlewares[i](s.handler)
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// plaintextUnlessSecure marks requests as plain HTTP when cookies are not
// secure. Otherwise the CSRF check demands a same origin Referer header.
func plaintextUnlessSecure(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secure {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	s.deps.Logger.InfoContext(r.Context(), "csrf check failed", "method", r.Method, "url", r.URL.String(), "reason", csrf.FailureReason(r))
	http.Error(w, "forbidden", http.StatusForbidden)
}

func (s *Server) staticHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeView(w, r, http.StatusOK, name, viewData{})
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthCheck != nil {
		err := s.deps.HealthCheck(r.Context())
		if err != nil {
			errorz.LogError(r.Context(), s.deps.Logger, "health check failed", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// writeView renders the view to a buffer first, so a failing template
// results in a clean 500 instead of a partial page.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, status int, name string, data viewData) {
	data.Version = internal.BuildRevision
	data.User, data.IsLoggedIn = userFromContext(r.Context())
	data.CSRFToken = csrf.Token(r)

	buf := &bytes.Buffer{}
	err := s.deps.ViewRenderer.Render(buf, name, data)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	if err != nil {
		s.deps.Logger.DebugContext(r.Context(), "failed to write response", "error", err)
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	errorz.LogError(r.Context(), s.deps.Logger, "internal server error", err, "method", r.Method, "url", r.URL.String())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
