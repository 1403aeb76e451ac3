package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/session"
)

// public routes are served to everyone without looking up the session user.
func (s *Server) public(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// publicOnly routes are for visitors that are not signed in, others are sent home.
func (s *Server) publicOnly(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, s.withUser(func(w http.ResponseWriter, r *http.Request, ok bool) {
		if ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// loggedIn routes require a signed in user, others are sent to the login page.
func (s *Server) loggedIn(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.deps.Sessions.RequireUser(r.Context(), cookieHeader(r))
		if errors.Is(err, session.ErrUnauthenticated) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if err != nil {
			s.handleError(w, r, err)
			return
		}

		handler.ServeHTTP(w, r.WithContext(ctxWithUser(r.Context(), user)))
	}))
}

// withUser resolves the session user and adds it to the request context.
func (s *Server) withUser(next func(w http.ResponseWriter, r *http.Request, ok bool)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok, err := s.deps.Sessions.User(r.Context(), cookieHeader(r))
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		if ok {
			r = r.WithContext(ctxWithUser(r.Context(), user))
		}

		next(w, r, ok)
	})
}

// cookieHeader returns the raw Cookie header. Browsers send a single
// header, but HTTP/1.1 clients are allowed to send several.
func cookieHeader(r *http.Request) string {
	return strings.Join(r.Header.Values("Cookie"), "; ")
}

type ctxKey string

const userCtxKey ctxKey = "_user"

func ctxWithUser(ctx context.Context, user auth.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

func userFromContext(ctx context.Context) (auth.User, bool) {
	user, ok := ctx.Value(userCtxKey).(auth.User)
	return user, ok
}
