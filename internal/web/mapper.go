package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/willemschots/sessiongate/internal/account"
	"github.com/willemschots/sessiongate/internal/errorz"
)

// mapper is a generic HTTP handler that maps requests to target
// function calls and writes the output to the response.
type mapper[IN, OUT any] struct {
	s      *Server
	req    func(*http.Request) (IN, error)
	target func(context.Context, IN) (OUT, error)
	res    func(result[IN, OUT]) error
}

// result is the result of a succesful target call.
// It contains all relevant data because we can't know
// in advance what we will need to construct a response.
type result[IN, OUT any] struct {
	s   *Server
	r   *http.Request
	w   http.ResponseWriter
	in  IN
	out OUT
}

// mapForm creates a HTTP Handler that:
// 1. Decodes the form in the request to a value of type IN.
// 2. Calls the target func with that value.
// 3. Writes the output of type OUT to the response.
//
// Errors are written using the server error handler.
func mapForm[IN, OUT any](s *Server, targetFunc func(context.Context, IN) (OUT, error)) *mapper[IN, OUT] {
	return &mapper[IN, OUT]{
		s: s,
		req: func(r *http.Request) (IN, error) {
			return decodeForm[IN](s, r)
		},
		target: targetFunc,
		res: func(r result[IN, OUT]) error {
			return errors.New("no response configured")
		},
	}
}

// response overwrites the function that writes the output to the response.
func (m *mapper[IN, OUT]) response(fn func(result[IN, OUT]) error) *mapper[IN, OUT] {
	m.res = fn
	return m
}

func (m *mapper[IN, OUT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	in, err := m.req(r)
	if err != nil {
		m.s.handleError(w, r, err)
		return
	}

	out, err := m.target(r.Context(), in)
	if err != nil {
		m.s.handleError(w, r, err)
		return
	}

	err = m.res(result[IN, OUT]{
		s:   m.s,
		r:   r,
		w:   w,
		in:  in,
		out: out,
	})
	if err != nil {
		m.s.handleError(w, r, err)
		return
	}
}

// decodeForm maps the form values of a request to a struct.
func decodeForm[IN any](s *Server, r *http.Request) (IN, error) {
	var in IN
	err := r.ParseForm()
	if err != nil {
		return in, errorz.InvalidInput{err}
	}

	// The token was checked by the CSRF middleware.
	r.Form.Del(csrfTokenField)
	r.PostForm.Del(csrfTokenField)

	err = s.decoder.Decode(&in, r.PostForm)
	return in, decodeError(err)
}

func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if errors.As(err, &multiErr) {
		var invalidInput errorz.InvalidInput
		for key, e := range multiErr {
			invalidInput = append(invalidInput, errorz.Keyed{
				Key: key,
				Err: e,
			})
		}

		return invalidInput
	}

	return err
}

// outcomeResponse writes the outcome of a login or signup attempt.
// On success the session cookie is set and the user redirected, otherwise
// the named view is shown again with the error and submitted email.
func outcomeResponse[IN any](viewName string, emailOf func(IN) string) func(result[IN, account.Outcome]) error {
	return func(res result[IN, account.Outcome]) error {
		if !res.out.Success {
			res.s.writeView(res.w, res.r, http.StatusUnprocessableEntity, viewName, viewData{
				Email: emailOf(res.in),
				Error: res.out.Error,
			})
			return nil
		}

		if res.out.Cookie == nil {
			return errors.New("successful outcome without session cookie")
		}

		http.SetCookie(res.w, res.out.Cookie)
		http.Redirect(res.w, res.r, res.out.RedirectTo, http.StatusSeeOther)
		return nil
	}
}
