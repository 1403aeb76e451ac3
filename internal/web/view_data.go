package web

import "github.com/willemschots/sessiongate/internal/auth"

// viewData is passed to every view.
type viewData struct {
	Version    string
	CSRFToken  string
	IsLoggedIn bool
	User       auth.User
	// Email is the submitted email, used to refill the form.
	Email string
	// Error is a message that is safe to show to the user.
	Error string
}
