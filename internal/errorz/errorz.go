package errorz

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

// MapDBErr maps sqlite and database/sql errors to appropriate errorz errors.
// The original error is kept in the chain so it can still be logged.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errors.Join(ErrNotFound, err)
	}

	sErr := sqlite3.Error{}
	if errors.As(err, &sErr) {
		switch sErr.Code {
		case sqlite3.ErrConstraint:
			return errors.Join(ErrConflict, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return errors.Join(ErrUnavailable, err)
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return errors.Join(ErrUnavailable, err)
	}

	return err
}
