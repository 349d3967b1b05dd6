package attendance

import "github.com/pkg/errors"

var (
	// errors
	ErrNotFound          = errors.New("not found")
	ErrNotApplicable     = errors.New("source not applicable")
	ErrRosterUnavailable = errors.New("roster unavailable")
	ErrSaveDeclined      = errors.New("save declined")
	ErrActionCancelled   = errors.New("action cancelled: unsaved changes")
	ErrSuperseded        = errors.New("session changed while loading")
	ErrNoSession         = errors.New("no session selected")
	ErrUnknownStudent    = errors.New("student is not on the roster")

	errSelectClassAndDate = errors.New("select class and date")
	errMarkOneStudent     = errors.New("mark at least one student")
)

// PersistenceError wraps a transport or backend failure of a save.
// Local state is left untouched when it is returned.
type PersistenceError struct {
	Err error
}

func (err *PersistenceError) Error() string {
	return "saving attendance: " + err.Err.Error()
}

func (err *PersistenceError) Cause() error { return err.Err }

func (err *PersistenceError) Unwrap() error { return err.Err }

// IsPersistenceError reports whether err, or anything it wraps, is a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pErr *PersistenceError
	return errors.As(err, &pErr)
}
