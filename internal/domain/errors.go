package domain

import "errors"

// User-recoverable errors. Handlers attach these to the originating
// form field; anything else surfaces as a generic 500.
var (
	ErrDuplicateUsername      = errors.New("username is already taken")
	ErrDuplicateEmail         = errors.New("email is already taken")
	ErrPasswordMismatch       = errors.New("passwords do not match")
	ErrPasswordUnchanged      = errors.New("new password must be different from the current password")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUnauthenticated        = errors.New("authentication required")
	ErrBioTooLong             = errors.New("bio must be at most 500 characters")
	ErrLocationTooLong        = errors.New("location must be at most 30 characters")
	ErrInvalidBirthDate       = errors.New("birth date must be a valid YYYY-MM-DD date")
	ErrNotFound               = errors.New("not found")
)

// FieldErrors maps form field names to validation errors so a form can
// render every failing field at once.
type FieldErrors map[string]error

func (fe FieldErrors) Error() string {
	for _, err := range fe {
		return err.Error() // any one message; callers render the full map
	}
	return "validation failed"
}

// Add records an error for a field, ignoring nil errors
func (fe FieldErrors) Add(field string, err error) {
	if err != nil {
		fe[field] = err
	}
}

// Messages renders the map into plain strings for JSON responses
func (fe FieldErrors) Messages() map[string]string {
	out := make(map[string]string, len(fe))
	for field, err := range fe {
		out[field] = err.Error()
	}
	return out
}

// AsFieldErrors unwraps err into FieldErrors if it is one
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
