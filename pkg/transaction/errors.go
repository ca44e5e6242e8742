package transaction

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an id does not exist or is not owned by the
// requesting user. Deliberately indistinguishable between the two cases.
var ErrNotFound = errors.New("transaction not found")

// ValidationError reports a malformed or type-inconsistent request. It names
// the offending field so callers can surface it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
