// Package fault defines the error kinds shared by the canteen domain.
//
// Domain errors wrap exactly one kind so callers can classify them with
// errors.Is without knowing the concrete error type:
//
//	if errors.Is(err, fault.Conflict) { ... }
package fault

import "github.com/go-faster/errors"

// Error kinds.
var (
	// Validation marks missing or malformed input.
	Validation = errors.New("validation failed")
	// Conflict marks a business rule collision, such as a second order for the same day.
	Conflict = errors.New("conflict")
	// NotFound marks a reference to an entity that does not exist.
	NotFound = errors.New("not found")
	// Capacity marks an exhausted or insufficient daily menu quantity.
	Capacity = errors.New("capacity exceeded")
	// Forbidden marks an operation that is not allowed in the current state.
	Forbidden = errors.New("forbidden")
)

var kinds = []error{Validation, Conflict, NotFound, Capacity, Forbidden}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with the given message that matches kind via errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// KindOf returns the kind err wraps, or nil for errors outside the taxonomy.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Name returns a stable identifier for kind, used on the wire.
func Name(kind error) string {
	switch kind {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Capacity:
		return "capacity"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}
