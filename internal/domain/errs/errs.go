// Package errs defines the error kinds shared by the account lifecycle core.
// Domain packages wrap these sentinels with fmt.Errorf("%w: ...") so callers
// can classify failures with errors.Is without parsing messages.
package errs

import "errors"

// Error kinds.
var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrNotFound          = errors.New("not found")
)

// Kind names returned by KindOf.
const (
	KindForbidden         = "forbidden"
	KindInvalidTransition = "invalid_transition"
	KindInvalidState      = "invalid_state"
	KindNotFound          = "not_found"
	KindUnknown           = ""
)

// KindOf returns the stable kind name of err, or KindUnknown if err does not
// wrap one of the lifecycle error kinds.
// PRE: none
// POST: Returns one of the Kind* constants
func KindOf(err error) string {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnknown
}
