package market

import "errors"

// Error kinds reported by lifecycle operations. Callers classify with errors.Is;
// operations wrap them with context.
var (
	// ErrInvalidState: the request or offer is not in a status that allows the action.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound: a referenced request, offer or profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: the actor is not the owner or a participant.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyDone: duplicate closure or rating.
	ErrAlreadyDone = errors.New("already done")
	// ErrValidation: malformed numeric or enum input.
	ErrValidation = errors.New("validation error")
)

// Kind returns the short name of the error kind wrapped by err, or "" when err
// carries none of them.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyDone):
		return "already_done"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	}
	return ""
}
