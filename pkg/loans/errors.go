package loans

import "errors"

// Engine failure taxonomy. The HTTP layer maps these to 404/403/409/400.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrForbidden         = errors.New("not authorized for this action")
	ErrConflict          = errors.New("conflicting loan state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRequest    = errors.New("invalid loan request")
)
