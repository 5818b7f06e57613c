package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates that no actor was resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is the sentinel every ForbiddenError unwraps to.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition indicates a state machine refused the requested move.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownPermission indicates a permission name outside the catalog.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrValidation indicates malformed user input.
	ErrValidation = errors.New("validation failed")
)

// ForbiddenError reports the specific permission the actor is missing.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	if e.Permission == "" {
		return ErrForbidden.Error()
	}
	return fmt.Sprintf("forbidden: missing permission %s", e.Permission)
}

// Unwrap lets errors.Is(err, ErrForbidden) match.
func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// Forbidden builds a ForbiddenError for the given permission.
func Forbidden(permission string) error {
	return &ForbiddenError{Permission: permission}
}

// RequiredPermission extracts the missing permission from err, if any.
func RequiredPermission(err error) (string, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) && fe.Permission != "" {
		return fe.Permission, true
	}
	return "", false
}

// InvalidTransition wraps ErrInvalidTransition with a from/to description.
func InvalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// UserSafeMessage returns an error message suitable for API clients.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrUnknownPermission):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrUnauthenticated):
		return "authentication required"
	default:
		return "internal error"
	}
}
