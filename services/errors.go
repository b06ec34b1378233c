package services

import "errors"

// Domain errors returned by the enrollment core. Handlers translate
// these to HTTP status codes and stable error codes; everything else is
// treated as an internal error.
var (
	// ErrNotAuthenticated means no identity was supplied with the call.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotAuthorized means the operation requires the admin role.
	ErrNotAuthorized = errors.New("admin privileges required")
	// ErrProfileIncomplete blocks registration until all contact fields
	// are populated.
	ErrProfileIncomplete = errors.New("profile is incomplete")
	// ErrAlreadyCompleted means a completion record exists for the pair;
	// registration is permanently blocked.
	ErrAlreadyCompleted = errors.New("course already completed")
	// ErrMaxRegistrationsExceeded means the user's active registration
	// cap has been reached.
	ErrMaxRegistrationsExceeded = errors.New("maximum active registrations reached")
	// ErrSessionFull means the session has no remaining capacity.
	ErrSessionFull = errors.New("session is at capacity")
	// ErrSessionNotAvailable means the session is archived or does not
	// belong to the course.
	ErrSessionNotAvailable = errors.New("session is not available")
	// ErrNotPermitted means the user tried to change a selection on an
	// admin-assigned registration.
	ErrNotPermitted = errors.New("session is assigned by an administrator")
	// ErrInvalidPriority means a reorder target outside [1, N].
	ErrInvalidPriority = errors.New("priority out of range")
	// ErrNotFound means the referenced registration, session, course or
	// completion does not exist.
	ErrNotFound = errors.New("not found")
)

// Identity is the already-authenticated caller, passed explicitly into
// every core operation. It is never read from ambient state.
type Identity struct {
	UserID  uint
	IsAdmin bool
}

func (id Identity) valid() bool {
	return id.UserID != 0
}

// requireAdmin gates admin-only operations.
func requireAdmin(id Identity) error {
	if !id.valid() {
		return ErrNotAuthenticated
	}
	if !id.IsAdmin {
		return ErrNotAuthorized
	}
	return nil
}

// requireUser gates operations a caller performs on their own data.
func requireUser(id Identity) error {
	if !id.valid() {
		return ErrNotAuthenticated
	}
	return nil
}
