package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services, middleware and handlers. The
// HTTP error handler owns the mapping to status codes.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrUserExists         = errors.New("user already exists")
	ErrSessionExpired     = errors.New("session expired")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrConfiguration      = errors.New("configuration error")
)

// AdminValidationError signals correct credentials on an account that has
// no role assigned yet. It maps to 403, not 401: the caller should wait
// for an administrator, not retry the password.
type AdminValidationError struct {
	Username string
}

func (e *AdminValidationError) Error() string {
	return fmt.Sprintf("admin validation required for user '%s'", e.Username)
}

// UnreachableError reports that a downstream service could not be
// reached. It always maps to 503 and names the service so the operator
// gets an actionable message instead of a transport error.
type UnreachableError struct {
	Service string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("connection to the %q service failed: %q is unreachable, contact the node administrator", e.Service, e.Service)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// DownstreamError carries a non-transport failure reported by a
// downstream service, preserving its status code.
type DownstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("error %d while calling %s: %s", e.Status, e.Service, e.Message)
}
