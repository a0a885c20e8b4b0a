package ports

import (
	"context"

	"github.com/opendatanode/manager/internal/core/domain"
)

// AuthService authenticates operators and manages their passwords.
type AuthService interface {
	// Authenticate verifies a username/password pair and returns the user
	// with roles attached. Returns ErrInvalidCredentials on a wrong
	// password or unknown user, and *AdminValidationError when the
	// credentials are correct but no role has been assigned yet.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// Register creates a role-less account awaiting admin validation.
	Register(ctx context.Context, username, email, password string) (*domain.User, error)

	// ChangePassword verifies the current password before storing a hash
	// of the new one.
	ChangePassword(ctx context.Context, username, password, newPassword string) error

	// ResetPassword is the admin operation that re-initializes a user's
	// password. It refuses the super-user id.
	ResetPassword(ctx context.Context, id int64) error
}

// LoginGuard throttles failed login attempts per username.
type LoginGuard interface {
	// Blocked reports whether logins for this username are currently
	// locked out.
	Blocked(ctx context.Context, username string) (bool, error)
	// RecordFailure counts a failed attempt.
	RecordFailure(ctx context.Context, username string) error
	// Clear resets the counter after a successful login.
	Clear(ctx context.Context, username string) error
}
