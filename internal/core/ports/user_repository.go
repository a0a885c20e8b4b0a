package ports

import (
	"context"

	"github.com/opendatanode/manager/internal/core/domain"
)

// UserRepository is the contract with the external user store. All
// methods return domain sentinel errors (ErrUserNotFound, ErrUserExists).
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id int64) error

	// UpdatePassword replaces the stored hash for a user.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// RolesByUsername returns the roles currently assigned to a user.
	// Authorization checks must call this fresh on every request, never
	// trust roles embedded in a token.
	RolesByUsername(ctx context.Context, username string) ([]string, error)

	GrantRole(ctx context.Context, userID int64, role string) error
	RevokeRole(ctx context.Context, userID int64, role string) error
}

// RoleRepository stores the role catalogue.
type RoleRepository interface {
	List(ctx context.Context) ([]domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)

	// EnsureBootstrap creates any missing role from the fixed bootstrap
	// set. Existing roles are left untouched.
	EnsureBootstrap(ctx context.Context, roles []domain.Role) error
}
