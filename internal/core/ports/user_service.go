package ports

import (
	"context"

	"github.com/opendatanode/manager/internal/core/domain"
)

// UserService exposes the admin-facing account operations.
type UserService interface {
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, username, email, password string, roles []string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	GrantRole(ctx context.Context, userID int64, role string) error
	RevokeRole(ctx context.Context, userID int64, role string) error
	ListRoles(ctx context.Context) ([]domain.Role, error)
}
