package service

import (
	"context"
	"fmt"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
	"github.com/opendatanode/manager/internal/security/password"
)

// UserService implements the admin-facing account operations.
type UserService struct {
	users ports.UserRepository
	roles ports.RoleRepository
}

func NewUserService(users ports.UserRepository, roles ports.RoleRepository) *UserService {
	return &UserService{users: users, roles: roles}
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) Get(ctx context.Context, username string) (*domain.User, error) {
	return s.users.FindByUsername(ctx, username)
}

// Create registers an account with an initial role set, as opposed to
// self-registration which always starts role-less.
func (s *UserService) Create(ctx context.Context, username, email, pass string, roles []string) (*domain.User, error) {
	if username == "" || pass == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrBadRequest)
	}
	for _, role := range roles {
		if _, err := s.roles.FindByName(ctx, role); err != nil {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrBadRequest, role)
		}
	}
	hash, err := password.Hash(pass)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
	})
}

func (s *UserService) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.ID == domain.SuperUserID {
		return nil, fmt.Errorf("%w: the super-user account cannot be edited", domain.ErrForbidden)
	}
	return s.users.Update(ctx, user)
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if id == domain.SuperUserID {
		return fmt.Errorf("%w: the super-user account cannot be deleted", domain.ErrForbidden)
	}
	return s.users.Delete(ctx, id)
}

func (s *UserService) GrantRole(ctx context.Context, userID int64, role string) error {
	if _, err := s.roles.FindByName(ctx, role); err != nil {
		return err
	}
	return s.users.GrantRole(ctx, userID, role)
}

func (s *UserService) RevokeRole(ctx context.Context, userID int64, role string) error {
	return s.users.RevokeRole(ctx, userID, role)
}

func (s *UserService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.roles.List(ctx)
}
