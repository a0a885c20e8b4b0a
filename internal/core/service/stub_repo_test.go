package service

import (
	"context"

	"github.com/opendatanode/manager/internal/core/domain"
)

// stubUserRepo is an in-memory UserRepository for tests.
type stubUserRepo struct {
	users  map[string]*domain.User
	nextID int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User), nextID: 1}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]string(nil), u.Roles...)
	return &clone
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, ok := r.users[user.Username]; ok {
		return nil, domain.ErrUserExists
	}
	clone := cloneUser(user)
	clone.ID = r.nextID
	r.nextID++
	r.users[user.Username] = clone
	return cloneUser(clone), nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	for name, u := range r.users {
		if u.ID == user.ID {
			delete(r.users, name)
			updated := cloneUser(u)
			updated.Username = user.Username
			updated.Email = user.Email
			r.users[user.Username] = updated
			return cloneUser(updated), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) Delete(_ context.Context, id int64) error {
	for name, u := range r.users {
		if u.ID == id {
			delete(r.users, name)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, username, hash string) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *stubUserRepo) RolesByUsername(_ context.Context, username string) ([]string, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return append([]string(nil), u.Roles...), nil
}

func (r *stubUserRepo) GrantRole(_ context.Context, userID int64, role string) error {
	for _, u := range r.users {
		if u.ID == userID {
			u.Roles = append(u.Roles, role)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r *stubUserRepo) RevokeRole(_ context.Context, userID int64, role string) error {
	for _, u := range r.users {
		if u.ID == userID {
			var kept []string
			for _, have := range u.Roles {
				if have != role {
					kept = append(kept, have)
				}
			}
			u.Roles = kept
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// stubRoleRepo serves the bootstrap role set.
type stubRoleRepo struct{}

func (stubRoleRepo) List(context.Context) ([]domain.Role, error) {
	return domain.BootstrapRoles(), nil
}

func (stubRoleRepo) FindByName(_ context.Context, name string) (*domain.Role, error) {
	for _, role := range domain.BootstrapRoles() {
		if role.Name == name {
			return &role, nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (stubRoleRepo) EnsureBootstrap(context.Context, []domain.Role) error { return nil }

// stubGuard records guard interactions.
type stubGuard struct {
	blocked  bool
	failures int
	cleared  int
	err      error
}

func (g *stubGuard) Blocked(context.Context, string) (bool, error) { return g.blocked, g.err }

func (g *stubGuard) RecordFailure(context.Context, string) error {
	g.failures++
	return g.err
}

func (g *stubGuard) Clear(context.Context, string) error {
	g.cleared++
	return g.err
}
