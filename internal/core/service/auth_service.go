package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
	"github.com/opendatanode/manager/internal/security/password"
)

// AuthService implements operator authentication against the user store.
type AuthService struct {
	users ports.UserRepository
	guard ports.LoginGuard
	log   zerolog.Logger
}

func NewAuthService(users ports.UserRepository, guard ports.LoginGuard, log zerolog.Logger) *AuthService {
	return &AuthService{users: users, guard: guard, log: log}
}

// Authenticate checks the password against the stored hash and loads the
// user's roles. A correct password on a hash produced by the deprecated
// scheme triggers a transparent re-hash under the current scheme; a
// failure of that migration is logged and never fails the login.
func (s *AuthService) Authenticate(ctx context.Context, username, pass string) (*domain.User, error) {
	if username == "" || pass == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.guard != nil {
		blocked, err := s.guard.Blocked(ctx, username)
		if err != nil {
			s.log.Warn().Err(err).Msg("login guard unavailable")
		} else if blocked {
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recordFailure(ctx, username)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Match(pass, user.PasswordHash) {
		s.recordFailure(ctx, username)
		return nil, domain.ErrInvalidCredentials
	}

	if password.IsLegacy(user.PasswordHash) {
		s.upgradeHash(ctx, username, pass)
	}

	roles, err := s.users.RolesByUsername(ctx, username)
	if err != nil || len(roles) == 0 {
		return nil, &domain.AdminValidationError{Username: username}
	}
	user.Roles = roles

	if s.guard != nil {
		if err := s.guard.Clear(ctx, username); err != nil {
			s.log.Warn().Err(err).Msg("could not clear login guard")
		}
	}
	return user, nil
}

// Register creates a role-less account. It stays unusable until an
// administrator assigns a role.
func (s *AuthService) Register(ctx context.Context, username, email, pass string) (*domain.User, error) {
	if username == "" || pass == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrBadRequest)
	}
	hash, err := password.Hash(pass)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
}

// ChangePassword is the self-service operation: the current password
// must verify before the new one is stored.
func (s *AuthService) ChangePassword(ctx context.Context, username, pass, newPass string) error {
	if username == "" || pass == "" || newPass == "" || newPass == pass {
		return fmt.Errorf("%w: password change prerequisites not met", domain.ErrBadRequest)
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return domain.ErrInvalidCredentials
	}
	if !password.Match(pass, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	hash, err := password.Hash(newPass)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, username, hash)
}

// ResetPassword re-initializes a user's password with a random one that
// must be changed on first login. The super-user's password can only be
// set through startup provisioning.
func (s *AuthService) ResetPassword(ctx context.Context, id int64) error {
	if id == domain.SuperUserID {
		return fmt.Errorf("%w: the super-user password cannot be reset through the API", domain.ErrInvalidCredentials)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := password.Hash(randomInitPassword())
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.Username, hash)
}

func (s *AuthService) upgradeHash(ctx context.Context, username, pass string) {
	hash, err := password.Hash(pass)
	if err == nil {
		err = s.users.UpdatePassword(ctx, username, hash)
	}
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("legacy password hash migration failed")
		return
	}
	s.log.Info().Str("username", username).Msg("password hash upgraded")
}

func (s *AuthService) recordFailure(ctx context.Context, username string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.RecordFailure(ctx, username); err != nil {
		s.log.Warn().Err(err).Msg("could not record failed login")
	}
}
