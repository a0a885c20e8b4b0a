package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/api/metrics"
	apimiddleware "github.com/opendatanode/manager/internal/api/middleware"
	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
	"github.com/opendatanode/manager/internal/security/cookie"
	"github.com/opendatanode/manager/internal/security/token"
)

// AuthHandler owns login, logout, registration and password routes.
type AuthHandler struct {
	auth    ports.AuthService
	forge   *token.Forge
	cookies *cookie.Manager
}

func NewAuthHandler(auth ports.AuthService, forge *token.Forge, cookies *cookie.Manager) *AuthHandler {
	return &AuthHandler{auth: auth, forge: forge, cookies: cookies}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Login authenticates an operator and issues the session cookie pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/front/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.auth.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.cookies.Clear(c)
		metrics.LoginsTotal.WithLabelValues(loginOutcome(err)).Inc()
		return err
	}

	creds, err := h.forge.IssueSessionCredentials(user)
	if err != nil {
		return err
	}
	h.cookies.Issue(c, creds)
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusOK, loginResponse{Username: user.Username, Roles: user.Roles})
}

// Logout clears both session cookies.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/front/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.cookies.Clear(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "logout"})
}

type registerRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required,min=12"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// Register creates a role-less account awaiting admin validation.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/front/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.auth.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

type changePasswordRequest struct {
	Username           string `json:"username" validate:"required"`
	Password           string `json:"password" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=12,nefield=Password"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

// ChangePassword is the self-service password change. The session
// identity must match the target account.
//
// @Summary      Change own password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      changePasswordRequest  true  "Password change"
// @Success      200   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/front/password [put]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if sess := apimiddleware.SessionFromContext(c); sess == nil || sess.Username != req.Username {
		return echo.NewHTTPError(http.StatusForbidden, "can only change your own password")
	}

	if err := h.auth.ChangePassword(c.Request().Context(), req.Username, req.Password, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

// ResetPassword is the admin operation re-initializing a user password.
// The super-user account is refused.
//
// @Summary      Reset a user password
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/secu/users/{id}/reset-password [put]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password reinitialized"})
}

// UserInfo returns the identity bound to the current session.
//
// @Summary      Current session identity
// @Tags         auth
// @Produce      json
// @Success      200  {object}  loginResponse
// @Router       /api/front/user-info [get]
func (h *AuthHandler) UserInfo(c echo.Context) error {
	sess := apimiddleware.SessionFromContext(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return c.JSON(http.StatusOK, loginResponse{Username: sess.Username, Roles: sess.Roles})
}

func loginOutcome(err error) string {
	var pending *domain.AdminValidationError
	switch {
	case errors.As(err, &pending):
		return "pending_validation"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "throttled"
	default:
		return "invalid_credentials"
	}
}
