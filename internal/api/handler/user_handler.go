package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
)

// UserHandler owns the admin-gated account routes.
type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List returns every account.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}  domain.User
// @Router       /api/secu/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns one account by username.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  domain.User
// @Failure      404       {object}  map[string]string
// @Router       /api/secu/users/{username} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	Username string   `json:"username" validate:"required"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Password string   `json:"password" validate:"required,min=12"`
	Roles    []string `json:"roles"`
}

// Create registers an account with an initial role set.
//
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "User details"
// @Success      200   {object}  domain.User
// @Failure      403   {object}  map[string]string
// @Router       /api/secu/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.users.Create(c.Request().Context(), req.Username, req.Email, req.Password, req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

type updateUserRequest struct {
	ID       int64  `json:"id" validate:"gte=0"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// Update edits an account's username and email.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      updateUserRequest  true  "User details"
// @Success      200   {object}  domain.User
// @Failure      404   {object}  map[string]string
// @Router       /api/secu/users [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.users.Update(c.Request().Context(), &domain.User{
		ID:       req.ID,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete removes an account.
//
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/secu/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "user deleted"})
}

type roleGrantRequest struct {
	Role string `json:"role" validate:"required"`
}

// GrantRole assigns a role to a user; assigning the first role validates
// a pending registration.
//
// @Summary      Grant a role
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      int               true  "User id"
// @Param        body  body      roleGrantRequest  true  "Role"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/secu/users/{id}/roles [post]
func (h *UserHandler) GrantRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req roleGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.users.GrantRole(c.Request().Context(), id, req.Role); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "role granted"})
}

// RevokeRole removes a role from a user.
//
// @Summary      Revoke a role
// @Tags         users
// @Produce      json
// @Param        id    path      int     true  "User id"
// @Param        role  path      string  true  "Role name"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/secu/users/{id}/roles/{role} [delete]
func (h *UserHandler) RevokeRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.users.RevokeRole(c.Request().Context(), id, c.Param("role")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "role revoked"})
}

// ListRoles returns the role catalogue, hidden roles included; the UI
// filters on the hide flag.
//
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Success      200  {array}  domain.Role
// @Router       /api/secu/roles [get]
func (h *UserHandler) ListRoles(c echo.Context) error {
	roles, err := h.users.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}
