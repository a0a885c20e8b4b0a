package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/api/metrics"
	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
	"github.com/opendatanode/manager/internal/security/cookie"
)

// RoleGate enforces role-based access on an authenticated request. Roles
// are always re-fetched from the store, never trusted from the token, so
// a role revoked mid-session takes effect on the very next request.
// SuperAdmin satisfies every gate. A session whose account no longer
// exists is treated as expired: cookies cleared, 401, not a 403 loop.
func RoleGate(users ports.UserRepository, cookies *cookie.Manager, requiredRoles ...string) echo.MiddlewareFunc {
	anyRole := len(requiredRoles) == 1 && requiredRoles[0] == domain.RoleAny

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c)
			if sess == nil || sess.Username == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "user info required")
			}
			if anyRole {
				return next(c)
			}

			roles, err := users.RolesByUsername(c.Request().Context(), sess.Username)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					cookies.Clear(c)
					return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
				}
				return err
			}

			if !allowed(roles, requiredRoles) {
				metrics.GateDenialsTotal.WithLabelValues(c.Path()).Inc()
				return echo.NewHTTPError(http.StatusForbidden, "insufficient credentials")
			}

			sess.Roles = roles
			return next(c)
		}
	}
}

func allowed(userRoles, requiredRoles []string) bool {
	for _, ur := range userRoles {
		if ur == domain.RoleSuperAdmin {
			return true
		}
		for _, rr := range requiredRoles {
			if ur == rr {
				return true
			}
		}
	}
	return false
}
