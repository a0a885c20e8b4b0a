package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
	"github.com/opendatanode/manager/internal/security/cookie"
	"github.com/opendatanode/manager/internal/security/token"
)

// SessionOrKey authenticates a request either from the session cookies
// or, when a bearer token is presented without a session, through the
// key-based admin channel: the token must verify against one of the
// locally trusted public keys. A verified key resolves to the built-in
// super-administrator with its roles re-fetched from the store, so role
// changes apply without re-issuing external keys.
func SessionOrKey(verifier *token.Verifier, cookies *cookie.Manager, users ports.UserRepository) echo.MiddlewareFunc {
	sessionAuth := Session(verifier, cookies)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		keyFallback := func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
			}
			// A bearer token may also carry a plain session (automation
			// reusing a login token); try that before the key channel.
			if sess, err := verifier.DecodeSession(raw); err == nil {
				c.Set(CtxSession, sess)
				c.Set(CtxUsername, sess.Username)
				return next(c)
			}
			if err := verifier.VerifyAdminToken(raw); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
			}

			su, err := users.FindByID(c.Request().Context(), domain.SuperUserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "super user not provisioned")
			}
			c.Set(CtxSession, &token.Session{User: su, Username: su.Username, Roles: su.Roles})
			c.Set(CtxUsername, su.Username)
			return next(c)
		}

		withSession := sessionAuth(next)
		return func(c echo.Context) error {
			if cookie.Read(c, cookies.ConsoleName()) != "" || cookie.Read(c, cookies.FrontName()) != "" {
				return withSession(c)
			}
			return keyFallback(c)
		}
	}
}
