package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/security/cookie"
	"github.com/opendatanode/manager/internal/security/token"
)

// Context keys set by the authentication middlewares.
const (
	CtxSession  = "session"
	CtxUsername = "username"
)

// Session authenticates a request from the session cookie pair or a
// bearer header, in that order. An expired or tampered token clears both
// cookies and answers 401: an implicit logout, never a 500.
func Session(verifier *token.Verifier, cookies *cookie.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := cookie.Read(c, cookies.ConsoleName())
			if raw == "" {
				raw = cookie.Read(c, cookies.FrontName())
			}
			if raw == "" {
				raw = bearerToken(c)
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
			}

			sess, err := verifier.DecodeSession(raw)
			if err != nil {
				cookies.Clear(c)
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
			}

			c.Set(CtxSession, sess)
			c.Set(CtxUsername, sess.Username)
			return next(c)
		}
	}
}

// SessionFromContext returns the session set by an authentication
// middleware, or nil when the request is unauthenticated.
func SessionFromContext(c echo.Context) *token.Session {
	sess, _ := c.Get(CtxSession).(*token.Session)
	return sess
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
