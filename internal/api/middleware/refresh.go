package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opendatanode/manager/internal/security/cookie"
	"github.com/opendatanode/manager/internal/security/token"
)

// RefreshSession re-issues the session cookie pair on authenticated
// requests, sliding the expiry window. A refresh failure is logged and
// never fails the request. Registered after Session so the identity is
// already established; cookies set here are superseded by any Clear a
// later gate performs (the later Set-Cookie header wins).
func RefreshSession(forge *token.Forge, cookies *cookie.Manager, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c)
			if sess != nil && sess.User != nil {
				creds, err := forge.IssueSessionCredentials(sess.User)
				if err != nil {
					log.Warn().Err(err).Msg("session refresh failed")
				} else {
					cookies.Issue(c, creds)
				}
			}
			return next(c)
		}
	}
}
