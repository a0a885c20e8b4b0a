// Package cookie issues, refreshes and clears the cooperating session
// cookie pair: a server-held httpOnly cookie and a UI-readable one the
// front-end uses for conditional rendering. Both are signed with the
// same secret and share one expiry.
package cookie

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/security/token"
)

// Default cookie names; configurable but stable per deployment.
const (
	DefaultConsoleCookie = "consoleToken"
	DefaultFrontCookie   = "frontToken"
)

// Manager writes the session cookie pair onto responses.
type Manager struct {
	consoleName string
	frontName   string
	domain      string
	secure      bool
}

// NewManager builds a Manager. secure controls the Secure and HttpOnly
// attributes: enabled in production-like environments, disabled for
// local development so the console can run without TLS.
func NewManager(consoleName, frontName, domain string, secure bool) *Manager {
	if consoleName == "" {
		consoleName = DefaultConsoleCookie
	}
	if frontName == "" {
		frontName = DefaultFrontCookie
	}
	return &Manager{consoleName: consoleName, frontName: frontName, domain: domain, secure: secure}
}

// ConsoleName returns the name of the server-held cookie.
func (m *Manager) ConsoleName() string { return m.consoleName }

// FrontName returns the name of the UI-readable cookie.
func (m *Manager) FrontName() string { return m.frontName }

// Issue sets both cookies on the response with the credentials' expiry.
// Called on login and on every successful protected response to slide
// the expiry window.
func (m *Manager) Issue(c echo.Context, creds *token.SessionCredentials) {
	c.SetCookie(m.cookie(m.consoleName, creds.ConsoleToken, creds.ExpiresAt, true))
	c.SetCookie(m.cookie(m.frontName, creds.FrontToken, creds.ExpiresAt, false))
}

// Clear expires both cookies immediately (logout, or implicit logout on
// an expired or orphaned session).
func (m *Manager) Clear(c echo.Context) {
	epoch := time.Unix(0, 0)
	c.SetCookie(m.cookie(m.consoleName, "", epoch, true))
	c.SetCookie(m.cookie(m.frontName, "", epoch, false))
}

// Read returns the raw token carried by the named request cookie, or ""
// when absent.
func Read(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil || ck == nil {
		return ""
	}
	return ck.Value
}

func (m *Manager) cookie(name, value string, expires time.Time, serverOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.domain,
		Expires:  expires,
		SameSite: http.SameSiteStrictMode,
		Secure:   m.secure,
		// The front cookie must stay readable by the UI.
		HttpOnly: serverOnly && m.secure,
	}
}
