package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opendatanode/manager/internal/security/token"
)

func testContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return e.NewContext(req, rec), rec
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, ck := range rec.Result().Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func TestIssueSetsPairWithSharedExpiry(t *testing.T) {
	m := NewManager("", "", "", false)
	c, rec := testContext()
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	m.Issue(c, &token.SessionCredentials{ConsoleToken: "console-jwt", FrontToken: "front-jwt", ExpiresAt: exp})

	byName := cookiesByName(rec)
	console, front := byName[DefaultConsoleCookie], byName[DefaultFrontCookie]
	if console == nil || front == nil {
		t.Fatalf("cookie pair not set: %v", rec.Result().Cookies())
	}
	if console.Value != "console-jwt" || front.Value != "front-jwt" {
		t.Fatalf("unexpected values: %q %q", console.Value, front.Value)
	}
	if !console.Expires.Equal(front.Expires) {
		t.Fatalf("cookie expiries differ: %v vs %v", console.Expires, front.Expires)
	}
}

func TestProductionCookieAttributes(t *testing.T) {
	m := NewManager("", "", "node.example.org", true)
	c, rec := testContext()

	m.Issue(c, &token.SessionCredentials{ConsoleToken: "a", FrontToken: "b", ExpiresAt: time.Now().Add(time.Minute)})

	byName := cookiesByName(rec)
	console, front := byName[DefaultConsoleCookie], byName[DefaultFrontCookie]
	if !console.Secure || !front.Secure {
		t.Fatalf("cookies not marked Secure in production mode")
	}
	if !console.HttpOnly {
		t.Fatalf("server cookie must be httpOnly in production mode")
	}
	// The front cookie stays readable by the UI.
	if front.HttpOnly {
		t.Fatalf("front cookie must remain script-readable")
	}
}

func TestDevelopmentCookiesSkipHTTPOnly(t *testing.T) {
	m := NewManager("", "", "", false)
	c, rec := testContext()

	m.Issue(c, &token.SessionCredentials{ConsoleToken: "a", FrontToken: "b", ExpiresAt: time.Now().Add(time.Minute)})

	for _, ck := range rec.Result().Cookies() {
		if ck.Secure || ck.HttpOnly {
			t.Fatalf("development cookies must work without TLS: %+v", ck)
		}
	}
}

func TestClearExpiresBothCookies(t *testing.T) {
	m := NewManager("sessionA", "sessionB", "", false)
	c, rec := testContext()

	m.Clear(c)

	byName := cookiesByName(rec)
	for _, name := range []string{"sessionA", "sessionB"} {
		ck := byName[name]
		if ck == nil {
			t.Fatalf("cookie %q not cleared", name)
		}
		if ck.Value != "" || !ck.Expires.Before(time.Now()) {
			t.Fatalf("cookie %q still live: %+v", name, ck)
		}
	}
}

func TestReadMissingCookie(t *testing.T) {
	c, _ := testContext()
	if got := Read(c, "absent"); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}
