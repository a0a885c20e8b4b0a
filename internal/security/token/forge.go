// Package token builds and validates the two credential families of the
// console: HS256 session tokens held by browsers and RS256 service
// credentials used for backend-to-backend calls.
package token

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/security/keystore"
)

// SubjectOffset is added to delegated end-user ids so they cannot
// collide with the downstream service's own id space.
const SubjectOffset = 5000

// sessionClaims is the payload of both session cookies. The server-held
// cookie carries the full user snapshot; the UI-readable one only
// username and roles. Neither ever carries a password.
type sessionClaims struct {
	User     *domain.User `json:"user,omitempty"`
	Username string       `json:"username,omitempty"`
	Roles    []string     `json:"roles"`
	jwt.RegisteredClaims
}

// serviceClaims is the payload of a backend-to-backend credential. The
// method/URL pair narrows the token to one call; "all"/"all" is the
// coarse scope reused across calls.
type serviceClaims struct {
	ClientID string `json:"client_id"`
	Method   string `json:"req_mtd"`
	URL      string `json:"req_url"`
	jwt.RegisteredClaims
}

// SessionCredentials is the cookie pair issued after login.
type SessionCredentials struct {
	ConsoleToken string
	FrontToken   string
	ExpiresAt    time.Time
}

// Scope restricts a service credential to one method/URL pair.
type Scope struct {
	Method string
	URL    string
}

const scopeAll = "all"

func (s Scope) key() string {
	if s.Method == "" && s.URL == "" {
		return scopeAll + "|" + scopeAll
	}
	return s.Method + "|" + s.URL
}

type cachedToken struct {
	token string
	exp   time.Time
}

// Forge issues session and service credentials. The session secret is
// generated once per process and held in memory only: a restart
// invalidates every outstanding session.
type Forge struct {
	keys       *keystore.Store
	secret     []byte
	sessionTTL time.Duration
	serviceTTL time.Duration
	clientIDs  map[string]string

	mu    sync.Mutex
	cache map[string]cachedToken
}

// NewForge creates a Forge with a fresh random session secret.
// clientIDs maps downstream service names to the identifier the console
// presents in the client_id claim.
func NewForge(keys *keystore.Store, sessionTTL, serviceTTL time.Duration, clientIDs map[string]string) *Forge {
	if sessionTTL <= 0 {
		sessionTTL = 600 * time.Second
	}
	if serviceTTL <= 0 {
		serviceTTL = 60 * time.Second
	}
	return &Forge{
		keys:       keys,
		secret:     []byte(uuid.NewString() + uuid.NewString()),
		sessionTTL: sessionTTL,
		serviceTTL: serviceTTL,
		clientIDs:  clientIDs,
		cache:      make(map[string]cachedToken),
	}
}

// SessionSecret exposes the signing secret to the verifier.
func (f *Forge) SessionSecret() []byte { return f.secret }

// SessionTTL returns the configured session lifetime.
func (f *Forge) SessionTTL() time.Duration { return f.sessionTTL }

// IssueSessionCredentials signs the cookie pair for a logged-in user.
// The snapshot embedded in the console token never includes the
// password hash (it is excluded from the User JSON encoding).
func (f *Forge) IssueSessionCredentials(user *domain.User) (*SessionCredentials, error) {
	now := time.Now()
	exp := now.Add(f.sessionTTL)
	registered := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	snapshot := *user
	snapshot.PasswordHash = ""

	console, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		User:             &snapshot,
		Roles:            user.Roles,
		RegisteredClaims: registered,
	}).SignedString(f.secret)
	if err != nil {
		return nil, fmt.Errorf("sign console token: %w", err)
	}

	front, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Username:         user.Username,
		Roles:            user.Roles,
		RegisteredClaims: registered,
	}).SignedString(f.secret)
	if err != nil {
		return nil, fmt.Errorf("sign front token: %w", err)
	}

	return &SessionCredentials{ConsoleToken: console, FrontToken: front, ExpiresAt: exp}, nil
}

// ServiceCredential returns a signed short-lived token identifying the
// console to the given downstream service, scoped to the method/URL pair
// or to "all"/"all" for the zero Scope. Tokens are cached per service
// and scope and reused until their exp passes.
func (f *Forge) ServiceCredential(service string, scope Scope) (string, error) {
	key := service + "|" + scope.key()

	f.mu.Lock()
	cached, ok := f.cache[key]
	f.mu.Unlock()
	if ok && time.Now().Before(cached.exp) {
		return cached.token, nil
	}

	priv, err := f.keys.PrivateKey(service)
	if err != nil {
		return "", err
	}

	now := time.Now()
	exp := now.Add(f.serviceTTL)
	method, url := scope.Method, scope.URL
	if method == "" && url == "" {
		method, url = scopeAll, scopeAll
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, serviceClaims{
		ClientID: f.clientIDs[service],
		Method:   method,
		URL:      url,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   "auth",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("sign %s credential: %w", service, err)
	}

	f.mu.Lock()
	f.cache[key] = cachedToken{token: signed, exp: exp}
	f.mu.Unlock()
	return signed, nil
}

// AuthorizationHeader returns the Bearer header value for the coarse
// credential of the given service.
func (f *Forge) AuthorizationHeader(service string) (string, error) {
	tok, err := f.ServiceCredential(service, Scope{})
	if err != nil {
		return "", err
	}
	return "Bearer " + tok, nil
}
