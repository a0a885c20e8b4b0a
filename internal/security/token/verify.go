package token

import (
	"crypto/rsa"
	"fmt"
	"regexp"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opendatanode/manager/internal/core/domain"
)

// Compact signed token shape: header.payload.signature.
var jwtShape = regexp.MustCompile(`^[\w-]+\.[\w-]+\.[\w-]+=*$`)

// Session is the identity recovered from a verified session token.
type Session struct {
	User     *domain.User
	Username string
	Roles    []string
}

// Verifier validates inbound session tokens and the key-based admin
// channel.
type Verifier struct {
	secret  []byte
	trusted []*rsa.PublicKey
}

// NewVerifier builds a Verifier sharing the forge's session secret.
// trusted holds one public key per authorized external admin caller; it
// may be empty, which disables the key-based channel.
func NewVerifier(forge *Forge, trusted []*rsa.PublicKey) *Verifier {
	return &Verifier{secret: forge.SessionSecret(), trusted: trusted}
}

// DecodeSession validates a session token's signature and expiry and
// extracts the claimed identity. A malformed token is ErrForbidden; an
// expired or tampered one is ErrSessionExpired so callers clear the
// cookies instead of returning a generic 403.
func (v *Verifier) DecodeSession(raw string) (*Session, error) {
	if raw == "" || !jwtShape.MatchString(raw) {
		return nil, fmt.Errorf("%w: malformed session token", domain.ErrForbidden)
	}

	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrSessionExpired
	}

	session := &Session{User: claims.User, Username: claims.Username, Roles: claims.Roles}
	if session.User != nil && session.Username == "" {
		session.Username = session.User.Username
	}
	if session.Username == "" {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

// VerifyAdminToken authenticates the privileged key-based channel: the
// bearer token is checked against each trusted public key and the first
// key that verifies a non-expired signature wins. The caller resolves
// the result to the super-administrator identity with roles re-fetched
// from the store, so a role change takes effect without re-issuing keys.
func (v *Verifier) VerifyAdminToken(raw string) error {
	if raw == "" || !jwtShape.MatchString(raw) {
		return fmt.Errorf("%w: malformed admin token", domain.ErrInvalidCredentials)
	}
	for _, key := range v.trusted {
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return key, nil
		})
		if err == nil && tok.Valid {
			return nil
		}
	}
	return fmt.Errorf("%w: admin token does not verify against any trusted key", domain.ErrInvalidCredentials)
}
