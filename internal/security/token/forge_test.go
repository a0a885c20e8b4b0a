package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/security/keystore"
)

func testKeystore(t *testing.T) (*keystore.Store, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "default.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return keystore.New(keystore.Paths{Default: path}), key
}

func testUser() *domain.User {
	return &domain.User{
		ID:           7,
		Username:     "alice",
		Email:        "alice@example.org",
		PasswordHash: "$scrypt$should-never-appear",
		Roles:        []string{domain.RoleEditor},
	}
}

func TestSessionCredentialsRoundTrip(t *testing.T) {
	keys, _ := testKeystore(t)
	forge := NewForge(keys, time.Minute, time.Minute, nil)
	verifier := NewVerifier(forge, nil)

	creds, err := forge.IssueSessionCredentials(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sess, err := verifier.DecodeSession(creds.ConsoleToken)
	if err != nil {
		t.Fatalf("decode console token: %v", err)
	}
	if sess.Username != "alice" {
		t.Fatalf("expected username alice, got %q", sess.Username)
	}
	if len(sess.Roles) != 1 || sess.Roles[0] != domain.RoleEditor {
		t.Fatalf("roles not recovered: %v", sess.Roles)
	}
	if sess.User == nil || sess.User.PasswordHash != "" {
		t.Fatalf("password hash leaked into session token")
	}

	front, err := verifier.DecodeSession(creds.FrontToken)
	if err != nil {
		t.Fatalf("decode front token: %v", err)
	}
	if front.Username != "alice" || front.User != nil {
		t.Fatalf("front token should carry username and roles only")
	}
}

func TestSessionTokenNeverContainsPassword(t *testing.T) {
	keys, _ := testKeystore(t)
	forge := NewForge(keys, time.Minute, time.Minute, nil)

	creds, err := forge.IssueSessionCredentials(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, raw := range []string{creds.ConsoleToken, creds.FrontToken} {
		claims := jwt.MapClaims{}
		if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return forge.SessionSecret(), nil
		}); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if user, ok := claims["user"].(map[string]any); ok {
			if _, present := user["password_hash"]; present {
				t.Fatalf("password field present in token payload")
			}
		}
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	keys, _ := testKeystore(t)
	forge := NewForge(keys, time.Millisecond, time.Minute, nil)
	verifier := NewVerifier(forge, nil)

	creds, err := forge.IssueSessionCredentials(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := verifier.DecodeSession(creds.ConsoleToken); err == nil {
		t.Fatalf("expired session accepted")
	}
}

func TestMalformedSessionRejected(t *testing.T) {
	keys, _ := testKeystore(t)
	forge := NewForge(keys, time.Minute, time.Minute, nil)
	verifier := NewVerifier(forge, nil)

	for _, raw := range []string{"", "not-a-token", "a.b", "a b c.d.e"} {
		if _, err := verifier.DecodeSession(raw); err == nil {
			t.Fatalf("malformed token %q accepted", raw)
		}
	}
}

func TestServiceCredentialCachedUntilExpiry(t *testing.T) {
	keys, _ := testKeystore(t)
	forge := NewForge(keys, time.Minute, time.Minute, map[string]string{"catalog": "manager-1"})

	first, err := forge.ServiceCredential("catalog", Scope{})
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	second, err := forge.ServiceCredential("catalog", Scope{})
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	if first != second {
		t.Fatalf("two forges within the TTL returned different tokens")
	}
}

func TestServiceCredentialRegeneratedAfterExpiry(t *testing.T) {
	keys, _ := testKeystore(t)
	forge := NewForge(keys, time.Minute, time.Millisecond, nil)

	first, err := forge.ServiceCredential("storage", Scope{})
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := forge.ServiceCredential("storage", Scope{})
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	if first == second {
		t.Fatalf("expired token served from cache")
	}
}

func TestScopedCredentialSeparateFromCoarse(t *testing.T) {
	keys, priv := testKeystore(t)
	forge := NewForge(keys, time.Minute, time.Minute, nil)

	coarse, err := forge.ServiceCredential("catalog", Scope{})
	if err != nil {
		t.Fatalf("forge coarse: %v", err)
	}
	scoped, err := forge.ServiceCredential("catalog", Scope{Method: "GET", URL: "https://catalog/api/v1/resources"})
	if err != nil {
		t.Fatalf("forge scoped: %v", err)
	}
	if coarse == scoped {
		t.Fatalf("scoped credential shared with coarse cache entry")
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(scoped, claims, func(*jwt.Token) (any, error) {
		return &priv.PublicKey, nil
	}); err != nil {
		t.Fatalf("verify scoped token: %v", err)
	}
	if claims["req_mtd"] != "GET" {
		t.Fatalf("expected req_mtd GET, got %v", claims["req_mtd"])
	}

	coarseClaims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(coarse, coarseClaims, func(*jwt.Token) (any, error) {
		return &priv.PublicKey, nil
	}); err != nil {
		t.Fatalf("verify coarse token: %v", err)
	}
	if coarseClaims["req_mtd"] != "all" || coarseClaims["req_url"] != "all" {
		t.Fatalf("coarse token not scoped to all/all: %v", coarseClaims)
	}
}
