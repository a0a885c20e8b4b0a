package downstream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/security/keystore"
	"github.com/opendatanode/manager/internal/security/token"
)

func newTestForge(t *testing.T) *token.Forge {
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
	return token.NewForge(keystore.New(keystore.Paths{Default: path}), time.Minute, time.Minute, nil)
}

func TestGetJSONSendsBearerCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 3}`))
	}))
	defer srv.Close()

	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())

	var out struct {
		Count int `json:"count"`
	}
	if err := client.GetJSON(context.Background(), "/api/v1/resources", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Count != 3 {
		t.Fatalf("response not decoded: %+v", out)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") || len(gotAuth) < 20 {
		t.Fatalf("request not authenticated, header %q", gotAuth)
	}
}

func TestConnectionRefusedIsUnreachable(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead := srv.URL
	srv.Close()

	client := NewClient(ServiceStorage, dead, "/api/version", newTestForge(t), zerolog.Nop())

	err := client.GetJSON(context.Background(), "/api/v1/media", &struct{}{})
	var unreachable *domain.UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
	if unreachable.Service != ServiceStorage {
		t.Fatalf("error names %q, want %q", unreachable.Service, ServiceStorage)
	}
	if !strings.Contains(unreachable.Error(), "storage") {
		t.Fatalf("operator message does not name the service: %v", unreachable)
	}
}

func TestBadGatewayIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())

	err := client.GetJSON(context.Background(), "/api/v1/resources", &struct{}{})
	var unreachable *domain.UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestErrorStatusCarriesDownstreamMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "no such resource"}`))
	}))
	defer srv.Close()

	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())

	err := client.GetJSON(context.Background(), "/api/v1/resources/42", &struct{}{})
	var de *domain.DownstreamError
	if !errors.As(err, &de) {
		t.Fatalf("expected downstream error, got %v", err)
	}
	if de.Status != http.StatusNotFound || de.Message != "no such resource" {
		t.Fatalf("unexpected downstream error: %+v", de)
	}
}

func TestPassthroughRelaysStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "gone"}`))
			return
		}
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())

	body, status, err := client.Passthrough(context.Background(), http.MethodGet, "/api/v1/resources", nil)
	if err != nil || status != http.StatusOK {
		t.Fatalf("passthrough: %v status %d", err, status)
	}
	if string(body) != `{"items": []}` {
		t.Fatalf("body not relayed: %q", body)
	}

	// Error statuses are relayed to the caller, not turned into errors.
	body, status, err = client.Passthrough(context.Background(), http.MethodGet, "/missing", nil)
	if err != nil {
		t.Fatalf("passthrough error status: %v", err)
	}
	if status != http.StatusNotFound || string(body) != "gone" {
		t.Fatalf("expected 404/gone, got %d %q", status, body)
	}
}

func TestPublicURLTrimsQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("\"https://data.example.org/catalog\"\n"))
	}))
	defer srv.Close()

	client := NewClient(ServiceCatalog, srv.URL, "/api/version", newTestForge(t), zerolog.Nop())

	url, err := client.PublicURL(context.Background())
	if err != nil {
		t.Fatalf("public url: %v", err)
	}
	if url != "https://data.example.org/catalog" {
		t.Fatalf("unexpected url %q", url)
	}
}
