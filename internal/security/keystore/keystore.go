// Package keystore loads and caches the asymmetric keys used to sign
// backend-to-backend credentials and to verify the key-based admin
// channel.
package keystore

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opendatanode/manager/internal/core/domain"
)

// Logical key names. Aliases accepted by PrivateKey resolve to one of
// these before the cache lookup, so "api" and "catalog" share one entry.
const (
	KeyCatalog = "catalog"
	KeyStorage = "storage"
	KeyDefault = "default"
)

// Paths maps logical key names to private key file locations. An empty
// service-specific path falls back to Default.
type Paths struct {
	Catalog string
	Storage string
	Default string
}

// Store caches parsed private keys for the process lifetime. Safe for
// concurrent use; each key file is read at most once.
type Store struct {
	paths Paths

	mu    sync.Mutex
	cache map[string]*rsa.PrivateKey
}

func New(paths Paths) *Store {
	return &Store{paths: paths, cache: make(map[string]*rsa.PrivateKey)}
}

// PrivateKey resolves a logical name to a cached private key, loading it
// from the configured path on first use. A missing or unparsable key
// file is a configuration error: the calling request fails, nothing is
// retried.
func (s *Store) PrivateKey(name string) (*rsa.PrivateKey, error) {
	name = canonicalName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.cache[name]; ok {
		return key, nil
	}

	path := s.keyPath(name)
	if path == "" {
		return nil, fmt.Errorf("%w: no private key configured for %q", domain.ErrConfiguration, name)
	}
	key, err := loadPrivateKey(path)
	if err != nil {
		return nil, fmt.Errorf("%w: private key %q: %v", domain.ErrConfiguration, name, err)
	}
	s.cache[name] = key
	return key, nil
}

func canonicalName(name string) string {
	switch name {
	case KeyCatalog, "api", "api_key", "catalog_key":
		return KeyCatalog
	case KeyStorage, "media", "media_key", "storage_key":
		return KeyStorage
	default:
		return KeyDefault
	}
}

func (s *Store) keyPath(name string) string {
	switch name {
	case KeyCatalog:
		if s.paths.Catalog != "" {
			return s.paths.Catalog
		}
	case KeyStorage:
		if s.paths.Storage != "" {
			return s.paths.Storage
		}
	}
	return s.paths.Default
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	return key, nil
}

// TrustedPublicKeys loads every PEM public key under dir. Each key
// authorizes one external admin caller on the key-based channel.
func TrustedPublicKeys(dir string) ([]*rsa.PublicKey, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: trusted key dir: %v", domain.ErrConfiguration, err)
	}
	var keys []*rsa.PublicKey
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".pem", ".pub":
		default:
			continue
		}
		pem, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: trusted key %s: %v", domain.ErrConfiguration, e.Name(), err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted key %s: %v", domain.ErrConfiguration, e.Name(), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
