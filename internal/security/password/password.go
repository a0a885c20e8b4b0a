// Package password implements the operator password hashing schemes.
//
// The current scheme is scrypt. Hashes produced by the deprecated bcrypt
// scheme are still verifiable and are transparently re-hashed under
// scrypt on the next successful login.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

const (
	scryptPrefix = "$scrypt$"
	// Bcrypt hashes start with a $2 version marker ($2a$, $2b$, ...).
	legacyPrefix = "$2"

	scryptN       = 32768
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 32
	scryptSaltLen = 16
)

// Hash derives an scrypt hash of the given password.
func Hash(password string) (string, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	return scryptPrefix +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(key), nil
}

// Match reports whether the password matches the stored hash, whichever
// scheme produced it.
func Match(password, stored string) bool {
	if IsLegacy(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return matchScrypt(password, stored)
}

// IsLegacy reports whether the stored hash was produced by the
// deprecated bcrypt scheme.
func IsLegacy(stored string) bool {
	return strings.HasPrefix(stored, legacyPrefix)
}

func matchScrypt(password, stored string) bool {
	rest, ok := strings.CutPrefix(stored, scryptPrefix)
	if !ok {
		return false
	}
	parts := strings.SplitN(rest, "$", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
