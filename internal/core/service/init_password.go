package service

import "github.com/google/uuid"

// randomInitPassword generates the throwaway password stored by the
// admin reset operation. The operator communicates a new password to the
// user out of band; the random value only guarantees the old one stops
// working immediately.
func randomInitPassword() string {
	return uuid.NewString()
}
