// Package password provides bcrypt hashing and verification for user
// credentials.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = bcrypt.DefaultCost

// Hash hashes the plaintext password with bcrypt.
func Hash(plain string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt hash failed: %w", err)
	}
	return hashed, nil
}

// Verify reports whether plain matches the bcrypt hash.
func Verify(plain string, hashed []byte) bool {
	return bcrypt.CompareHashAndPassword(hashed, []byte(plain)) == nil
}
