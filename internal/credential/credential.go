// Package credential wraps one-way password hashing. Plaintext and hashes
// never leave this package through logs or errors.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and verifies salted password hashes.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. Cost outside the bcrypt range falls back to
// the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a fresh salted hash. Two calls with identical input produce
// different hashes; verification remains deterministic.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("credential: hash: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches storedHash. Pure, no side effects.
func (h *Hasher) Verify(storedHash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}
