package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used by NewBcryptHasher.
const DefaultBcryptCost = 12

// PasswordHasher hashes plaintext passwords and verifies them against
// previously created credentials.
type PasswordHasher interface {
	// Hash returns a salted digest of plaintext. Hashing the same plaintext
	// twice results in different credentials.
	Hash(plaintext string) (Credential, error)
	// Verify reports whether plaintext matches cred. Malformed credentials
	// never match.
	Verify(plaintext string, cred Credential) bool
}

// BcryptHasher is a PasswordHasher backed by bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using DefaultBcryptCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: DefaultBcryptCost}
}

// NewBcryptHasherWithCost returns a hasher with a custom work factor,
// tests use bcrypt.MinCost to stay fast.
func NewBcryptHasherWithCost(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(plaintext string) (Credential, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to hash password: %w", err)
	}

	return NewCredential(string(digest)), nil
}

func (h *BcryptHasher) Verify(plaintext string, cred Credential) bool {
	if cred.IsZero() {
		return false
	}

	// CompareHashAndPassword compares in constant time and returns an error
	// for malformed digests.
	return bcrypt.CompareHashAndPassword([]byte(cred.digest), []byte(plaintext)) == nil
}
