package auth

import (
	"fmt"
	"log/slog"

	"github.com/willemschots/sessiongate/internal/krypto"
)

// Credential is the stored digest of a user's password.
//
// It is only handed to PasswordHasher.Verify and the repositories. It renders
// as krypto.SecretMarker when printed, marshalled or logged.
type Credential struct {
	digest string
}

// NewCredential wraps a digest as produced by a PasswordHasher.
func NewCredential(digest string) Credential {
	return Credential{
		digest: digest,
	}
}

// IsZero reports whether c holds no digest.
func (c Credential) IsZero() bool {
	return c.digest == ""
}

// Digest returns the encoded digest so repositories can store it.
func (c Credential) Digest() string {
	return c.digest
}

func (c Credential) Format(f fmt.State, verb rune) {
	f.Write([]byte(krypto.SecretMarker))
}

func (c Credential) MarshalText() ([]byte, error) {
	return []byte(krypto.SecretMarker), nil
}

func (c Credential) LogValue() slog.Value {
	return slog.StringValue(krypto.SecretMarker)
}
