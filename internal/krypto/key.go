package krypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretLen is the minimum length in bytes of a secret that keys
	// are derived from.
	MinSecretLen = 32

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var (
	ErrInvalidKey = errors.New("invalid key")
)

type Key struct {
	value []byte
}

// DeriveKey derives a key of n bytes from the secret using HKDF-SHA256.
// Different purposes result in independent keys, so a single configured
// secret can be used for both signing and encryption.
func DeriveKey(secret Secret, purpose string, n int) (Key, error) {
	if len(secret.value) < MinSecretLen || n <= 0 {
		return Key{}, ErrInvalidKey
	}

	k := make([]byte, n)
	r := hkdf.New(sha256.New, secret.value, nil, []byte(purpose))
	if _, err := io.ReadFull(r, k); err != nil {
		return Key{}, fmt.Errorf("failed to derive key: %w", err)
	}

	return Key{
		value: k,
	}, nil
}

func (k Key) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// SecretValue returns the key as a byte slice. This is provided
// as an escape hatch for cases where the key needs to be provided
// to third party packages or libraries.
func (k Key) SecretValue() []byte {
	return k.value
}
