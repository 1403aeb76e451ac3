package auth

import (
	"unicode/utf16"
)

const (
	// minPasswordChars is counted in UTF-16 code units, so characters
	// outside the Basic Multilingual Plane such as emoji count as two.
	minPasswordChars = 8
	// bcrypt ignores everything after the first 72 bytes and
	// golang.org/x/crypto/bcrypt refuses longer input.
	maxPasswordBytes = 72
)

// Reasons reported by PolicyValidator, in the order the rules are checked.
const (
	ReasonTooShort    = "Password must be at least 8 characters"
	ReasonNoUppercase = "Password must contain at least one uppercase letter"
	ReasonNoLowercase = "Password must contain at least one lowercase letter"
	ReasonNoDigit     = "Password must contain at least one number"
	ReasonNoSpecial   = "Password must contain at least one special character"
	ReasonTooLong     = "Password must be at most 72 bytes"
)

// ValidationResult is the outcome of validating a candidate password.
// Reason is only set when Valid is false.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// PasswordValidator checks candidate passwords against a policy.
type PasswordValidator interface {
	Validate(candidate string) ValidationResult
}

// PolicyValidator requires passwords of at least 8 characters with an
// uppercase letter, a lowercase letter, a digit and a special character.
// The first failing rule is reported.
type PolicyValidator struct{}

func (PolicyValidator) Validate(candidate string) ValidationResult {
	var upper, lower, digit, special bool
	var units int
	for _, r := range candidate {
		units += utf16.RuneLen(r)

		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	switch {
	case units < minPasswordChars:
		return invalid(ReasonTooShort)
	case !upper:
		return invalid(ReasonNoUppercase)
	case !lower:
		return invalid(ReasonNoLowercase)
	case !digit:
		return invalid(ReasonNoDigit)
	case !special:
		return invalid(ReasonNoSpecial)
	case len(candidate) > maxPasswordBytes:
		return invalid(ReasonTooLong)
	}

	return ValidationResult{Valid: true}
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}
