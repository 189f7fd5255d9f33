package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinPasswordLen    = 12
	MaxPasswordLen    = 72 // bcrypt ignores input past 72 bytes
)

// ErrWeakPassword is returned for passwords that fail the bootstrap policy
var ErrWeakPassword = errors.New("password does not meet policy")

var commonPasswords = map[string]struct{}{
	"password1234":  {},
	"administrator": {},
	"qwertyuiop12":  {},
	"letmein12345":  {},
	"freightdesk1":  {},
	"changeme1234":  {},
}

// dummyHash is compared against when an account does not exist, so lookups that miss
// still pay for one bcrypt comparison.
var dummyHash = mustHash("sentinel-dummy-password", DefaultBcryptCost)

func mustHash(password string, cost int) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		panic(err)
	}
	return h
}

// HashPassword hashes password with the given bcrypt cost (DefaultBcryptCost when zero)
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePassword returns nil when password matches hashedPassword
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CompareDummy burns one bcrypt comparison for a login whose account was not found
func CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// ValidatePassword checks the policy applied to bootstrap admin passwords
func ValidatePassword(password string) error {
	var problems []string

	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("shorter than %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("longer than %d bytes", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		problems = append(problems, "needs upper case, lower case and digits")
	}

	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "too common")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, "; "))
	}
	return nil
}
