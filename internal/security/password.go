package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password HashPassword accepts.
const MinPasswordLength = 8

// ErrWeakPassword is returned for passwords bcrypt would accept but the
// API should not.
var ErrWeakPassword = errors.New("password too weak")

// HashPassword validates pw and returns its bcrypt hash.
func HashPassword(pw string) (string, error) {
	if n := utf8.RuneCountInString(pw); n < MinPasswordLength {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrWeakPassword, n, MinPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes
	if len(pw) > 72 {
		return "", fmt.Errorf("%w: longer than 72 bytes", ErrWeakPassword)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches the bcrypt hash.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NewToken returns n random bytes encoded for use in a cookie.
func NewToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
