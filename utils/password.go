package utils

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Account password policy. bcrypt ignores everything past 72 bytes, so longer
// passwords are refused instead of silently truncated.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// ErrPasswordPolicy is returned for passwords outside the account policy.
var ErrPasswordPolicy = errors.New("password must be 6-72 characters")

// PasswordCost is the bcrypt work factor for new account hashes; tests lower it.
var PasswordCost = bcrypt.DefaultCost

// ValidatePassword checks a candidate account password against the policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength || len(password) > MaxPasswordBytes {
		return ErrPasswordPolicy
	}
	return nil
}

// HashPassword validates and hashes an account password for storage in users.password_hash.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a login attempt matches the stored hash.
func CheckPassword(hash, password string) bool {
	if hash == "" || len(password) > MaxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
