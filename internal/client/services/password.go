package services

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrPasswordPolicy is wrapped by every *PasswordPolicyError.
var ErrPasswordPolicy = errors.New("password does not meet policy")

// PasswordPolicyError lists every rule a password misses.
type PasswordPolicyError struct {
	Missing []string
}

func (e *PasswordPolicyError) Error() string {
	return "Your password must include: " + strings.Join(e.Missing, ", ")
}

func (e *PasswordPolicyError) Unwrap() error { return ErrPasswordPolicy }

var (
	reUpper   = regexp.MustCompile(`[A-Z]`)
	reLower   = regexp.MustCompile(`[a-z]`)
	reDigit   = regexp.MustCompile(`\d`)
	reSpecial = regexp.MustCompile(`[\W_]`)
)

// ValidatePassword checks the policy locally, before any remote call.
func ValidatePassword(p string) error {
	var missing []string
	if utf8.RuneCountInString(p) < 8 {
		missing = append(missing, "8+ characters")
	}
	if !reUpper.MatchString(p) {
		missing = append(missing, "an uppercase letter")
	}
	if !reLower.MatchString(p) {
		missing = append(missing, "a lowercase letter")
	}
	if !reDigit.MatchString(p) {
		missing = append(missing, "a number")
	}
	if !reSpecial.MatchString(p) {
		missing = append(missing, "a special character")
	}
	if len(missing) > 0 {
		return &PasswordPolicyError{Missing: missing}
	}
	return nil
}
