// Package errmsg turns identity and backend errors into text for the user.
package errmsg

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/quickpage/internal/client/identity"
)

// MaxLen is the longest message shown to the user, in runes.
const MaxLen = 300

var known = map[string]string{
	"UsernameExistsException":   "An account with this email already exists.",
	"UserNotConfirmedException": "Please verify your email address.",
	"NotAuthorizedException":    "Incorrect email or password.",
	"UserNotFoundException":     "No account found with this email.",
	"InvalidPasswordException":  "Password must be at least 8 characters.",
	"CodeMismatchException":     "Invalid verification code.",
	"ExpiredCodeException":      "Verification code has expired. Please request a new one.",
	"TooManyRequestsException":  "Too many attempts. Please try again later.",
	"InvalidParameterException": "Invalid input. Please check your information.",
}

const (
	policyPrefix     = "Password did not conform with policy: "
	regexConstraint  = "failed to satisfy constraint: Member must satisfy regular expression pattern"
	regexReplacement = "Password cannot contain leading or trailing spaces."
	fallback         = "Something went wrong. Please try again."
)

// Format maps err to a user-facing message: known provider codes through a
// fixed table, everything else through Normalize.
func Format(err error) string {
	if err == nil {
		return ""
	}
	var ie *identity.Error
	if errors.As(err, &ie) {
		if msg, ok := known[ie.Code]; ok {
			return msg
		}
		if ie.Message != "" {
			return Normalize(ie.Message)
		}
		return Normalize(ie.Code)
	}
	return Normalize(err.Error())
}

// Normalize strips known dynamic prefixes and rewords constraint failures.
func Normalize(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return fallback
	}
	if strings.Contains(msg, regexConstraint) {
		return regexReplacement
	}
	msg = strings.TrimPrefix(msg, policyPrefix)
	return Truncate(msg, MaxLen)
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}
