package identity

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Sentinels for the identity provider error codes the UI distinguishes.
// Match them with errors.Is against any error returned by a Provider.
var (
	ErrUsernameExists   = errors.New("UsernameExistsException")
	ErrUserNotConfirmed = errors.New("UserNotConfirmedException")
	ErrNotAuthorized    = errors.New("NotAuthorizedException")
	ErrCodeMismatch     = errors.New("CodeMismatchException")
	ErrExpiredCode      = errors.New("ExpiredCodeException")
	ErrUserNotFound     = errors.New("UserNotFoundException")
	ErrInvalidPassword  = errors.New("InvalidPasswordException")
	ErrTooManyRequests  = errors.New("TooManyRequestsException")
	ErrInvalidParameter = errors.New("InvalidParameterException")

	// ErrNoTokens is returned when authentication finished with a challenge
	// instead of a token set.
	ErrNoTokens = errors.New("identity provider returned no tokens")
)

var sentinels = map[string]error{}

func init() {
	for _, e := range []error{
		ErrUsernameExists, ErrUserNotConfirmed, ErrNotAuthorized,
		ErrCodeMismatch, ErrExpiredCode, ErrUserNotFound,
		ErrInvalidPassword, ErrTooManyRequests, ErrInvalidParameter,
	} {
		sentinels[e.Error()] = e
	}
}

// Error is an application error reported by the identity provider.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// fromAPI converts smithy API errors to *Error and leaves transport errors
// untouched.
func fromAPI(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return &Error{Code: ae.ErrorCode(), Message: ae.ErrorMessage()}
	}
	return err
}
