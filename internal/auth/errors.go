package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication and authorization.
var (
	// ErrAuthenticationRequired indicates that credentials are missing
	// or wrong and the transport should re-challenge the client.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrNotAuthenticated indicates that the operation requires an
	// authenticated caller and none resolved.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidAuthentication indicates that the resolved identity is
	// not allowed to perform the operation.
	ErrInvalidAuthentication = errors.New("invalid authentication")

	// ErrRootTenantOnly indicates that the operation is restricted to
	// the primary tenant.
	ErrRootTenantOnly = errors.New("operation restricted to the root tenant")
)

// AuthError wraps an authentication failure with channel context.
type AuthError struct {
	Channel string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Channel, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Channel, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// WrapAuthError wraps an error with channel context.
func WrapAuthError(err error, channel string) error {
	if err == nil {
		return nil
	}
	return &AuthError{
		Channel: channel,
		Message: err.Error(),
		Cause:   err,
	}
}
