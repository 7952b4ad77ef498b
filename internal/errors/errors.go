package errors

import (
	"errors"
	"fmt"
)

// Common error types for the upload service
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionSealed   = errors.New("session data could not be unsealed")

	// Authorization flow errors
	ErrStateNotFound = errors.New("authorization state not found")
	ErrStateExpired  = errors.New("authorization state expired")
	ErrStateMismatch = errors.New("authorization state belongs to another session")

	// Upload errors
	ErrInvalidFilename = errors.New("invalid filename")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
