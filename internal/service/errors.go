package service

import (
	"errors"
	"fmt"

	"stayhub/internal/database"
)

var (
	ErrPropertyNotFound       = errors.New("property not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrUnavailable            = errors.New("property is not available for the requested dates")
	ErrForbidden              = errors.New("operation not permitted")
	ErrInvalidRange           = errors.New("check-out must be after check-in")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrValidation             = errors.New("validation failed")
	ErrConcurrentModification = errors.New("reservation was modified concurrently")
	ErrLockBusy               = errors.New("property is locked by another request")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrEmailTaken         = errors.New("email or username already registered")
	ErrInvalidOTP         = errors.New("invalid or expired verification code")
	ErrOTPThrottled       = errors.New("too many verification code requests")
)

// validationError wraps ErrValidation with the offending field.
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapStoreError turns a store sentinel into the matching service sentinel.
// notFound is returned for database.ErrNotFound.
func mapStoreError(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return notFound
	case errors.Is(err, database.ErrOverlap):
		return ErrUnavailable
	case errors.Is(err, database.ErrConcurrentModification):
		return ErrConcurrentModification
	case errors.Is(err, database.ErrDuplicate):
		return ErrEmailTaken
	default:
		return err
	}
}
