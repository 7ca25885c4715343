package api

import (
	"errors"
	"net/http"
	"strings"

	"stayhub/internal/apperr"
	"stayhub/internal/service"
)

// classifyServiceError maps service sentinels onto API error codes.
func classifyServiceError(err error) *apperr.AppError {
	switch {
	case errors.Is(err, service.ErrPropertyNotFound):
		return apperr.NotFound("property")
	case errors.Is(err, service.ErrReservationNotFound):
		return apperr.NotFound("reservation")
	case errors.Is(err, service.ErrUserNotFound):
		return apperr.NotFound("user")
	case errors.Is(err, service.ErrUnavailable):
		return apperr.New(apperr.CodeUnavailable, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrForbidden):
		return apperr.Forbidden("You are not allowed to perform this operation")
	case errors.Is(err, service.ErrInvalidRange):
		return apperr.New(apperr.CodeInvalidRange, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidTransition):
		return apperr.New(apperr.CodeInvalidTransition, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrValidation):
		reason := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		return apperr.Validation("Validation failed", map[string]any{"reason": reason})
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperr.Unauthorized(err.Error())
	case errors.Is(err, service.ErrEmailNotVerified):
		return apperr.New(apperr.CodeEmailNotVerified, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrEmailTaken):
		return apperr.New(apperr.CodeEmailTaken, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidOTP):
		return apperr.New(apperr.CodeInvalidOTP, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrOTPThrottled):
		return apperr.TooManyRequests(err.Error())
	case errors.Is(err, service.ErrConcurrentModification), errors.Is(err, service.ErrLockBusy):
		return apperr.New(apperr.CodeConflict, err.Error(), http.StatusConflict)
	default:
		return nil
	}
}

func toAppError(err error) *apperr.AppError {
	return apperr.From(err, classifyServiceError)
}
