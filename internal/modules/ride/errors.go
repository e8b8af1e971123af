package ride

import "errors"

var (
	ErrNotFound          = errors.New("ride not found")
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrOTPMismatch       = errors.New("otp mismatch")
	ErrBadRequest        = errors.New("bad request")
	ErrForbidden         = errors.New("actor not allowed on this ride")
	ErrAlreadyRated      = errors.New("ride already rated by this party")
)
