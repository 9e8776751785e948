package service

import "errors"

// Workflow errors. Handlers map these to status codes; any other error is
// internal and must not be shown to the caller.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrTokenNotFound      = errors.New("invalid verification token")
	ErrTokenExpired       = errors.New("verification token expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidSession     = errors.New("invalid session")
	ErrCaptchaFailed      = errors.New("captcha verification failed")
	ErrCaptchaUnavailable = errors.New("captcha verification unavailable")
	ErrBeatNotFound       = errors.New("beat not found")
)
