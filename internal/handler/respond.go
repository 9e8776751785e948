package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nzoschke/beatmarket/internal/service"
)

// maxJSONBody caps auth request bodies.
const maxJSONBody = 64 << 10

var errInvalidJSON = errors.New("invalid JSON body")

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads exactly one JSON value from the body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))

	err := dec.Decode(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}

	// Disallow trailing data: {}{}
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected trailing data", errInvalidJSON)
	}

	return nil
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidJSON),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, service.ErrCaptchaFailed),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, service.ErrBeatNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCaptchaUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text for err. Internal errors get a
// generic message so storage details never leak.
func messageFor(err error) string {
	switch {
	case errors.Is(err, errInvalidJSON):
		return "invalid JSON body"
	case errors.Is(err, service.ErrInvalidInput):
		// "invalid input: email is required" -> "email is required"
		_, detail, ok := strings.Cut(err.Error(), service.ErrInvalidInput.Error()+": ")
		if ok && detail != "" {
			return detail
		}
		return service.ErrInvalidInput.Error()
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return service.ErrEmailAlreadyExists.Error()
	case errors.Is(err, service.ErrCaptchaFailed):
		return service.ErrCaptchaFailed.Error()
	case errors.Is(err, service.ErrCaptchaUnavailable):
		return "captcha verification is temporarily unavailable"
	case errors.Is(err, service.ErrTokenNotFound):
		return service.ErrTokenNotFound.Error()
	case errors.Is(err, service.ErrTokenExpired):
		return service.ErrTokenExpired.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return service.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrEmailNotVerified):
		return service.ErrEmailNotVerified.Error()
	case errors.Is(err, service.ErrInvalidSession):
		return "authentication required"
	case errors.Is(err, service.ErrBeatNotFound):
		return service.ErrBeatNotFound.Error()
	case errors.Is(err, service.ErrUserNotFound):
		return service.ErrUserNotFound.Error()
	default:
		return "internal server error"
	}
}

// handleError writes err as a JSON error and logs internal failures.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeError(w, status, messageFor(err))
}

// NotFound answers unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
