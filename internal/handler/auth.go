package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nzoschke/beatmarket/internal/ctxkeys"
	"github.com/nzoschke/beatmarket/internal/metrics"
	"github.com/nzoschke/beatmarket/internal/middleware"
	"github.com/nzoschke/beatmarket/internal/service"
)

type AuthHandler struct {
	authService   *service.AuthService
	userService   *service.UserService
	secureCookies bool
	trustProxy    bool
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService, secureCookies, trustProxy bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		userService:   userService,
		secureCookies: secureCookies,
		trustProxy:    trustProxy,
	}
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	RecaptchaToken  string `json:"recaptchaToken"`
}

type registerResponse struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	EmailSent bool   `json:"emailSent"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		metrics.RecordRegistration("rejected")
		handleError(w, r, err)
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		CaptchaToken:    req.RecaptchaToken,
		RemoteIP:        middleware.ClientIP(r, h.trustProxy),
	})
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			metrics.RecordRegistration("error")
		} else {
			metrics.RecordRegistration("rejected")
		}
		handleError(w, r, err)
		return
	}

	message := "Account created. Check your email to verify it."
	if !result.EmailSent {
		metrics.RecordRegistration("created_email_failed")
		message = "Account created, but the verification email could not be sent. Request a new one later."
	} else {
		metrics.RecordRegistration("created")
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:   message,
		UserID:    result.User.ID,
		EmailSent: result.EmailSent,
	})
}

// VerifyEmail is opened from the emailed link, so it answers in plain text.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	_, err := h.authService.VerifyEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			metrics.RecordVerification("expired")
		case errors.Is(err, service.ErrTokenNotFound):
			metrics.RecordVerification("not_found")
		default:
			metrics.RecordVerification("error")
			slog.Error("failed to verify email", "error", err)
		}
		http.Error(w, messageFor(err), statusFor(err))
		return
	}

	metrics.RecordVerification("verified")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "Email verified! You can now log in.")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			metrics.RecordLogin("invalid_credentials")
		case errors.Is(err, service.ErrEmailNotVerified):
			metrics.RecordLogin("not_verified")
		default:
			metrics.RecordLogin("error")
		}
		handleError(w, r, err)
		return
	}

	metrics.RecordLogin("success")
	middleware.SetSessionCookie(w, result.Token, int(h.authService.SessionTTL().Seconds()), h.secureCookies)

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "Logged in.",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Logout clears the session cookie. Tokens are stateless, so a bearer token
// stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w, h.secureCookies)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out."})
}

type resendRequest struct {
	Email string `json:"email"`
}

// ResendVerification answers the same way whether or not the email exists.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.authService.ResendVerification(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			handleError(w, r, err)
			return
		}
		// Delivery or storage trouble is logged but not revealed
		slog.Error("failed to resend verification", "error", err)
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "If an unverified account exists for that email, a new verification link has been sent.",
	})
}

func (h *AuthHandler) Secret(w http.ResponseWriter, r *http.Request) {
	claims := ctxkeys.Session(r.Context())
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Welcome, %s!", claims.Email)})
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := ctxkeys.Session(r.Context())

	user, err := h.userService.ByID(r.Context(), claims.UserID)
	if err != nil {
		// Account vanished after the token was issued
		if errors.Is(err, service.ErrUserNotFound) {
			middleware.ClearSessionCookie(w, h.secureCookies)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        user.ID,
		Email:     user.Email,
		Verified:  user.Verified,
		CreatedAt: user.CreatedAt,
	})
}
