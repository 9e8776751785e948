package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptchaVerifier checks a client-supplied bot-mitigation token.
// It returns nil, ErrCaptchaFailed, or an error wrapping ErrCaptchaUnavailable.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// NoopCaptcha accepts everything. Used only when CAPTCHA_MODE=disabled.
type NoopCaptcha struct{}

func (NoopCaptcha) Verify(context.Context, string, string) error { return nil }

// RecaptchaVerifier validates reCAPTCHA v2 responses against the siteverify API.
// It fails closed: an unreachable or misbehaving endpoint rejects the request.
type RecaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

func NewRecaptchaVerifier(secret, verifyURL string, timeout time.Duration) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrCaptchaFailed
	}

	if v.secret == "" {
		return fmt.Errorf("%w: missing secret", ErrCaptchaUnavailable)
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrCaptchaUnavailable, resp.StatusCode)
	}

	var result recaptchaResponse
	err = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&result)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrCaptchaUnavailable, err)
	}

	if !result.Success {
		slog.Info("captcha rejected", "error_codes", result.ErrorCodes)
		return ErrCaptchaFailed
	}

	return nil
}
