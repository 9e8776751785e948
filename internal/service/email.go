package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nzoschke/beatmarket/internal/markdown"
	"github.com/resend/resend-go/v2"
)

// Notifier delivers the verification link out of band.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, verifyURL string) error
}

// emailSender is the slice of the Resend client the service uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailService struct {
	sender      emailSender
	parser      *markdown.Parser
	fromEmail   string
	appName     string
	tokenExpiry time.Duration
	isDev       bool
}

func NewEmailService(apiKey, fromEmail, appName string, tokenExpiry time.Duration, isDev bool) *EmailService {
	var sender emailSender
	if apiKey != "" && !isDev {
		sender = resend.NewClient(apiKey).Emails
	}

	return &EmailService{
		sender:      sender,
		parser:      markdown.NewParser(),
		fromEmail:   fromEmail,
		appName:     appName,
		tokenExpiry: tokenExpiry,
		isDev:       isDev,
	}
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, email, verifyURL string) error {
	subject, body := verificationEmailTemplate(verifyURL, s.appName, s.tokenExpiry)

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "verify_email", "to", email, "subject", subject, "url", verifyURL)
		return nil
	}

	if s.sender == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	html, err := s.parser.Parse([]byte(body))
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email},
		Subject: subject,
		Text:    body,
		Html:    string(html),
	}

	_, err = s.sender.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("email sent", "type", "verify_email", "to", email)
	return nil
}
