package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nzoschke/beatmarket/internal/model"
	"github.com/nzoschke/beatmarket/internal/repository"
	"golang.org/x/text/cases"
)

type RegisterInput struct {
	Email           string `validate:"required,email,max=254"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required"`
	CaptchaToken    string
	RemoteIP        string
}

type RegisterResult struct {
	User *model.User
	// EmailSent is false when the account was created but the verification
	// email could not be delivered (degraded success).
	EmailSent bool
}

type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	userRepository repository.UserRepository
	hasher         PasswordHasher
	tokens         *VerificationTokenIssuer
	sessions       *SessionIssuer
	notifier       Notifier
	captcha        CaptchaVerifier
	validate       *validator.Validate
	appURL         string
	notifyTimeout  time.Duration
	now            func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

func NewAuthService(
	userRepository repository.UserRepository,
	hasher PasswordHasher,
	tokens *VerificationTokenIssuer,
	sessions *SessionIssuer,
	notifier Notifier,
	captcha CaptchaVerifier,
	appURL string,
	notifyTimeout time.Duration,
) *AuthService {
	if captcha == nil {
		captcha = NoopCaptcha{}
	}
	return &AuthService{
		userRepository: userRepository,
		hasher:         hasher,
		tokens:         tokens,
		sessions:       sessions,
		notifier:       notifier,
		captcha:        captcha,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		appURL:         strings.TrimSuffix(appURL, "/"),
		notifyTimeout:  notifyTimeout,
		now:            time.Now,
	}
}

// NormalizeEmail trims and case-folds an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Register creates an unverified account and mails its verification link.
// A delivery failure does not undo the account; it is reported through
// RegisterResult.EmailSent.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Email = NormalizeEmail(in.Email)

	err := s.validateRegister(in)
	if err != nil {
		return nil, err
	}

	err = s.captcha.Verify(ctx, in.CaptchaToken, in.RemoteIP)
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepository.ByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, expiresAt, err := s.tokens.Issue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &model.User{
		ID:                    uuid.New().String(),
		Email:                 in.Email,
		PasswordHash:          passwordHash,
		Verified:              false,
		VerificationToken:     &verificationToken,
		VerificationExpiresAt: &expiresAt,
		CreatedAt:             s.now().UTC(),
	}

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		// Lost a race with a concurrent registration of the same address
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)

	err = s.sendVerification(ctx, user.Email, verificationToken)
	if err != nil {
		slog.Warn("failed to send verification email", "error", err, "user_id", user.ID)
		return &RegisterResult{User: user, EmailSent: false}, nil
	}

	return &RegisterResult{User: user, EmailSent: true}, nil
}

func (s *AuthService) validateRegister(in RegisterInput) error {
	err := s.validate.Struct(in)
	if err != nil {
		return invalidInput(err)
	}

	if len(in.Password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must not exceed %d bytes", ErrInvalidInput, maxPasswordBytes)
	}

	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}

	return nil
}

// VerifyEmail redeems a verification token. An unknown or already used token
// is ErrTokenNotFound; a matching token past its expiry is ErrTokenExpired.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenNotFound
	}

	user, err := s.userRepository.ByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.VerificationExpired(s.now()) {
		return nil, ErrTokenExpired
	}

	// Conditional update: only one concurrent redemption can win
	err = s.userRepository.ConsumeVerificationToken(ctx, user.ID, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	user.Verified = true
	user.VerificationToken = nil
	user.VerificationExpiresAt = nil

	slog.Info("email verified", "user_id", user.ID)
	return user, nil
}

// Login returns a session token. Unknown email and wrong password produce the
// same ErrInvalidCredentials so callers cannot probe which emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Spend the same bcrypt work as a real comparison
			_, _ = s.hasher.Verify(password, s.fakeHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, ErrEmailNotVerified
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	slog.Info("user logged in", "user_id", user.ID)
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ResendVerification replaces the pending token of an unverified account and
// mails it again. Unknown and already verified emails succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("verification resend requested for non-existent email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.Verified {
		slog.Info("verification resend requested for verified account", "user_id", user.ID)
		return nil
	}

	verificationToken, expiresAt, err := s.tokens.Issue()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.userRepository.SetVerificationToken(ctx, user.ID, verificationToken, expiresAt)
	if err != nil {
		// Verified in the meantime
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to save token: %w", err)
	}

	err = s.sendVerification(ctx, user.Email, verificationToken)
	if err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	slog.Info("verification email resent", "user_id", user.ID)
	return nil
}

// Authenticate resolves a session token to its claims.
func (s *AuthService) Authenticate(token string) (SessionClaims, error) {
	return s.sessions.Verify(token)
}

// SessionTTL is how long a freshly issued session stays valid.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// VerificationURL is the link mailed to the user.
func (s *AuthService) VerificationURL(token string) string {
	return s.appURL + "/api/verify-email?token=" + url.QueryEscape(token)
}

// sendVerification is bounded by notifyTimeout and detached from the caller's
// cancellation so a dropped client does not abort delivery halfway.
func (s *AuthService) sendVerification(ctx context.Context, email, token string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	return s.notifier.SendVerificationEmail(ctx, email, s.VerificationURL(token))
}

func (s *AuthService) fakeHash() string {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.New().String())
		if err != nil {
			slog.Error("failed to prepare dummy hash", "error", err)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// invalidInput turns validator errors into a client-safe ErrInvalidInput.
func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := verrs[0]
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	case "email":
		return fmt.Errorf("%w: %s is not a valid email address", ErrInvalidInput, field)
	case "max":
		return fmt.Errorf("%w: %s is too long", ErrInvalidInput, field)
	case "gte", "min":
		return fmt.Errorf("%w: %s is too small", ErrInvalidInput, field)
	default:
		return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, field)
	}
}

// fieldName maps struct fields to the JSON names clients send.
func fieldName(field string) string {
	switch field {
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "ConfirmPassword":
		return "confirmPassword"
	case "Title":
		return "title"
	case "PriceCents":
		return "price"
	default:
		return strings.ToLower(field)
	}
}
