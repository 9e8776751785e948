package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nzoschke/beatmarket/internal/model"
	"github.com/nzoschke/beatmarket/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

// UserService covers account lookups and the manual verification path used
// by operators when a verification email never arrived.
type UserService struct {
	userRepository repository.UserRepository
}

func NewUserService(userRepository repository.UserRepository) *UserService {
	return &UserService{userRepository: userRepository}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserService) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepository.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// MarkVerified verifies an account without a token. Already verified accounts
// are left as they are.
func (s *UserService) MarkVerified(ctx context.Context, email string) (*model.User, error) {
	user, err := s.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.Verified {
		return user, nil
	}

	err = s.userRepository.MarkVerified(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}

	user.Verified = true
	user.VerificationToken = nil
	user.VerificationExpiresAt = nil

	slog.Info("user verified manually", "user_id", user.ID)
	return user, nil
}
