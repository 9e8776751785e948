package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nzoschke/beatmarket/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrTokenNotFound  = errors.New("verification token not found")
)

// UserRepository persists credentials. Email uniqueness is enforced by the
// users.email UNIQUE index, never by a read-then-write in the caller.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByVerificationToken(ctx context.Context, token string) (*model.User, error)
	ConsumeVerificationToken(ctx context.Context, userID, token string) error
	SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID string) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, password_hash, verified, verification_token, verification_expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.VerificationToken,
		user.VerificationExpiresAt,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM users WHERE email = $1`, email)
}

// ByVerificationToken matches the token regardless of expiry; the caller decides
// whether an expired match is usable.
func (r *userRepository) ByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT * FROM users WHERE verification_token = $1`, token)
}

// ConsumeVerificationToken marks the user verified and clears the token in a
// single conditional UPDATE. Only the first of two concurrent redemptions
// succeeds; the other gets ErrTokenNotFound.
func (r *userRepository) ConsumeVerificationToken(ctx context.Context, userID, token string) error {
	query := `
		UPDATE users
		SET verified = TRUE, verification_token = NULL, verification_expires_at = NULL
		WHERE id = $1
		AND verification_token = $2
		AND verified = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrTokenNotFound)
}

// SetVerificationToken replaces the outstanding token of an unverified user.
func (r *userRepository) SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `UPDATE users SET verification_token = $1, verification_expires_at = $2 WHERE id = $3 AND verified = FALSE`

	result, err := r.db.ExecContext(ctx, query, token, expiresAt, userID)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrUserNotFound)
}

// MarkVerified verifies a user without a token (manual verification).
func (r *userRepository) MarkVerified(ctx context.Context, userID string) error {
	query := `UPDATE users SET verified = TRUE, verification_token = NULL, verification_expires_at = NULL WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrUserNotFound)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}

	err := r.db.GetContext(ctx, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// isUniqueViolation checks for unique constraint violation (works for both SQLite and PostgreSQL)
func isUniqueViolation(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return notFound
	}

	return nil
}
