package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/nzoschke/beatmarket/internal/model"
)

var (
	ErrBeatNotFound = errors.New("beat not found")
)

type BeatRepository interface {
	Create(ctx context.Context, beat *model.Beat) error
	ByID(ctx context.Context, id string) (*model.Beat, error)
	List(ctx context.Context) ([]*model.Beat, error)
	ByUser(ctx context.Context, userID string) ([]*model.Beat, error)
}

type beatRepository struct {
	db *sqlx.DB
}

func NewBeatRepository(db *sqlx.DB) BeatRepository {
	return &beatRepository{db: db}
}

func (r *beatRepository) Create(ctx context.Context, beat *model.Beat) error {
	query := `INSERT INTO beats (id, user_id, title, price_cents, storage_path, original_name, mime_type, size, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		beat.ID,
		beat.UserID,
		beat.Title,
		beat.PriceCents,
		beat.StoragePath,
		beat.OriginalName,
		beat.MimeType,
		beat.Size,
		beat.CreatedAt,
	)

	return err
}

func (r *beatRepository) ByID(ctx context.Context, id string) (*model.Beat, error) {
	beat := &model.Beat{}
	query := `SELECT * FROM beats WHERE id = $1`

	err := r.db.GetContext(ctx, beat, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBeatNotFound
	}
	if err != nil {
		return nil, err
	}

	return beat, nil
}

// List returns every beat, newest first.
func (r *beatRepository) List(ctx context.Context) ([]*model.Beat, error) {
	beats := []*model.Beat{}
	query := `SELECT * FROM beats ORDER BY created_at DESC, id`

	err := r.db.SelectContext(ctx, &beats, query)
	if err != nil {
		return nil, err
	}

	return beats, nil
}

func (r *beatRepository) ByUser(ctx context.Context, userID string) ([]*model.Beat, error) {
	beats := []*model.Beat{}
	query := `SELECT * FROM beats WHERE user_id = $1 ORDER BY created_at DESC, id`

	err := r.db.SelectContext(ctx, &beats, query, userID)
	if err != nil {
		return nil, err
	}

	return beats, nil
}
