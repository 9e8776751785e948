package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nzoschke/beatmarket/internal/model"
	"github.com/nzoschke/beatmarket/internal/repository"
	"github.com/nzoschke/beatmarket/internal/storage"
	"github.com/nzoschke/beatmarket/internal/validation"
)

type UploadBeatInput struct {
	UserID string
	Title  string
	Price  string
	File   *multipart.FileHeader
}

type BeatService struct {
	beatRepository repository.BeatRepository
	storage        storage.Storage
	constraints    validation.FileConstraints
	now            func() time.Time
}

func NewBeatService(beatRepository repository.BeatRepository, storage storage.Storage, maxUploadSize int64) *BeatService {
	return &BeatService{
		beatRepository: beatRepository,
		storage:        storage,
		constraints:    validation.AudioConstraints.WithMaxSize(maxUploadSize),
		now:            time.Now,
	}
}

// Upload validates and stores an audio file, then records the beat.
// If the database insert fails the stored file is removed again.
func (s *BeatService) Upload(ctx context.Context, in UploadBeatInput) (*model.Beat, error) {
	title, err := validation.ValidateTitle(in.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	priceCents, err := validation.ParsePrice(in.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	mimeType, err := validation.ValidateFile(in.File, s.constraints)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidFile) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	file, err := in.File.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(in.File.Filename))
	storagePath := path.Join("beats", uuid.New().String()+ext)

	err = s.storage.Save(ctx, storagePath, file, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	beat := &model.Beat{
		ID:           uuid.New().String(),
		UserID:       in.UserID,
		Title:        title,
		PriceCents:   priceCents,
		StoragePath:  storagePath,
		OriginalName: filepath.Base(in.File.Filename),
		MimeType:     mimeType,
		Size:         in.File.Size,
		CreatedAt:    s.now().UTC(),
	}

	err = s.beatRepository.Create(ctx, beat)
	if err != nil {
		delErr := s.storage.Delete(context.WithoutCancel(ctx), storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create beat record: %w", err)
	}

	beat.URL = s.storage.URL(ctx, storagePath)

	slog.Info("beat uploaded", "beat_id", beat.ID, "user_id", in.UserID, "size", beat.Size)
	return beat, nil
}

// List returns every beat, newest first, with download URLs.
func (s *BeatService) List(ctx context.Context) ([]*model.Beat, error) {
	beats, err := s.beatRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list beats: %w", err)
	}

	for _, beat := range beats {
		beat.URL = s.storage.URL(ctx, beat.StoragePath)
	}

	return beats, nil
}

func (s *BeatService) ByID(ctx context.Context, id string) (*model.Beat, error) {
	beat, err := s.beatRepository.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBeatNotFound) {
			return nil, ErrBeatNotFound
		}
		return nil, fmt.Errorf("failed to get beat: %w", err)
	}

	beat.URL = s.storage.URL(ctx, beat.StoragePath)
	return beat, nil
}

// ByUser lists the beats a user uploaded.
func (s *BeatService) ByUser(ctx context.Context, userID string) ([]*model.Beat, error) {
	beats, err := s.beatRepository.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list beats: %w", err)
	}

	for _, beat := range beats {
		beat.URL = s.storage.URL(ctx, beat.StoragePath)
	}

	return beats, nil
}
