package model

import (
	"fmt"
	"time"
)

type Beat struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"` // Uploader
	Title        string    `db:"title"`
	PriceCents   int64     `db:"price_cents"`
	StoragePath  string    `db:"storage_path"`
	OriginalName string    `db:"original_name"`
	MimeType     string    `db:"mime_type"`
	Size         int64     `db:"size"`
	CreatedAt    time.Time `db:"created_at"`

	// Computed fields (not in database)
	URL string `db:"-"`
}

// Price formats PriceCents as a decimal amount, e.g. 1999 -> "19.99".
func (b *Beat) Price() string {
	return fmt.Sprintf("%d.%02d", b.PriceCents/100, b.PriceCents%100)
}
