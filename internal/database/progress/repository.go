// Package progress provides database operations for local reading positions.
//
// # Usage
//
//	repo := progress.NewRepository(db)
//	record, err := repo.Find(ctx, bookID) // nil, nil when absent
package progress

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/entities"
)

// Repository handles all progress record operations.
type Repository struct {
	*database.Collection[entities.Progress]
}

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Collection: database.NewCollection[entities.Progress](db, "book_id")}
}

// Find returns the record for a book, or nil when none is stored.
func (r *Repository) Find(ctx context.Context, bookID string) (*entities.Progress, error) {
	record, err := r.Get(ctx, bookID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return record, err
}

// Save upserts a record for a book.
func (r *Repository) Save(ctx context.Context, record *entities.Progress) error {
	return r.Put(ctx, record)
}

// ByBook loads every record keyed by book id.
func (r *Repository) ByBook(ctx context.Context) (map[string]entities.Progress, error) {
	records, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entities.Progress, len(records))
	for _, rec := range records {
		out[rec.BookID] = rec
	}
	return out, nil
}
