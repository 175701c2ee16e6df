// Package books provides database operations for locally cached book records.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.Get(ctx, id)
//	chunked, err := repo.IsChunked(ctx, id)
package books

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/entities"
)

// Repository handles all book record operations.
type Repository struct {
	*database.Collection[entities.Book]
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Collection: database.NewCollection[entities.Book](db, "id")}
}

// Exists reports whether a record for the id is stored.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.DB().WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// IsChunked reads only the chunked flag of a record.
func (r *Repository) IsChunked(ctx context.Context, id string) (bool, error) {
	book, err := r.Get(ctx, id, "id", "chunked")
	if err != nil {
		return false, err
	}
	return book.Chunked, nil
}

// Metadata is the subset of a record the remote server is authoritative for.
type Metadata struct {
	Title      string
	Collection string
	Size       int
	Cover      *string
}

// UpdateMetadata overwrites server-owned fields, leaving content related
// fields (format, file size, chunked) untouched. Empty titles are ignored.
func (r *Repository) UpdateMetadata(ctx context.Context, id string, meta Metadata) error {
	updates := map[string]interface{}{
		"collection": meta.Collection,
		"stored_at":  time.Now(),
	}
	if meta.Title != "" {
		updates["title"] = meta.Title
	}
	if meta.Size > 0 {
		updates["size"] = meta.Size
	}
	if meta.Cover != nil {
		updates["cover"] = *meta.Cover
	}

	result := r.DB().WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// IDs lists every stored book id.
func (r *Repository) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.DB().WithContext(ctx).Model(&entities.Book{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}
