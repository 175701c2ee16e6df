// Package blobs provides database operations for cached book content.
//
// A book's content is stored either as one blob under the book id, or as a
// member list under "<id>/*" plus one blob per member under "<id>/<name>".
//
// # Usage
//
//	repo := blobs.NewRepository(db)
//	err := repo.Store(ctx, blobs.MemberKey(id, "001.jpg"), data)
//	removed, err := repo.DeleteBook(ctx, id)
package blobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/entities"
)

const (
	separator  = "/"
	listSuffix = "/*"
	rangeBound = "0" // the byte after '/'
)

// WholeKey addresses an archive stored in one piece.
func WholeKey(bookID string) string {
	return bookID
}

// ListKey addresses the serialized member list of a chunked book.
func ListKey(bookID string) string {
	return bookID + listSuffix
}

// MemberKey addresses one member of a chunked book.
func MemberKey(bookID, name string) string {
	return bookID + separator + name
}

// BookID returns the book a key belongs to.
func BookID(key string) string {
	if i := strings.Index(key, separator); i >= 0 {
		return key[:i]
	}
	return key
}

// IsChunkKey reports whether the key is a member or member list key.
func IsChunkKey(key string) bool {
	return strings.Contains(key, separator)
}

// Repository handles all blob operations.
type Repository struct {
	*database.Collection[entities.Blob]
}

// NewRepository creates a new blobs repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Collection: database.NewCollection[entities.Blob](db, "key")}
}

// Store writes content under key, replacing whatever was there.
func (r *Repository) Store(ctx context.Context, key string, data []byte) error {
	return r.Put(ctx, &entities.Blob{Key: key, Data: data})
}

// Load returns the bytes stored under key or database.ErrNotFound.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	blob, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

// StoreList serializes a member list under the book's list key.
func (r *Repository) StoreList(ctx context.Context, bookID string, files []string) error {
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to encode file list: %w", err)
	}
	return r.Store(ctx, ListKey(bookID), data)
}

// LoadList returns the member list of a chunked book.
func (r *Repository) LoadList(ctx context.Context, bookID string) ([]string, error) {
	data, err := r.Load(ctx, ListKey(bookID))
	if err != nil {
		return nil, err
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("failed to decode file list for %s: %w", bookID, err)
	}
	return files, nil
}

// bookScope matches the whole-archive key and every chunk key of a book.
// A key range is used so ids are never interpreted as LIKE patterns.
func bookScope(db *gorm.DB, bookID string) *gorm.DB {
	return db.Where("key = ? OR (key >= ? AND key < ?)", bookID, bookID+separator, bookID+rangeBound)
}

// DeleteBook removes every blob that belongs to the book.
func (r *Repository) DeleteBook(ctx context.Context, bookID string) (int64, error) {
	result := bookScope(r.DB().WithContext(ctx), bookID).Delete(&entities.Blob{})
	return result.RowsAffected, result.Error
}

// DeleteChunks removes the member list and members of a book, keeping a
// whole-archive blob if one exists.
func (r *Repository) DeleteChunks(ctx context.Context, bookID string) (int64, error) {
	result := r.DB().WithContext(ctx).
		Where("key >= ? AND key < ?", bookID+separator, bookID+rangeBound).
		Delete(&entities.Blob{})
	return result.RowsAffected, result.Error
}

// KeysFor lists the keys stored for one book without reading content.
func (r *Repository) KeysFor(ctx context.Context, bookID string) ([]string, error) {
	var keys []string
	err := bookScope(r.DB().WithContext(ctx).Model(&entities.Blob{}), bookID).
		Order("key").Pluck("key", &keys).Error
	return keys, err
}

// Keys lists every stored key without reading content.
func (r *Repository) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.DB().WithContext(ctx).Model(&entities.Blob{}).Order("key").Pluck("key", &keys).Error
	return keys, err
}
