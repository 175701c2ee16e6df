// Package settings provides database operations for client settings.
//
// Values are opaque strings written by the reader UI; the gateway itself
// only interprets a few keys listed in entities.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	value, err := repo.GetSetting(ctx, "theme")
package settings

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/entities"
)

// Repository handles all settings database operations.
type Repository struct {
	*database.Collection[entities.Setting]
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Collection: database.NewCollection[entities.Setting](db, "key")}
}

// GetSetting retrieves a setting by key. Missing keys return database.ErrNotFound.
func (r *Repository) GetSetting(ctx context.Context, key string) (*entities.Setting, error) {
	return r.Get(ctx, key)
}

// SetSetting creates or updates a setting.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	return r.Put(ctx, &entities.Setting{Key: key, Value: value})
}

// DeleteSetting removes a setting by key.
func (r *Repository) DeleteSetting(ctx context.Context, key string) error {
	return r.Delete(ctx, key)
}

// Reset removes every setting.
func (r *Repository) Reset(ctx context.Context) error {
	return r.Clear(ctx)
}

// Int64 parses a numeric setting. ok is false when the key is missing or
// the stored value is not an integer; err is only set for storage failures.
func (r *Repository) Int64(ctx context.Context, key string) (value int64, ok bool, err error) {
	setting, err := r.Get(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	value, convErr := strconv.ParseInt(setting.Value, 10, 64)
	if convErr != nil {
		f, fErr := strconv.ParseFloat(setting.Value, 64)
		if fErr != nil {
			return 0, false, nil
		}
		value = int64(f)
	}
	return value, true, nil
}
