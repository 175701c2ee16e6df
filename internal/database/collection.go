package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a key has no record in a collection.
var ErrNotFound = errors.New("record not found")

// Stamper is implemented by records that carry a write-time stamp.
type Stamper interface {
	Stamp(t time.Time)
}

// Collection is one partition of the local store keyed by a single column.
// Every operation returns the storage error as is, apart from the not-found
// case which is reported as ErrNotFound.
type Collection[T any] struct {
	db  *gorm.DB
	key string
	now func() time.Time
}

func NewCollection[T any](db *gorm.DB, keyColumn string) *Collection[T] {
	return &Collection[T]{db: db, key: keyColumn, now: time.Now}
}

// Put inserts the record or replaces the row with the same key.
func (c *Collection[T]) Put(ctx context.Context, record *T) error {
	if s, ok := any(record).(Stamper); ok {
		s.Stamp(c.now())
	}
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
}

// Get loads one record. When fields are given only those columns are
// read and the rest of the record is left zero.
func (c *Collection[T]) Get(ctx context.Context, key string, fields ...string) (*T, error) {
	var record T
	q := c.db.WithContext(ctx)
	if len(fields) > 0 {
		q = q.Select(fields)
	}
	err := q.Where(c.key+" = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	var records []T
	if err := c.db.WithContext(ctx).Order(c.key).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes the record if present. Deleting a missing key is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.db.WithContext(ctx).Where(c.key+" = ?", key).Delete(new(T)).Error
}

func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.db.WithContext(ctx).Where("1 = 1").Delete(new(T)).Error
}

func (c *Collection[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(new(T)).Count(&n).Error
	return n, err
}

// DB exposes the handle for repository specific queries.
func (c *Collection[T]) DB() *gorm.DB {
	return c.db
}
