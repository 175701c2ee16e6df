package services

import (
	"context"

	"github.com/mrlokans/readerclient/internal/archive"
	"github.com/mrlokans/readerclient/internal/database/books"
	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/remote"
)

// BookStore persists book records.
// books.Repository satisfies it.
type BookStore interface {
	Put(ctx context.Context, record *entities.Book) error
	Get(ctx context.Context, key string, fields ...string) (*entities.Book, error)
	GetAll(ctx context.Context) ([]entities.Book, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, id string) (bool, error)
	UpdateMetadata(ctx context.Context, id string, meta books.Metadata) error
	IDs(ctx context.Context) ([]string, error)
}

// BlobStore is the subset of blob operations the library needs directly.
// Layout decisions go through ContentStore instead.
type BlobStore interface {
	Delete(ctx context.Context, key string) error
	DeleteBook(ctx context.Context, bookID string) (int64, error)
	Keys(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// ProgressStore loads every local reading position at once.
type ProgressStore interface {
	ByBook(ctx context.Context) (map[string]entities.Progress, error)
}

// ContentStore decides and performs the archive layout. content.Handler
// satisfies it.
type ContentStore interface {
	ShouldChunk(ctx context.Context, format entities.Format, fileSize int64) (bool, error)
	StoreWhole(ctx context.Context, bookID string, data []byte) error
	StoreLocal(ctx context.Context, bookID string, r *archive.Reader) (int, error)
	StoreRemote(ctx context.Context, bookID string, client *remote.Client) (int, error)
}

// ProgressReader returns reconciled progress. Peek skips the repair
// writes. reconcile.Service satisfies it.
type ProgressReader interface {
	Read(ctx context.Context, bookID string) (*entities.Progress, error)
	Peek(ctx context.Context, bookID string) (*entities.Progress, error)
}

// ClientFactory hands out a client for the current session.
// remote.Connector satisfies it.
type ClientFactory interface {
	Client(ctx context.Context) (*remote.Client, error)
}
