package http

import (
	"context"
	"io"

	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/remote"
	"github.com/mrlokans/readerclient/internal/services"
)

// This file consolidates the interfaces the controllers depend on. The
// concrete types are wired in entrypoint.

// Library stores, lists and removes books.
// services.LibraryService satisfies it.
type Library interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*entities.Book, error)
	Books(ctx context.Context) ([]services.BookView, error)
	BookMeta(ctx context.Context, id string) (*services.BookView, error)
	Download(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ContentReader serves archive bytes local-first.
// content.Handler satisfies it.
type ContentReader interface {
	Archive(ctx context.Context, bookID string) (io.ReadCloser, error)
	Files(ctx context.Context, bookID string) ([]string, error)
	File(ctx context.Context, bookID, name string) ([]byte, error)
}

// ProgressSyncer reconciles reading positions.
// reconcile.Service satisfies it.
type ProgressSyncer interface {
	Read(ctx context.Context, bookID string) (*entities.Progress, error)
	Write(ctx context.Context, bookID string, position float64, completed *bool) (*entities.Progress, error)
}

// RemoteConnector owns the session. remote.Connector satisfies it.
type RemoteConnector interface {
	Client(ctx context.Context) (*remote.Client, error)
	Login(ctx context.Context, server, username, password string) error
	Verify(ctx context.Context) (remote.Verification, error)
}

// SettingStore keeps opaque UI settings.
// settings.Repository satisfies it.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (*entities.Setting, error)
	SetSetting(ctx context.Context, key, value string) error
	Reset(ctx context.Context) error
}

// MetadataScheduler queues a metadata refresh. tasks.Dispatcher satisfies it.
type MetadataScheduler interface {
	RefreshMetadata(ctx context.Context, ids ...string) error
}
