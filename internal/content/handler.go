// Package content decides how book archives are laid out in the blob store
// and serves them back.
//
// An archive below the chunk threshold is stored as one blob. At or above
// it, the member list and every member are stored separately so a reader
// can page through a huge archive without loading it whole. Members that
// are not cached yet are fetched from the library server on first read and
// kept.
//
// # Usage
//
//	h := content.NewHandler(blobRepo, bookRepo, settingsRepo, connector, content.Config{})
//	chunk, err := h.ShouldChunk(ctx, entities.FormatCBZ, size)
//	page, err := h.File(ctx, bookID, "001.jpg")
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/mrlokans/readerclient/internal/archive"
	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/database/blobs"
	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/remote"
)

const (
	DefaultThreshold   int64 = 100 << 20
	DefaultConcurrency       = 4
)

// ErrNotFound means neither the local store nor the server could supply
// the content. It wraps the remote error when there is one.
var ErrNotFound = errors.New("content not available")

type BlobStore interface {
	Store(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	StoreList(ctx context.Context, bookID string, files []string) error
	LoadList(ctx context.Context, bookID string) ([]string, error)
}

type BookStore interface {
	Get(ctx context.Context, key string, fields ...string) (*entities.Book, error)
}

type SettingStore interface {
	Int64(ctx context.Context, key string) (int64, bool, error)
}

type ClientFactory interface {
	Client(ctx context.Context) (*remote.Client, error)
}

type Config struct {
	// Threshold applies when the maxUnchunkedSize setting is absent.
	Threshold   int64
	Concurrency int
}

type Handler struct {
	blobs       BlobStore
	books       BookStore
	settings    SettingStore
	clients     ClientFactory
	threshold   int64
	concurrency int

	fetchGroup singleflight.Group
}

func NewHandler(blobStore BlobStore, books BookStore, settings SettingStore, clients ClientFactory, cfg Config) *Handler {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Handler{
		blobs:       blobStore,
		books:       books,
		settings:    settings,
		clients:     clients,
		threshold:   cfg.Threshold,
		concurrency: cfg.Concurrency,
	}
}

// Threshold is the smallest archive size that gets chunked.
func (h *Handler) Threshold(ctx context.Context) (int64, error) {
	v, ok, err := h.settings.Int64(ctx, entities.SettingKeyMaxUnchunkedSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read chunk threshold: %w", err)
	}
	if ok && v > 0 {
		return v, nil
	}
	return h.threshold, nil
}

// ShouldChunk reports whether an archive of fileSize bytes is stored per
// member. Formats that are not zip containers are always stored whole.
func (h *Handler) ShouldChunk(ctx context.Context, format entities.Format, fileSize int64) (bool, error) {
	if !format.Archived() {
		return false, nil
	}
	threshold, err := h.Threshold(ctx)
	if err != nil {
		return false, err
	}
	return fileSize >= threshold, nil
}

// StoreWhole stores an unchunked archive.
func (h *Handler) StoreWhole(ctx context.Context, bookID string, data []byte) error {
	if err := h.blobs.Store(ctx, blobs.WholeKey(bookID), data); err != nil {
		return fmt.Errorf("failed to store archive: %w", err)
	}
	return nil
}

// StoreLocal chunks an archive being uploaded, one member at a time.
func (h *Handler) StoreLocal(ctx context.Context, bookID string, r *archive.Reader) (int, error) {
	return h.storeChunks(ctx, bookID, ArchiveSource(r), 1)
}

// StoreRemote chunks an archive from the server, fetching members in
// parallel.
func (h *Handler) StoreRemote(ctx context.Context, bookID string, client *remote.Client) (int, error) {
	return h.storeChunks(ctx, bookID, RemoteSource(client, bookID), h.concurrency)
}

// storeChunks writes the member list and then every member. It returns
// how many members were stored.
func (h *Handler) storeChunks(ctx context.Context, bookID string, src Source, limit int) (int, error) {
	files, err := src.Files(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}
	if err := h.blobs.StoreList(ctx, bookID, files); err != nil {
		return 0, fmt.Errorf("failed to store member list: %w", err)
	}

	if limit <= 1 {
		for _, name := range files {
			if err := h.copyMember(ctx, bookID, src, name); err != nil {
				return 0, err
			}
		}
		return len(files), nil
	}

	sem := semaphore.NewWeighted(int64(limit))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, name := range files {
		if err := sem.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			return h.copyMember(egCtx, bookID, src, name)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(files), nil
}

func (h *Handler) copyMember(ctx context.Context, bookID string, src Source, name string) error {
	data, err := src.File(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read member %s: %w", name, err)
	}
	if err := h.blobs.Store(ctx, blobs.MemberKey(bookID, name), data); err != nil {
		return fmt.Errorf("failed to store member %s: %w", name, err)
	}
	return nil
}

func (h *Handler) record(ctx context.Context, bookID string) (*entities.Book, error) {
	book, err := h.books.Get(ctx, bookID, "id", "format", "chunked")
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book record: %w", err)
	}
	return book, nil
}

// local opens the whole stored archive of an unchunked book, or returns nil.
func (h *Handler) local(ctx context.Context, book *entities.Book) ([]byte, error) {
	if book == nil || book.Chunked {
		return nil, nil
	}
	data, err := h.blobs.Load(ctx, blobs.WholeKey(book.ID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	return data, nil
}

func (h *Handler) client(ctx context.Context) (*remote.Client, error) {
	client, err := h.clients.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return client, nil
}

func notFound(err error) error {
	if remote.Absent(err) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// Archive returns the whole archive, from the local store when the book
// is stored unchunked and from the server otherwise. The caller closes it.
func (h *Handler) Archive(ctx context.Context, bookID string) (io.ReadCloser, error) {
	book, err := h.record(ctx, bookID)
	if err != nil {
		return nil, err
	}
	data, err := h.local(ctx, book)
	if err != nil {
		return nil, err
	}
	if data != nil {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	client, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	body, err := client.Archive(ctx, bookID)
	if err != nil {
		return nil, notFound(err)
	}
	return body, nil
}

// Files returns the member list of an archive.
func (h *Handler) Files(ctx context.Context, bookID string) ([]string, error) {
	book, err := h.record(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if book != nil && book.Chunked {
		files, err := h.blobs.LoadList(ctx, bookID)
		if err == nil {
			return files, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return h.fetchList(ctx, bookID)
	}

	data, err := h.local(ctx, book)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if r, err := archive.OpenBytes(data); err == nil {
			return r.Files(), nil
		}
	}

	client, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	files, err := client.Files(ctx, bookID)
	if err != nil {
		return nil, notFound(err)
	}
	return files, nil
}

// File returns one member of an archive. Members of chunked books that
// are not cached yet are fetched and stored.
func (h *Handler) File(ctx context.Context, bookID, name string) ([]byte, error) {
	book, err := h.record(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if book != nil && book.Chunked {
		data, err := h.blobs.Load(ctx, blobs.MemberKey(bookID, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return h.fetchMember(ctx, bookID, name)
	}

	whole, err := h.local(ctx, book)
	if err != nil {
		return nil, err
	}
	if whole != nil {
		if r, err := archive.OpenBytes(whole); err == nil {
			data, err := r.File(name)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return data, nil
		}
	}

	client, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	data, err := client.File(ctx, bookID, name)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

// shared runs fn once per key for all concurrent callers. The fill runs
// detached from the caller's cancellation so one abandoned request does
// not fail the others; each caller still stops waiting when its own
// context ends.
func (h *Handler) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	fillCtx := context.WithoutCancel(ctx)
	ch := h.fetchGroup.DoChan(key, func() (any, error) {
		return fn(fillCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchMember fills one cache miss. Concurrent misses for the same member
// share a single request.
func (h *Handler) fetchMember(ctx context.Context, bookID, name string) ([]byte, error) {
	key := blobs.MemberKey(bookID, name)
	v, err := h.shared(ctx, key, func(ctx context.Context) (any, error) {
		if data, err := h.blobs.Load(ctx, key); err == nil {
			return data, nil
		}

		client, err := h.client(ctx)
		if err != nil {
			return nil, err
		}
		data, err := client.File(ctx, bookID, name)
		if err != nil {
			return nil, notFound(err)
		}
		if err := h.blobs.Store(ctx, key, data); err != nil {
			log.Printf("Content: failed to cache %s: %v", key, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (h *Handler) fetchList(ctx context.Context, bookID string) ([]string, error) {
	v, err := h.shared(ctx, blobs.ListKey(bookID), func(ctx context.Context) (any, error) {
		client, err := h.client(ctx)
		if err != nil {
			return nil, err
		}
		files, err := client.Files(ctx, bookID)
		if err != nil {
			return nil, notFound(err)
		}
		if err := h.blobs.StoreList(ctx, bookID, files); err != nil {
			log.Printf("Content: failed to cache member list of %s: %v", bookID, err)
		}
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
