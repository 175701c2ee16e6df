// Package services holds the library operations the gateway exposes:
// storing uploads, pulling books from the server, listing, deleting and
// keeping the blob store consistent with the records.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/mrlokans/readerclient/internal/archive"
	"github.com/mrlokans/readerclient/internal/contentid"
	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/database/blobs"
	"github.com/mrlokans/readerclient/internal/database/books"
	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/remote"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported book format")
	ErrInvalidArchive    = errors.New("archive is unreadable")
	ErrIntegrity         = errors.New("downloaded content does not match its id")
	ErrNotFound          = errors.New("book not found")
)

// BookView is a record merged with its reading progress, the shape the
// reader UI lists.
type BookView struct {
	entities.Book
	Updated   int64   `json:"updated"`
	Position  float64 `json:"position"`
	Completed *bool   `json:"completed"`
}

func viewOf(book entities.Book, p *entities.Progress) BookView {
	v := BookView{Book: book}
	if p != nil {
		v.Updated = p.Updated
		v.Position = p.Position
		v.Completed = p.Completed
	}
	return v
}

// LibraryService coordinates records, content and progress.
type LibraryService struct {
	books    BookStore
	blobs    BlobStore
	progress ProgressStore
	content  ContentStore
	sync     ProgressReader
	clients  ClientFactory
	tempDir  string
}

// NewLibraryService creates a new LibraryService. Uploads are spooled
// under tempDir, or the system temp directory when empty.
func NewLibraryService(bookStore BookStore, blobStore BlobStore, progress ProgressStore, content ContentStore, sync ProgressReader, clients ClientFactory, tempDir string) *LibraryService {
	return &LibraryService{
		books:    bookStore,
		blobs:    blobStore,
		progress: progress,
		content:  content,
		sync:     sync,
		clients:  clients,
		tempDir:  tempDir,
	}
}

// Upload stores an archive sent by the reader. Identical bytes map to the
// same record, so a repeated upload returns the existing book unchanged.
func (s *LibraryService) Upload(ctx context.Context, filename string, body io.Reader) (*entities.Book, error) {
	format := archive.FormatOf(filename)
	if format == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}

	spool, err := os.CreateTemp(s.tempDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	id, size, err := contentid.FromReader(io.TeeReader(body, spool))
	if err != nil {
		return nil, err
	}

	existing, err := s.books.Get(ctx, id)
	if err == nil {
		log.Printf("Library: upload of %s matches existing book %s", filename, id)
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up book: %w", err)
	}

	record := &entities.Book{
		ID:       id,
		Title:    titleOf(filename),
		Format:   format,
		FileSize: size,
	}

	var reader *archive.Reader
	if format.Archived() {
		reader, err = archive.Open(spool, size)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		info := reader.Inspect(format)
		record.Size = info.Size
		record.Cover = info.Cover
	}

	record.Chunked, err = s.content.ShouldChunk(ctx, format, size)
	if err != nil {
		return nil, err
	}

	if err := s.books.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store book record: %w", err)
	}

	if record.Chunked {
		_, err = s.content.StoreLocal(ctx, id, reader)
	} else {
		err = s.storeSpool(ctx, id, spool)
	}
	if err != nil {
		s.rollback(ctx, id)
		return nil, err
	}

	log.Printf("Library: stored %s as %s (%d bytes, chunked=%v)", filename, id, size, record.Chunked)
	return record, nil
}

func (s *LibraryService) storeSpool(ctx context.Context, id string, spool *os.File) error {
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind spool file: %w", err)
	}
	data, err := io.ReadAll(spool)
	if err != nil {
		return fmt.Errorf("failed to read spool file: %w", err)
	}
	return s.content.StoreWhole(ctx, id, data)
}

// rollback removes a record whose content could not be stored, blobs first.
func (s *LibraryService) rollback(ctx context.Context, id string) {
	if _, err := s.blobs.DeleteBook(ctx, id); err != nil {
		log.Printf("Library: rollback of %s left blobs behind: %v", id, err)
		return
	}
	if err := s.books.Delete(ctx, id); err != nil {
		log.Printf("Library: rollback of %s left its record behind: %v", id, err)
	}
}

func titleOf(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Books lists every local record with its local progress.
func (s *LibraryService) Books(ctx context.Context) ([]BookView, error) {
	records, err := s.books.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	progress, err := s.progress.ByBook(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	views := make([]BookView, 0, len(records))
	for _, b := range records {
		var p *entities.Progress
		if rec, ok := progress[b.ID]; ok {
			p = &rec
		}
		views = append(views, viewOf(b, p))
	}
	return views, nil
}

// BookMeta returns the local record, or the server's when there is none,
// merged with reconciled progress. It returns nil when neither side knows
// the book. Books only the server knows leave the local store untouched.
func (s *LibraryService) BookMeta(ctx context.Context, id string) (*BookView, error) {
	read := s.sync.Read
	book, err := s.books.Get(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrNotFound):
		book = s.remoteMeta(ctx, id)
		if book == nil {
			return nil, nil
		}
		read = s.sync.Peek
	default:
		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	p, err := read(ctx, id)
	if err != nil {
		return nil, err
	}
	v := viewOf(*book, p)
	return &v, nil
}

func (s *LibraryService) remoteMeta(ctx context.Context, id string) *entities.Book {
	client, err := s.clients.Client(ctx)
	if err != nil {
		return nil
	}
	meta, err := client.Meta(ctx, id)
	if err != nil {
		if !errors.Is(err, remote.ErrNotFound) {
			log.Printf("Library: remote metadata for %s unavailable: %v", id, err)
		}
		return nil
	}
	record := meta.Record()
	return &record
}

// Download pulls a book from the server into the local store: metadata,
// content laid out by the chunk threshold, and reconciled progress. A book
// already stored whole only has its metadata refreshed.
func (s *LibraryService) Download(ctx context.Context, id string) error {
	client, err := s.clients.Client(ctx)
	if err != nil {
		return err
	}
	meta, err := client.Meta(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch metadata: %w", err)
	}

	existing, err := s.books.Get(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up book: %w", err)
	}

	if existing != nil && !existing.Chunked {
		if err := s.books.UpdateMetadata(ctx, id, metadataOf(meta)); err != nil {
			return fmt.Errorf("failed to refresh metadata: %w", err)
		}
	} else if err := s.downloadContent(ctx, client, meta, existing); err != nil {
		return err
	}

	if _, err := s.sync.Read(ctx, id); err != nil {
		return fmt.Errorf("failed to reconcile progress: %w", err)
	}
	return nil
}

func (s *LibraryService) downloadContent(ctx context.Context, client *remote.Client, meta *remote.Book, existing *entities.Book) error {
	record := meta.Record()
	if existing != nil {
		record.Chunked = true
	} else {
		chunked, err := s.content.ShouldChunk(ctx, record.Format, record.FileSize)
		if err != nil {
			return err
		}
		record.Chunked = chunked
	}

	if err := s.books.Put(ctx, &record); err != nil {
		return fmt.Errorf("failed to store book record: %w", err)
	}

	if record.Chunked {
		n, err := s.content.StoreRemote(ctx, record.ID, client)
		if err != nil {
			// Members already stored stay; the rest are fetched on read.
			return fmt.Errorf("failed to download members: %w", err)
		}
		log.Printf("Library: downloaded %s as %d members", record.ID, n)
		return nil
	}

	if err := s.downloadWhole(ctx, client, &record); err != nil {
		if existing == nil {
			s.rollback(ctx, record.ID)
		}
		return err
	}
	log.Printf("Library: downloaded %s (%d bytes)", record.ID, record.FileSize)
	return nil
}

func (s *LibraryService) downloadWhole(ctx context.Context, client *remote.Client, record *entities.Book) error {
	body, err := client.Archive(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch archive: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w: %v", remote.ErrUnavailable, err)
	}
	if contentid.Valid(record.ID) {
		if err := contentid.Verify(record.ID, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
	}
	return s.content.StoreWhole(ctx, record.ID, data)
}

func metadataOf(b *remote.Book) books.Metadata {
	return books.Metadata{
		Title:      b.Title,
		Collection: b.Collection,
		Size:       b.Size,
		Cover:      b.Cover,
	}
}

// Delete removes a book and all of its content. Blobs go first so an
// interruption never leaves blobs without a record. Progress is kept.
func (s *LibraryService) Delete(ctx context.Context, id string) error {
	exists, err := s.books.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up book: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	removed, err := s.blobs.DeleteBook(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	if err := s.books.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete book record: %w", err)
	}
	log.Printf("Library: deleted %s and %d blobs", id, removed)
	return nil
}

// RefreshMetadata updates server-owned fields of local books. With no ids
// every local book is refreshed. Books the server does not know are
// skipped; an unreachable server stops the pass.
func (s *LibraryService) RefreshMetadata(ctx context.Context, ids ...string) (int, error) {
	client, err := s.clients.Client(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		ids, err = s.books.IDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list books: %w", err)
		}
	}

	updated := 0
	for _, id := range ids {
		meta, err := client.Meta(ctx, id)
		if errors.Is(err, remote.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("failed to fetch metadata for %s: %w", id, err)
		}
		err = s.books.UpdateMetadata(ctx, id, metadataOf(meta))
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("failed to update %s: %w", id, err)
		}
		updated++
	}
	return updated, nil
}

// CollectOrphans deletes blobs with no record, and chunk blobs whose
// record is stored whole.
func (s *LibraryService) CollectOrphans(ctx context.Context) (int, error) {
	records, err := s.books.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list books: %w", err)
	}
	chunked := make(map[string]bool, len(records))
	for _, b := range records {
		chunked[b.ID] = b.Chunked
	}

	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs: %w", err)
	}

	removed := 0
	for _, key := range keys {
		isChunked, known := chunked[blobs.BookID(key)]
		orphan := !known || (blobs.IsChunkKey(key) && !isChunked)
		if !orphan {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to delete orphan %s: %w", key, err)
		}
		removed++
	}
	if removed > 0 {
		log.Printf("Library: removed %d orphan blobs", removed)
	}
	return removed, nil
}

// Stats summarises the local store.
type Stats struct {
	Books   int   `json:"books"`
	Chunked int   `json:"chunked"`
	Bytes   int64 `json:"bytes"`
	Blobs   int64 `json:"blobs"`
}

func (s *LibraryService) Stats(ctx context.Context) (Stats, error) {
	records, err := s.books.GetAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list books: %w", err)
	}
	var st Stats
	for _, b := range records {
		st.Books++
		st.Bytes += b.FileSize
		if b.Chunked {
			st.Chunked++
		}
	}
	st.Blobs, err = s.blobs.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count blobs: %w", err)
	}
	return st, nil
}
