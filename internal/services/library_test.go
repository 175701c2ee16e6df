package services

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/readerclient/internal/content"
	"github.com/mrlokans/readerclient/internal/contentid"
	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/database/blobs"
	"github.com/mrlokans/readerclient/internal/database/books"
	"github.com/mrlokans/readerclient/internal/database/progress"
	"github.com/mrlokans/readerclient/internal/database/settings"
	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/reconcile"
	"github.com/mrlokans/readerclient/internal/remote"
	"github.com/mrlokans/readerclient/internal/remote/remotetest"
)

type staticClients struct {
	client *remote.Client
	err    error
}

func (s staticClients) Client(ctx context.Context) (*remote.Client, error) {
	return s.client, s.err
}

type fixture struct {
	svc      *LibraryService
	books    *books.Repository
	blobs    *blobs.Repository
	progress *progress.Repository
	settings *settings.Repository
	server   *remotetest.Server
}

func setupLibrary(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	dbPath := "./test_library_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	})

	f := &fixture{
		books:    books.NewRepository(db.DB),
		blobs:    blobs.NewRepository(db.DB),
		progress: progress.NewRepository(db.DB),
		settings: settings.NewRepository(db.DB),
		server:   remotetest.NewServer(t),
	}

	clients := staticClients{err: remote.ErrNoSession}
	if loggedIn {
		c, err := remote.NewClient(nil, f.server.URL, remotetest.DefaultToken)
		require.NoError(t, err)
		clients = staticClients{client: c}
	}

	handler := content.NewHandler(f.blobs, f.books, f.settings, clients, content.Config{})
	sync := reconcile.NewService(f.progress, f.books, clients)
	f.svc = NewLibraryService(f.books, f.blobs, f.progress, handler, sync, clients, t.TempDir())
	return f
}

func (f *fixture) setThreshold(t *testing.T, n int) {
	t.Helper()
	require.NoError(t, f.settings.SetSetting(context.Background(), entities.SettingKeyMaxUnchunkedSize, strconv.Itoa(n)))
}

func comic(t *testing.T) []byte {
	return remotetest.Zip(t, "002.png", "second", "001.png", "first", "ComicInfo.xml", "<ComicInfo/>")
}

func TestLibraryService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores record and whole archive", func(t *testing.T) {
		f := setupLibrary(t, false)
		data := comic(t)

		book, err := f.svc.Upload(ctx, "Series/Vol 1.cbz", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, contentid.FromBytes(data), book.ID)
		assert.Equal(t, "Vol 1", book.Title)
		assert.Equal(t, entities.FormatCBZ, book.Format)
		assert.Equal(t, 2, book.Size)
		assert.Equal(t, int64(len(data)), book.FileSize)
		require.NotNil(t, book.Cover)
		assert.True(t, strings.HasPrefix(*book.Cover, "data:image/png;base64,"))
		assert.False(t, book.Chunked)

		stored, err := f.blobs.Load(ctx, blobs.WholeKey(book.ID))
		require.NoError(t, err)
		assert.Equal(t, data, stored)
	})

	t.Run("repeated upload is idempotent", func(t *testing.T) {
		f := setupLibrary(t, false)
		data := comic(t)

		first, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(data))
		require.NoError(t, err)
		second, err := f.svc.Upload(ctx, "renamed.cbz", bytes.NewReader(data))
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "a", second.Title)
		count, err := f.books.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		blobCount, err := f.blobs.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), blobCount)
	})

	t.Run("one byte below threshold is stored whole", func(t *testing.T) {
		f := setupLibrary(t, false)
		data := comic(t)
		f.setThreshold(t, len(data)+1)

		book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(data))
		require.NoError(t, err)
		assert.False(t, book.Chunked)

		keys, err := f.blobs.KeysFor(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{book.ID}, keys)
	})

	t.Run("at threshold is chunked", func(t *testing.T) {
		f := setupLibrary(t, false)
		data := comic(t)
		f.setThreshold(t, len(data))

		book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(data))
		require.NoError(t, err)
		assert.True(t, book.Chunked)

		keys, err := f.blobs.KeysFor(ctx, book.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			blobs.ListKey(book.ID),
			blobs.MemberKey(book.ID, "001.png"),
			blobs.MemberKey(book.ID, "002.png"),
			blobs.MemberKey(book.ID, "ComicInfo.xml"),
		}, keys)

		files, err := f.blobs.LoadList(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"002.png", "001.png", "ComicInfo.xml"}, files)
	})

	t.Run("non zip formats are stored whole", func(t *testing.T) {
		f := setupLibrary(t, false)
		f.setThreshold(t, 1)

		book, err := f.svc.Upload(ctx, "scan.pdf", strings.NewReader("%PDF-1.7"))
		require.NoError(t, err)
		assert.False(t, book.Chunked)
		assert.Zero(t, book.Size)
		assert.Nil(t, book.Cover)
	})

	t.Run("rejects unknown extension", func(t *testing.T) {
		f := setupLibrary(t, false)

		_, err := f.svc.Upload(ctx, "notes.txt", strings.NewReader("hi"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("rejects broken archive without storing", func(t *testing.T) {
		f := setupLibrary(t, false)

		_, err := f.svc.Upload(ctx, "broken.cbz", strings.NewReader("not a zip"))
		assert.ErrorIs(t, err, ErrInvalidArchive)

		count, err := f.books.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestLibraryService_Books(t *testing.T) {
	f := setupLibrary(t, false)
	ctx := context.Background()

	book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(comic(t)))
	require.NoError(t, err)
	require.NoError(t, f.progress.Save(ctx, &entities.Progress{BookID: book.ID, Updated: 5, Position: 1, Completed: entities.Bool(false)}))
	_, err = f.svc.Upload(ctx, "b.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	views, err := f.svc.Books(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]BookView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.Equal(t, float64(1), byID[book.ID].Position)
	assert.Equal(t, int64(5), byID[book.ID].Updated)
}

func TestLibraryService_BookMeta(t *testing.T) {
	ctx := context.Background()

	t.Run("local record with reconciled progress", func(t *testing.T) {
		f := setupLibrary(t, true)
		book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(comic(t)))
		require.NoError(t, err)
		f.server.SetProgress(book.ID, remote.Progress{Updated: 9, Position: 2})

		v, err := f.svc.BookMeta(ctx, book.ID)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "a", v.Title)
		assert.Equal(t, float64(2), v.Position)
	})

	t.Run("falls back to remote metadata", func(t *testing.T) {
		f := setupLibrary(t, true)
		f.server.AddBook(remote.Book{ID: "r1", Title: "Remote", Format: entities.FormatEPUB, Size: 12}, nil)
		f.server.SetProgress("r1", remote.Progress{Updated: 9, Position: 4})

		v, err := f.svc.BookMeta(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "Remote", v.Title)
		assert.Equal(t, 12, v.Size)
		assert.Equal(t, float64(4), v.Position)

		stored, err := f.progress.Find(ctx, "r1")
		require.NoError(t, err)
		assert.Nil(t, stored, "remote-only books leave no local progress")
	})

	t.Run("unknown everywhere is nil", func(t *testing.T) {
		f := setupLibrary(t, true)

		v, err := f.svc.BookMeta(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("offline still serves local", func(t *testing.T) {
		f := setupLibrary(t, true)
		book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(comic(t)))
		require.NoError(t, err)
		f.server.SetOffline(true)

		v, err := f.svc.BookMeta(ctx, book.ID)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, book.ID, v.ID)
	})
}

func TestLibraryService_Download(t *testing.T) {
	ctx := context.Background()

	t.Run("whole archive is verified and stored", func(t *testing.T) {
		f := setupLibrary(t, true)
		data := comic(t)
		id := contentid.FromBytes(data)
		f.server.AddBook(remote.Book{ID: id, Title: "Remote", Format: entities.FormatCBZ, Size: 2}, data)
		f.server.SetProgress(id, remote.Progress{Updated: 7, Position: 1})

		require.NoError(t, f.svc.Download(ctx, id))

		book, err := f.books.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Remote", book.Title)
		assert.False(t, book.Chunked)

		stored, err := f.blobs.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, data, stored)

		p, err := f.progress.Find(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, int64(7), p.Updated)
	})

	t.Run("large archive is chunked", func(t *testing.T) {
		f := setupLibrary(t, true)
		data := comic(t)
		id := contentid.FromBytes(data)
		f.server.AddBook(remote.Book{ID: id, Title: "Remote", Format: entities.FormatCBZ}, data)
		f.setThreshold(t, 1)

		require.NoError(t, f.svc.Download(ctx, id))

		chunked, err := f.books.IsChunked(ctx, id)
		require.NoError(t, err)
		assert.True(t, chunked)
		keys, err := f.blobs.KeysFor(ctx, id)
		require.NoError(t, err)
		assert.Len(t, keys, 4)
	})

	t.Run("content mismatch rolls back", func(t *testing.T) {
		f := setupLibrary(t, true)
		id := contentid.FromBytes([]byte("something else"))
		f.server.AddBook(remote.Book{ID: id, Title: "Bad", Format: entities.FormatCBZ}, comic(t))

		err := f.svc.Download(ctx, id)
		assert.ErrorIs(t, err, ErrIntegrity)

		exists, err := f.books.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("requires a session", func(t *testing.T) {
		f := setupLibrary(t, false)

		err := f.svc.Download(ctx, "x")
		assert.ErrorIs(t, err, remote.ErrNoSession)
	})

	t.Run("existing whole book only refreshes metadata", func(t *testing.T) {
		f := setupLibrary(t, true)
		data := comic(t)
		book, err := f.svc.Upload(ctx, "local.cbz", bytes.NewReader(data))
		require.NoError(t, err)
		f.server.AddBook(remote.Book{ID: book.ID, Title: "Server title", Collection: "Manga/Shonen", Format: entities.FormatCBZ}, data)

		require.NoError(t, f.svc.Download(ctx, book.ID))

		got, err := f.books.Get(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "Server title", got.Title)
		assert.Equal(t, "Manga/Shonen", got.Collection)
		assert.Zero(t, f.server.Hits("/book/"))
	})
}

func TestLibraryService_Delete(t *testing.T) {
	f := setupLibrary(t, false)
	ctx := context.Background()
	f.setThreshold(t, 1)

	keep, err := f.svc.Upload(ctx, "keep.cbz", bytes.NewReader(remotetest.Zip(t, "1.png", "x")))
	require.NoError(t, err)
	gone, err := f.svc.Upload(ctx, "gone.cbz", bytes.NewReader(comic(t)))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, gone.ID))

	keys, err := f.blobs.KeysFor(ctx, gone.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
	exists, err := f.books.Exists(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	keys, err = f.blobs.KeysFor(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	assert.ErrorIs(t, f.svc.Delete(ctx, gone.ID), ErrNotFound)
}

func TestLibraryService_CollectOrphans(t *testing.T) {
	f := setupLibrary(t, false)
	ctx := context.Background()

	book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(comic(t)))
	require.NoError(t, err)
	require.NoError(t, f.blobs.Store(ctx, blobs.MemberKey(book.ID, "stray.png"), []byte("s")))
	require.NoError(t, f.blobs.Store(ctx, "ghost", []byte("g")))
	require.NoError(t, f.blobs.Store(ctx, blobs.MemberKey("ghost", "1.png"), []byte("g")))

	removed, err := f.svc.CollectOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	keys, err := f.blobs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{book.ID}, keys)
}

func TestLibraryService_RefreshMetadata(t *testing.T) {
	f := setupLibrary(t, true)
	ctx := context.Background()

	book, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(comic(t)))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, "b.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	f.server.AddBook(remote.Book{ID: book.ID, Title: "Proper Title", Collection: "Comics"}, nil)

	n, err := f.svc.RefreshMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Proper Title", got.Title)
	assert.Equal(t, "Comics", got.Collection)
	assert.Equal(t, 2, got.Size)
}

func TestLibraryService_Stats(t *testing.T) {
	f := setupLibrary(t, false)
	ctx := context.Background()
	data := comic(t)

	_, err := f.svc.Upload(ctx, "a.cbz", bytes.NewReader(data))
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Books: 1, Bytes: int64(len(data)), Blobs: 1}, st)
}
