package reconcile

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/database/books"
	"github.com/mrlokans/readerclient/internal/database/progress"
	"github.com/mrlokans/readerclient/internal/entities"
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
	svc      *Service
	progress *progress.Repository
	books    *books.Repository
	server   *remotetest.Server
}

func setupService(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	dbPath := "./test_reconcile_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	})

	srv := remotetest.NewServer(t)
	clients := staticClients{err: remote.ErrNoSession}
	if loggedIn {
		c, err := remote.NewClient(nil, srv.URL, remotetest.DefaultToken)
		require.NoError(t, err)
		clients = staticClients{client: c}
	}

	f := &fixture{
		progress: progress.NewRepository(db.DB),
		books:    books.NewRepository(db.DB),
		server:   srv,
	}
	f.svc = NewService(f.progress, f.books, clients)
	f.svc.now = func() time.Time { return time.UnixMilli(50_000) }
	return f
}

func TestService_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("remote newer repairs local", func(t *testing.T) {
		f := setupService(t, true)
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, nil)))
		f.server.SetProgress("b1", remote.Progress{Updated: 20, Position: 8, Completed: entities.Bool(false)})

		got, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(8), got.Position)

		stored, err := f.progress.Find(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, int64(20), stored.Updated)
		assert.False(t, stored.IsCompleted())
	})

	t.Run("local newer repairs remote", func(t *testing.T) {
		f := setupService(t, true)
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 30, 12, entities.Bool(true))))
		f.server.SetProgress("b1", remote.Progress{Updated: 20, Position: 8})

		got, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(12), got.Position)

		pushed, ok := f.server.Progress("b1")
		require.True(t, ok)
		assert.Equal(t, int64(30), pushed.Updated)
		assert.Equal(t, float64(12), pushed.Position)
	})

	t.Run("neither side returns start without storing", func(t *testing.T) {
		f := setupService(t, true)

		got, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(0), got.Position)
		require.NotNil(t, got.Completed)
		assert.False(t, *got.Completed)

		stored, err := f.progress.Find(ctx, "b1")
		require.NoError(t, err)
		assert.Nil(t, stored)
		_, ok := f.server.Progress("b1")
		assert.False(t, ok)
	})

	t.Run("offline remote falls back to local", func(t *testing.T) {
		f := setupService(t, true)
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, nil)))
		f.server.SetOffline(true)

		got, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(3), got.Position)
		f.server.SetOffline(false)
		_, ok := f.server.Progress("b1")
		assert.False(t, ok)
	})

	t.Run("no session reads local only", func(t *testing.T) {
		f := setupService(t, false)
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, nil)))

		got, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(3), got.Position)
	})

	t.Run("converges after both sides are read", func(t *testing.T) {
		f := setupService(t, true)
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, entities.Bool(false))))
		f.server.SetProgress("b1", remote.Progress{Updated: 20, Position: 8, Completed: entities.Bool(false)})

		_, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)

		local, err := f.progress.Find(ctx, "b1")
		require.NoError(t, err)
		rp, ok := f.server.Progress("b1")
		require.True(t, ok)
		assert.True(t, local.Same(rp.Record("b1")))
	})

	t.Run("completed winner is moved to the end of the book", func(t *testing.T) {
		f := setupService(t, true)
		require.NoError(t, f.books.Put(ctx, &entities.Book{ID: "b1", Title: "One", Size: 24}))
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, entities.Bool(false))))
		f.server.SetProgress("b1", remote.Progress{Updated: 20, Position: 5, Completed: entities.Bool(true)})

		got, err := f.svc.Read(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(24), got.Position)
		assert.True(t, got.IsCompleted())

		stored, err := f.progress.Find(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(24), stored.Position)
		pushed, ok := f.server.Progress("b1")
		require.True(t, ok)
		assert.Equal(t, float64(24), pushed.Position)
	})
}

func TestService_Peek(t *testing.T) {
	ctx := context.Background()
	f := setupService(t, true)
	f.server.SetProgress("remote-only", remote.Progress{Updated: 20, Position: 8})

	got, err := f.svc.Peek(ctx, "remote-only")
	require.NoError(t, err)
	assert.Equal(t, float64(8), got.Position)

	stored, err := f.progress.Find(ctx, "remote-only")
	require.NoError(t, err)
	assert.Nil(t, stored, "nothing is written locally")
}

func TestService_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("stores locally and pushes", func(t *testing.T) {
		f := setupService(t, true)

		got, err := f.svc.Write(ctx, "b1", 4, entities.Bool(false))
		require.NoError(t, err)
		assert.Equal(t, int64(50_000), got.Updated)

		stored, err := f.progress.Find(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(4), stored.Position)

		pushed, ok := f.server.Progress("b1")
		require.True(t, ok)
		assert.Equal(t, int64(50_000), pushed.Updated)
	})

	t.Run("offline push does not fail the write", func(t *testing.T) {
		f := setupService(t, true)
		f.server.SetOffline(true)

		_, err := f.svc.Write(ctx, "b1", 4, nil)
		require.NoError(t, err)

		stored, err := f.progress.Find(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, float64(4), stored.Position)
	})

	t.Run("completed raises position to size", func(t *testing.T) {
		f := setupService(t, false)
		require.NoError(t, f.books.Put(ctx, &entities.Book{ID: "b1", Title: "One", Size: 24}))

		got, err := f.svc.Write(ctx, "b1", 20, entities.Bool(true))
		require.NoError(t, err)
		assert.Equal(t, float64(24), got.Position)
	})

	t.Run("unknown completion keeps local value", func(t *testing.T) {
		f := setupService(t, false)
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, entities.Bool(true))))

		got, err := f.svc.Write(ctx, "b1", 5, nil)
		require.NoError(t, err)
		assert.True(t, got.IsCompleted())
	})

	t.Run("rejects negative position", func(t *testing.T) {
		f := setupService(t, false)

		_, err := f.svc.Write(ctx, "b1", -1, nil)
		assert.ErrorIs(t, err, ErrInvalidPosition)
	})
}

func TestService_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("reconciles every book", func(t *testing.T) {
		f := setupService(t, true)
		require.NoError(t, f.books.Put(ctx, &entities.Book{ID: "b1", Title: "One"}))
		require.NoError(t, f.books.Put(ctx, &entities.Book{ID: "b2", Title: "Two"}))
		require.NoError(t, f.progress.Save(ctx, rec2("b1", 10, 3, nil)))
		f.server.SetProgress("b2", remote.Progress{Updated: 5, Position: 2})

		result, err := f.svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, SweepResult{Books: 2}, result)

		_, ok := f.server.Progress("b1")
		assert.True(t, ok)
		local, err := f.progress.Find(ctx, "b2")
		require.NoError(t, err)
		require.NotNil(t, local)
		assert.Equal(t, float64(2), local.Position)
	})

	t.Run("skips without session", func(t *testing.T) {
		f := setupService(t, false)
		require.NoError(t, f.books.Put(ctx, &entities.Book{ID: "b1", Title: "One"}))

		result, err := f.svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Books)
	})
}

func rec2(bookID string, updated int64, position float64, completed *bool) *entities.Progress {
	p := rec(updated, position, completed)
	p.BookID = bookID
	return p
}
