package remote_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/remote"
	"github.com/mrlokans/readerclient/internal/remote/remotetest"
)

type memorySessions struct {
	session *entities.Session
}

func (m *memorySessions) Current(ctx context.Context) (*entities.Session, error) {
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *memorySessions) Replace(ctx context.Context, s *entities.Session) error {
	c := *s
	m.session = &c
	return nil
}

func newClient(t *testing.T, server, token string) *remote.Client {
	t.Helper()
	c, err := remote.NewClient(nil, server, token)
	require.NoError(t, err)
	c.SetRetryDelay(time.Millisecond)
	return c
}

func TestLogin(t *testing.T) {
	srv := remotetest.NewServer(t)
	ctx := context.Background()

	t.Run("returns token for valid credentials", func(t *testing.T) {
		token, err := remote.Login(ctx, nil, srv.URL, remotetest.DefaultUsername, remotetest.DefaultPassword)
		require.NoError(t, err)
		assert.Equal(t, remotetest.DefaultToken, token)
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		_, err := remote.Login(ctx, nil, srv.URL, remotetest.DefaultUsername, "nope")
		assert.ErrorIs(t, err, remote.ErrUnauthorized)
	})

	t.Run("rejects server without http scheme", func(t *testing.T) {
		_, err := remote.Login(ctx, nil, "ftp://example.com", "u", "p")
		assert.ErrorIs(t, err, remote.ErrInvalidServer)
	})
}

func TestClient_ErrorClassification(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.AddBook(remote.Book{ID: "b1", Title: "One", Format: entities.FormatCBZ}, nil)
	ctx := context.Background()

	t.Run("wrong token is unauthorized", func(t *testing.T) {
		_, err := newClient(t, srv.URL, "stale").Meta(ctx, "b1")
		assert.ErrorIs(t, err, remote.ErrUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, remote.StatusCode(err))
	})

	t.Run("unknown book is not found", func(t *testing.T) {
		_, err := newClient(t, srv.URL, remotetest.DefaultToken).Meta(ctx, "missing")
		assert.ErrorIs(t, err, remote.ErrNotFound)
	})

	t.Run("dropped connection is unavailable", func(t *testing.T) {
		srv.SetOffline(true)
		defer srv.SetOffline(false)

		_, err := newClient(t, srv.URL, remotetest.DefaultToken).Meta(ctx, "b1")
		assert.ErrorIs(t, err, remote.ErrUnavailable)
		assert.True(t, remote.IsUnavailable(err))
	})

	t.Run("closed server is unavailable", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()

		_, err := newClient(t, closed.URL, "t").Search(ctx, remote.SearchQuery{})
		assert.ErrorIs(t, err, remote.ErrUnavailable)
	})

	t.Run("sends bearer token", func(t *testing.T) {
		book, err := newClient(t, srv.URL, remotetest.DefaultToken).Meta(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "One", book.Title)
	})
}

func TestClient_RetriesServerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`[{"id":"b1","title":"One"}]`))
		}))
		defer srv.Close()

		books, err := newClient(t, srv.URL, "t").Search(ctx, remote.SearchQuery{Term: "one"})
		require.NoError(t, err)
		assert.Len(t, books, 1)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up with server error", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL, "t").Meta(ctx, "b1")
		var se *remote.ServerError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
		assert.Equal(t, "boom", se.Body)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry not found", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL, "t").Meta(ctx, "b1")
		assert.ErrorIs(t, err, remote.ErrNotFound)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_Content(t *testing.T) {
	srv := remotetest.NewServer(t)
	data := remotetest.Zip(t, "001.png", "a", "002.png", "b")
	srv.AddBook(remote.Book{ID: "b1", Title: "One", Format: entities.FormatCBZ}, data)
	c := newClient(t, srv.URL, remotetest.DefaultToken)
	ctx := context.Background()

	t.Run("whole archive", func(t *testing.T) {
		body, err := c.Archive(ctx, "b1")
		require.NoError(t, err)
		defer body.Close()
		got, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("member list", func(t *testing.T) {
		files, err := c.Files(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, []string{"001.png", "002.png"}, files)
		assert.Equal(t, 1, srv.Hits("/book/b1?files"))
	})

	t.Run("single member", func(t *testing.T) {
		got, err := c.File(ctx, "b1", "002.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), got)
	})

	t.Run("missing member", func(t *testing.T) {
		_, err := c.File(ctx, "b1", "nope.png")
		assert.ErrorIs(t, err, remote.ErrNotFound)
	})
}

func TestClient_Progress(t *testing.T) {
	srv := remotetest.NewServer(t)
	c := newClient(t, srv.URL, remotetest.DefaultToken)
	ctx := context.Background()

	t.Run("absent progress is not found", func(t *testing.T) {
		_, err := c.Progress(ctx, "b1")
		assert.ErrorIs(t, err, remote.ErrNotFound)
	})

	t.Run("update then read", func(t *testing.T) {
		want := remote.Progress{Updated: 1000, Position: 12, Completed: entities.Bool(true)}
		require.NoError(t, c.UpdateProgress(ctx, "b1", want))

		got, err := c.Progress(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, want, *got)
	})

	t.Run("null body is not found", func(t *testing.T) {
		nullSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("null"))
		}))
		defer nullSrv.Close()

		_, err := newClient(t, nullSrv.URL, "t").Progress(ctx, "b1")
		assert.ErrorIs(t, err, remote.ErrNotFound)
	})
}

func TestClient_Collections(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.SetCollections(`[{"name":"Manga","children":[]}]`)

	raw, err := newClient(t, srv.URL, remotetest.DefaultToken).Collections(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Manga","children":[]}]`, string(raw))
}

func TestConnector(t *testing.T) {
	srv := remotetest.NewServer(t)
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		conn := remote.NewConnector(&memorySessions{}, nil)

		_, err := conn.Client(ctx)
		assert.ErrorIs(t, err, remote.ErrNoSession)
		assert.True(t, remote.IsUnavailable(err))

		v, err := conn.Verify(ctx)
		require.NoError(t, err)
		assert.False(t, v.Connected)
	})

	t.Run("login stores session", func(t *testing.T) {
		store := &memorySessions{}
		conn := remote.NewConnector(store, nil)

		require.NoError(t, conn.Login(ctx, srv.URL+"/", remotetest.DefaultUsername, remotetest.DefaultPassword))
		require.NotNil(t, store.session)
		assert.Equal(t, srv.URL, store.session.Server)
		assert.Equal(t, remotetest.DefaultToken, store.session.Token)

		client, err := conn.Client(ctx)
		require.NoError(t, err)
		assert.Equal(t, srv.URL, client.Server())

		v, err := conn.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, v.Connected)
		assert.Equal(t, remotetest.DefaultUsername, v.Username)
	})

	t.Run("failed login keeps previous session", func(t *testing.T) {
		previous := &entities.Session{Server: "http://old.example", Username: "old", Token: "old-token"}
		store := &memorySessions{session: previous}
		conn := remote.NewConnector(store, nil)

		err := conn.Login(ctx, srv.URL, remotetest.DefaultUsername, "wrong")
		assert.ErrorIs(t, err, remote.ErrUnauthorized)
		assert.Equal(t, "old-token", store.session.Token)
	})

	t.Run("revoked token reports 401", func(t *testing.T) {
		store := &memorySessions{}
		conn := remote.NewConnector(store, nil)
		require.NoError(t, conn.Login(ctx, srv.URL, remotetest.DefaultUsername, remotetest.DefaultPassword))

		srv.SetToken("rotated")
		defer srv.SetToken(remotetest.DefaultToken)

		v, err := conn.Verify(ctx)
		require.NoError(t, err)
		assert.False(t, v.Connected)
		assert.Equal(t, http.StatusUnauthorized, v.Code)
	})
}

func TestNewHTTPClient(t *testing.T) {
	c := remote.NewHTTPClient(remote.HTTPConfig{})
	assert.Zero(t, c.Timeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	assert.Error(t, err)
}
