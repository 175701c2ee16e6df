package content

import (
	"context"

	"github.com/mrlokans/readerclient/internal/archive"
	"github.com/mrlokans/readerclient/internal/remote"
)

// Source yields the members of one archive.
type Source interface {
	Files(ctx context.Context) ([]string, error)
	File(ctx context.Context, name string) ([]byte, error)
}

type archiveSource struct {
	r *archive.Reader
}

// ArchiveSource reads members from an opened local archive.
func ArchiveSource(r *archive.Reader) Source {
	return archiveSource{r: r}
}

func (s archiveSource) Files(ctx context.Context) ([]string, error) {
	return s.r.Files(), nil
}

func (s archiveSource) File(ctx context.Context, name string) ([]byte, error) {
	return s.r.File(name)
}

type remoteSource struct {
	client *remote.Client
	bookID string
}

// RemoteSource reads members of bookID from the library server.
func RemoteSource(client *remote.Client, bookID string) Source {
	return remoteSource{client: client, bookID: bookID}
}

func (s remoteSource) Files(ctx context.Context) ([]string, error) {
	return s.client.Files(ctx, s.bookID)
}

func (s remoteSource) File(ctx context.Context, name string) ([]byte, error) {
	return s.client.File(ctx, s.bookID, name)
}
