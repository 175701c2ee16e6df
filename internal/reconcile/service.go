package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/entities"
	"github.com/mrlokans/readerclient/internal/remote"
)

var ErrInvalidPosition = errors.New("position must not be negative")

type ProgressStore interface {
	Find(ctx context.Context, bookID string) (*entities.Progress, error)
	Save(ctx context.Context, record *entities.Progress) error
}

type BookStore interface {
	Get(ctx context.Context, key string, fields ...string) (*entities.Book, error)
	IDs(ctx context.Context) ([]string, error)
}

type ClientFactory interface {
	Client(ctx context.Context) (*remote.Client, error)
}

// Service reads and writes progress through both stores.
type Service struct {
	progress ProgressStore
	books    BookStore
	clients  ClientFactory
	now      func() time.Time
}

func NewService(progress ProgressStore, books BookStore, clients ClientFactory) *Service {
	return &Service{
		progress: progress,
		books:    books,
		clients:  clients,
		now:      time.Now,
	}
}

// remoteView is what a read learned about the server's copy. reachable is
// false when the server could not be asked, in which case nothing is
// pushed to it.
type remoteView struct {
	client    *remote.Client
	record    *entities.Progress
	reachable bool
}

func (s *Service) fetchRemote(ctx context.Context, bookID string) remoteView {
	client, err := s.clients.Client(ctx)
	if err != nil {
		if !errors.Is(err, remote.ErrNoSession) {
			log.Printf("Reconcile: no remote client for %s: %v", bookID, err)
		}
		return remoteView{}
	}

	p, err := client.Progress(ctx, bookID)
	switch {
	case err == nil:
		return remoteView{client: client, record: p.Record(bookID), reachable: true}
	case errors.Is(err, remote.ErrNotFound):
		return remoteView{client: client, reachable: true}
	default:
		log.Printf("Reconcile: remote progress for %s unavailable: %v", bookID, err)
		return remoteView{}
	}
}

// Read returns the reconciled progress for a book, repairing whichever
// side is behind. Remote failures degrade to the local copy; local
// failures are returned.
func (s *Service) Read(ctx context.Context, bookID string) (*entities.Progress, error) {
	return s.read(ctx, bookID, true)
}

// Peek returns the reconciled progress without writing to either side.
// It serves books that have no local record.
func (s *Service) Peek(ctx context.Context, bookID string) (*entities.Progress, error) {
	return s.read(ctx, bookID, false)
}

func (s *Service) read(ctx context.Context, bookID string, repair bool) (*entities.Progress, error) {
	local, err := s.progress.Find(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load local progress: %w", err)
	}

	rv := s.fetchRemote(ctx, bookID)
	d := Resolve(local, rv.record)
	d.Winner.BookID = bookID

	clamped, err := s.clampCompleted(ctx, d.Winner)
	if err != nil {
		return nil, err
	}
	if clamped {
		d.WriteLocal = !d.Winner.Same(local)
		d.WriteRemote = !d.Winner.Same(rv.record)
	}
	if !repair {
		return d.Winner, nil
	}

	if d.WriteLocal {
		if err := s.progress.Save(ctx, clone(d.Winner)); err != nil {
			return nil, fmt.Errorf("failed to store reconciled progress: %w", err)
		}
	}
	if d.WriteRemote && rv.reachable {
		if err := rv.client.UpdateProgress(ctx, bookID, remote.ProgressFrom(d.Winner)); err != nil {
			log.Printf("Reconcile: failed to push progress for %s: %v", bookID, err)
		}
	}
	return d.Winner, nil
}

// clampCompleted moves a completed record to the end of the book. It
// reports whether the position changed.
func (s *Service) clampCompleted(ctx context.Context, p *entities.Progress) (bool, error) {
	if !p.IsCompleted() {
		return false, nil
	}
	size, err := s.bookSize(ctx, p.BookID)
	if err != nil {
		return false, err
	}
	if size <= 0 || p.Position >= float64(size) {
		return false, nil
	}
	p.Position = float64(size)
	return true, nil
}

// Write records a new position stamped with the current time. The local
// write must succeed; the remote push is best effort. A nil completed
// keeps what the local copy already knows.
func (s *Service) Write(ctx context.Context, bookID string, position float64, completed *bool) (*entities.Progress, error) {
	if position < 0 {
		return nil, ErrInvalidPosition
	}

	if completed == nil {
		existing, err := s.progress.Find(ctx, bookID)
		if err != nil {
			return nil, fmt.Errorf("failed to load local progress: %w", err)
		}
		if existing != nil && existing.Completed != nil {
			completed = entities.Bool(*existing.Completed)
		}
	}

	record := &entities.Progress{
		BookID:    bookID,
		Updated:   s.now().UnixMilli(),
		Position:  position,
		Completed: completed,
	}
	if _, err := s.clampCompleted(ctx, record); err != nil {
		return nil, err
	}
	if err := s.progress.Save(ctx, clone(record)); err != nil {
		return nil, fmt.Errorf("failed to store progress: %w", err)
	}

	client, err := s.clients.Client(ctx)
	if err != nil {
		return record, nil
	}
	if err := client.UpdateProgress(ctx, bookID, remote.ProgressFrom(record)); err != nil {
		log.Printf("Reconcile: failed to push progress for %s: %v", bookID, err)
	}
	return record, nil
}

func (s *Service) bookSize(ctx context.Context, bookID string) (int, error) {
	book, err := s.books.Get(ctx, bookID, "id", "size")
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load book size: %w", err)
	}
	return book.Size, nil
}

// SweepResult summarises one pass over the library.
type SweepResult struct {
	Books  int
	Failed int
}

// Sweep reconciles every local book. It does nothing without a session.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	if _, err := s.clients.Client(ctx); err != nil {
		if remote.IsUnavailable(err) {
			return SweepResult{}, nil
		}
		return SweepResult{}, err
	}

	ids, err := s.books.IDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list books: %w", err)
	}

	var result SweepResult
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Books++
		if _, err := s.Read(ctx, id); err != nil {
			result.Failed++
			log.Printf("Reconcile: sweep failed for %s: %v", id, err)
		}
	}
	return result, nil
}
