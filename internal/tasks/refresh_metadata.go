package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/readerclient/internal/remote"
)

// MetadataRefresher updates local records from the library server.
type MetadataRefresher interface {
	RefreshMetadata(ctx context.Context, ids ...string) (int, error)
}

// RefreshMetadataTask pulls titles, collections and covers for local
// books. An empty BookIDs refreshes the whole library.
type RefreshMetadataTask struct {
	BookIDs []string `json:"book_ids,omitempty"`
}

// Config returns the queue configuration for metadata refresh tasks.
func (t RefreshMetadataTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_metadata",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RefreshMetadataProcessor creates a processor function for RefreshMetadataTask.
// A missing session is not retried; an unreachable server is.
func RefreshMetadataProcessor(refresher MetadataRefresher) backlite.QueueProcessor[RefreshMetadataTask] {
	return func(ctx context.Context, task RefreshMetadataTask) error {
		if refresher == nil {
			return fmt.Errorf("metadata refresher not configured")
		}

		updated, err := refresher.RefreshMetadata(ctx, task.BookIDs...)
		if errors.Is(err, remote.ErrNoSession) {
			log.Printf("Tasks: Metadata refresh skipped: not logged in")
			return nil
		}
		if err != nil {
			return fmt.Errorf("refresh metadata: %w", err)
		}

		log.Printf("Tasks: Refreshed metadata for %d books", updated)
		return nil
	}
}

// NewRefreshMetadataQueue creates a backlite queue for metadata refresh tasks.
func NewRefreshMetadataQueue(refresher MetadataRefresher) backlite.Queue {
	return backlite.NewQueue(RefreshMetadataProcessor(refresher))
}
