package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// OrphanCollector removes blobs that no record accounts for.
type OrphanCollector interface {
	CollectOrphans(ctx context.Context) (int, error)
}

// CollectOrphansTask deletes blobs without a matching book record.
type CollectOrphansTask struct{}

// Config returns the queue configuration for orphan collection tasks.
func (t CollectOrphansTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "collect_orphans",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CollectOrphansProcessor creates a processor function for CollectOrphansTask.
func CollectOrphansProcessor(collector OrphanCollector) backlite.QueueProcessor[CollectOrphansTask] {
	return func(ctx context.Context, task CollectOrphansTask) error {
		if collector == nil {
			return fmt.Errorf("orphan collector not configured")
		}

		removed, err := collector.CollectOrphans(ctx)
		if err != nil {
			return fmt.Errorf("collect orphans: %w", err)
		}

		log.Printf("Tasks: Removed %d orphan blobs", removed)
		return nil
	}
}

// NewCollectOrphansQueue creates a backlite queue for orphan collection tasks.
func NewCollectOrphansQueue(collector OrphanCollector) backlite.Queue {
	return backlite.NewQueue(CollectOrphansProcessor(collector))
}
