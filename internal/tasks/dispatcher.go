package tasks

import (
	"context"
	"log"
)

// Library is the work the background queues perform.
// services.LibraryService satisfies it.
type Library interface {
	MetadataRefresher
	OrphanCollector
}

// Dispatcher hands background work to the task queue, or runs it
// directly when the queue is disabled.
type Dispatcher struct {
	client  *Client
	library Library
}

// NewDispatcher registers the queues on client. A nil client runs every
// task in its own goroutine instead.
func NewDispatcher(client *Client, library Library) *Dispatcher {
	if client != nil {
		client.Register(
			NewRefreshMetadataQueue(library),
			NewCollectOrphansQueue(library),
		)
	}
	return &Dispatcher{client: client, library: library}
}

// RefreshMetadata schedules a metadata refresh for ids, or every book.
func (d *Dispatcher) RefreshMetadata(ctx context.Context, ids ...string) error {
	task := RefreshMetadataTask{BookIDs: ids}
	if d.client == nil {
		go d.inline(ctx, "refresh_metadata", func(ctx context.Context) error {
			return RefreshMetadataProcessor(d.library)(ctx, task)
		})
		return nil
	}
	_, err := d.client.Enqueue(ctx, task)
	return err
}

// CollectOrphans schedules an orphan blob sweep.
func (d *Dispatcher) CollectOrphans(ctx context.Context) error {
	if d.client == nil {
		d.inline(ctx, "collect_orphans", func(ctx context.Context) error {
			return CollectOrphansProcessor(d.library)(ctx, CollectOrphansTask{})
		})
		return nil
	}
	_, err := d.client.Enqueue(ctx, CollectOrphansTask{})
	return err
}

// inline runs fn detached from the caller's cancellation so a finished
// request does not abort it.
func (d *Dispatcher) inline(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		log.Printf("Tasks: error: %s: %v", name, err)
	}
}
