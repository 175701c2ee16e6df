package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// ErrStopped is returned when work is enqueued after the queue was stopped.
var ErrStopped = errors.New("task queue stopped")

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Client runs the gateway's background queues on a SQLite file next to
// the book store.
type Client struct {
	queue   *backlite.Client
	db      *sql.DB
	workers int
	state   atomic.Int32
}

// DBPath returns where the queue for the store at mainDBPath lives: the
// same directory, with a "-tasks" suffix before the extension.
func DBPath(mainDBPath string) string {
	dir := filepath.Dir(mainDBPath)
	base := filepath.Base(mainDBPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"-tasks"+ext)
}

func openQueueDB(path string, workers int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}
	// Workers plus the dispatcher and enqueueing requests.
	db.SetMaxOpenConns(workers + 2)
	db.SetMaxIdleConns(workers + 1)
	db.SetConnMaxIdleTime(10 * time.Minute)
	return db, nil
}

// NewClient opens the queue database for the store at mainDBPath and
// installs the backlite schema.
func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}

	path := DBPath(mainDBPath)
	db, err := openQueueDB(path, cfg.Workers)
	if err != nil {
		return nil, err
	}

	queue, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLogger{},
	})
	if err == nil {
		err = queue.Install()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up task queue at %s: %w", path, err)
	}

	return &Client{queue: queue, db: db, workers: cfg.Workers}, nil
}

// Register adds queues. Call it before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.queue.Register(q)
	}
}

// Start processes tasks until ctx ends or Stop is called. A second call,
// or a call after Stop, does nothing.
func (c *Client) Start(ctx context.Context) {
	if !c.state.CompareAndSwap(stateIdle, stateRunning) {
		return
	}
	log.Printf("Tasks: queue started with %d workers", c.workers)
	c.queue.Start(ctx)
}

// Stop waits for running tasks to finish. It reports false when ctx ended
// first.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.state.CompareAndSwap(stateRunning, stateStopped) {
		c.state.CompareAndSwap(stateIdle, stateStopped)
		return true
	}

	if !c.queue.Stop(ctx) {
		log.Printf("Tasks: queue stopped before all tasks finished")
		return false
	}
	log.Printf("Tasks: queue stopped")
	return true
}

// Close releases the queue database. Call it after Stop.
func (c *Client) Close() error {
	return c.db.Close()
}

// Enqueue stores one task and returns its id.
func (c *Client) Enqueue(ctx context.Context, task backlite.Task) (string, error) {
	if c.state.Load() == stateStopped {
		return "", ErrStopped
	}
	ids, err := c.queue.Add(task).Ctx(ctx).Save()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", task.Config().Name, err)
	}
	return ids[0], nil
}

func (c *Client) Workers() int {
	return c.workers
}

// queueLogger prints backlite's key/value pairs after the message.
type queueLogger struct{}

func (queueLogger) Info(message string, params ...any) {
	log.Printf("Tasks: %s%s", message, pairs(params))
}

func (queueLogger) Error(message string, params ...any) {
	log.Printf("Tasks: error: %s%s", message, pairs(params))
}

func pairs(params []any) string {
	var b strings.Builder
	for i := 0; i < len(params); i += 2 {
		if i+1 == len(params) {
			fmt.Fprintf(&b, " %v", params[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", params[i], params[i+1])
	}
	return b.String()
}
