// Package interfaces documents the core abstractions used throughout the application.
//
// Consumers declare the narrow interface they need next to their own code;
// concrete types are wired together in internal/entrypoint.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - BookStore, BlobStore, ProgressStore: the local store partitions
//     (internal/services, internal/content, internal/reconcile)
//   - SettingStore: opaque reader settings (internal/content, internal/http)
//   - SessionStore: the single remote login (internal/remote)
//
// ## Remote Interfaces
//
//   - ClientFactory: a client bound to the current session. Every consumer
//     asks remote.Connector per call, so no component keeps a stale token.
//
// ## Gateway Interfaces
//
//   - Library, ContentReader, ProgressSyncer, RemoteConnector,
//     MetadataScheduler: what the HTTP controllers call (internal/http/stores.go)
//
// ## Background Interfaces
//
//   - tasks.Library: work run by the task queue
//   - scheduler.OrphanCollector, scheduler.ProgressSweeper: cron jobs
//
// # Adding a New Database Partition
//
//  1. Add the entity to internal/entities and list it in Partitions(). Bump
//     SchemaVersion; the store is recreated on the next start.
//
//  2. Create sub-package internal/database/<name>/ embedding the generic
//     collection:
//
//     type Repository struct {
//         *database.Collection[entities.Thing]
//     }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Add compile-time checks for the interfaces it serves.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go.
package interfaces
