package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/readerclient/internal/content"
	"github.com/mrlokans/readerclient/internal/crypto"
	"github.com/mrlokans/readerclient/internal/database/blobs"
	"github.com/mrlokans/readerclient/internal/database/books"
	"github.com/mrlokans/readerclient/internal/database/progress"
	"github.com/mrlokans/readerclient/internal/database/sessions"
	"github.com/mrlokans/readerclient/internal/database/settings"
	"github.com/mrlokans/readerclient/internal/http"
	"github.com/mrlokans/readerclient/internal/reconcile"
	"github.com/mrlokans/readerclient/internal/remote"
	"github.com/mrlokans/readerclient/internal/scheduler"
	"github.com/mrlokans/readerclient/internal/services"
	"github.com/mrlokans/readerclient/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ services.BookStore = (*books.Repository)(nil)
var _ content.BookStore = (*books.Repository)(nil)
var _ reconcile.BookStore = (*books.Repository)(nil)

var _ services.BlobStore = (*blobs.Repository)(nil)
var _ content.BlobStore = (*blobs.Repository)(nil)

var _ services.ProgressStore = (*progress.Repository)(nil)
var _ reconcile.ProgressStore = (*progress.Repository)(nil)

var _ content.SettingStore = (*settings.Repository)(nil)
var _ http.SettingStore = (*settings.Repository)(nil)

// Session storage
var _ remote.SessionStore = (*sessions.Repository)(nil)
var _ sessions.Cipher = (*crypto.Encryptor)(nil)

// =============================================================================
// Remote Library
// =============================================================================

var _ services.ClientFactory = (*remote.Connector)(nil)
var _ content.ClientFactory = (*remote.Connector)(nil)
var _ reconcile.ClientFactory = (*remote.Connector)(nil)
var _ http.RemoteConnector = (*remote.Connector)(nil)

// =============================================================================
// Domain Services
// =============================================================================

var _ services.ContentStore = (*content.Handler)(nil)
var _ http.ContentReader = (*content.Handler)(nil)

var _ services.ProgressReader = (*reconcile.Service)(nil)
var _ http.ProgressSyncer = (*reconcile.Service)(nil)
var _ scheduler.ProgressSweeper = (*reconcile.Service)(nil)

var _ http.Library = (*services.LibraryService)(nil)
var _ tasks.Library = (*services.LibraryService)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.MetadataScheduler = (*tasks.Dispatcher)(nil)
var _ scheduler.OrphanCollector = (*tasks.Dispatcher)(nil)
