package http

import (
	"github.com/mrlokans/readerclient/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Library  Library
	Content  ContentReader
	Progress ProgressSyncer
	Remote   RemoteConnector
	Settings SettingStore

	// Background metadata refresh after login (optional)
	Metadata MetadataScheduler

	// Health check
	Database *database.Database

	// UpstreamURL receives every request no route matches. Empty answers 404.
	UpstreamURL string

	// Application info
	Version string
}
