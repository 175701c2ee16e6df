package entrypoint

import (
	"fmt"
	"path/filepath"

	"github.com/mrlokans/readerclient/internal/config"
	"github.com/mrlokans/readerclient/internal/content"
	"github.com/mrlokans/readerclient/internal/crypto"
	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/database/blobs"
	"github.com/mrlokans/readerclient/internal/database/books"
	"github.com/mrlokans/readerclient/internal/database/progress"
	"github.com/mrlokans/readerclient/internal/database/sessions"
	"github.com/mrlokans/readerclient/internal/database/settings"
	"github.com/mrlokans/readerclient/internal/reconcile"
	"github.com/mrlokans/readerclient/internal/remote"
	"github.com/mrlokans/readerclient/internal/services"
)

// App holds the components shared by the server and the maintenance
// commands.
type App struct {
	Config *config.Config
	DB     *database.Database

	Books    *books.Repository
	Blobs    *blobs.Repository
	Progress *progress.Repository
	Settings *settings.Repository
	Sessions *sessions.Repository

	Connector *remote.Connector
	Content   *content.Handler
	Sync      *reconcile.Service
	Library   *services.LibraryService
}

// KeyFilePath is where the session key is kept when none is configured:
// next to the database.
func KeyFilePath(cfg *config.Config) string {
	if cfg.Crypto.TokenKeyFile != "" {
		return cfg.Crypto.TokenKeyFile
	}
	return filepath.Join(filepath.Dir(cfg.Database.Path), crypto.DefaultKeyFileName)
}

// Open opens the local store and wires every component on top of it.
func Open(cfg *config.Config) (*App, error) {
	encryptor, err := crypto.ResolveEncryptor(crypto.KeyConfig{
		Key:         cfg.Crypto.TokenEncryptionKey,
		KeyFilePath: KeyFilePath(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up session encryption: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       db,
		Books:    books.NewRepository(db.DB),
		Blobs:    blobs.NewRepository(db.DB),
		Progress: progress.NewRepository(db.DB),
		Settings: settings.NewRepository(db.DB),
		Sessions: sessions.NewRepository(db.DB, encryptor),
	}

	httpClient := remote.NewHTTPClient(remote.HTTPConfig{
		Timeout:       cfg.Remote.Timeout,
		RatePerSecond: cfg.Remote.RateLimit,
		Burst:         cfg.Remote.RateBurst,
	})
	app.Connector = remote.NewConnector(app.Sessions, httpClient)

	app.Content = content.NewHandler(app.Blobs, app.Books, app.Settings, app.Connector, content.Config{
		Threshold:   cfg.Content.ChunkThresholdBytes,
		Concurrency: cfg.Content.DownloadConcurrency,
	})
	app.Sync = reconcile.NewService(app.Progress, app.Books, app.Connector)
	app.Library = services.NewLibraryService(app.Books, app.Blobs, app.Progress, app.Content, app.Sync, app.Connector, "")

	return app, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
