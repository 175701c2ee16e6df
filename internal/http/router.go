// Package http is the gateway the reader UI talks to. Every route answers
// in the library server's own shapes, so the UI cannot tell whether a
// response came from the local store or the server. Unmatched paths are
// reverse-proxied to the upstream.
package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	upstream, err := NewUpstreamProxy(cfg.UpstreamURL)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	healthController := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", healthController.Status)

	libraryController := NewLibraryController(cfg.Library)
	router.POST("/upload", libraryController.Upload)
	router.GET("/books", libraryController.List)
	router.GET("/bookmeta/:id", libraryController.Meta)
	router.POST("/download/:id", libraryController.Download)
	router.GET("/download/:id", libraryController.Download)
	router.POST("/delete/:id", libraryController.Delete)
	router.DELETE("/delete/:id", libraryController.Delete)

	contentController := NewContentController(cfg.Content)
	router.GET("/book/:id", contentController.Book)

	syncController := NewSyncController(cfg.Progress)
	router.GET("/sync/:id", syncController.Sync)

	remoteController := NewRemoteController(cfg.Remote, cfg.Metadata)
	router.POST("/login", remoteController.Login)
	router.GET("/search", remoteController.Search)
	router.GET("/verify", remoteController.Verify)
	router.GET("/collections", remoteController.Collections)

	settingsController := NewSettingsController(cfg.Settings)
	router.GET("/setting/*key", settingsController.Get)
	router.PUT("/setting/*key", settingsController.Put)
	router.DELETE("/settings", settingsController.Reset)

	router.NoRoute(upstream)

	return router, nil
}
