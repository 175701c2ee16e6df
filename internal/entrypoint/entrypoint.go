package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readerclient/internal/config"
	http_controllers "github.com/mrlokans/readerclient/internal/http"
	"github.com/mrlokans/readerclient/internal/scheduler"
	"github.com/mrlokans/readerclient/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	if cfg.HTTP.UpstreamURL == "" {
		log.Printf("WARNING: UPSTREAM_URL is not set. Requests outside the gateway routes will answer 404.")
	}

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener goes away
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting readerclient v%s", version)

	app, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize local store: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()
	} else {
		log.Printf("Task queue disabled, background work runs inline")
	}
	dispatcher := tasks.NewDispatcher(taskClient, app.Library)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if taskClient != nil {
		go taskClient.Start(bgCtx)
	}

	maintenance := scheduler.NewMaintenanceScheduler(dispatcher, app.Sync, scheduler.Config{
		OrphanGCSchedule:      cfg.Maintenance.OrphanGCSchedule,
		ProgressSweepSchedule: cfg.Maintenance.SweepSchedule(),
	})
	if err := maintenance.Start(bgCtx); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	router, err := http_controllers.NewRouter(http_controllers.RouterConfig{
		Library:     app.Library,
		Content:     app.Content,
		Progress:    app.Sync,
		Remote:      app.Connector,
		Settings:    app.Settings,
		Metadata:    dispatcher,
		Database:    app.DB,
		UpstreamURL: cfg.HTTP.UpstreamURL,
		Version:     version,
	})
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	onShutdown := func(ctx context.Context) {
		maintenance.Stop()
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		bgCancel()
	}

	Serve(router, cfg, onShutdown)
}
