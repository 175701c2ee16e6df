package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Remote
		Content
		Crypto
		Tasks
		Maintenance
	}

	HTTP struct {
		Port int32
		Host string
		// UpstreamURL receives every request the gateway does not handle.
		UpstreamURL string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Remote struct {
		Timeout   time.Duration // zero means no client timeout
		RateLimit int           // requests per second
		RateBurst int
	}
	Content struct {
		ChunkThresholdBytes int64
		DownloadConcurrency int
	}
	Crypto struct {
		TokenEncryptionKey string
		TokenKeyFile       string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Maintenance struct {
		OrphanGCSchedule      string // Cron format, empty disables
		ProgressSweepEnabled  bool
		ProgressSweepSchedule string
	}
)

// LoadEnvFile reads KEY=value pairs from path into the environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("upstream_url", "")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote library defaults
	v.SetDefault("remote_timeout", "0s")
	v.SetDefault("remote_rate_limit", 50)
	v.SetDefault("remote_rate_burst", 100)

	// Content layout defaults
	v.SetDefault("chunk_threshold_bytes", DefaultChunkThresholdBytes)
	v.SetDefault("download_concurrency", 4)

	// Session token encryption
	v.SetDefault("token_encryption_key", "")
	v.SetDefault("token_key_file", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Maintenance defaults
	v.SetDefault("orphan_gc_schedule", "0 4 * * *")         // Daily at 04:00
	v.SetDefault("progress_sweep_enabled", true)            // Only runs with a session
	v.SetDefault("progress_sweep_schedule", "*/30 * * * *") // Every 30 minutes

	return &Config{
		HTTP: HTTP{
			Port:        v.GetInt32("PORT"),
			Host:        v.GetString("HOST"),
			UpstreamURL: v.GetString("UPSTREAM_URL"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Remote: Remote{
			Timeout:   v.GetDuration("REMOTE_TIMEOUT"),
			RateLimit: v.GetInt("REMOTE_RATE_LIMIT"),
			RateBurst: v.GetInt("REMOTE_RATE_BURST"),
		},
		Content: Content{
			ChunkThresholdBytes: v.GetInt64("CHUNK_THRESHOLD_BYTES"),
			DownloadConcurrency: v.GetInt("DOWNLOAD_CONCURRENCY"),
		},
		Crypto: Crypto{
			TokenEncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
			TokenKeyFile:       v.GetString("TOKEN_KEY_FILE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Maintenance: Maintenance{
			OrphanGCSchedule:      v.GetString("ORPHAN_GC_SCHEDULE"),
			ProgressSweepEnabled:  v.GetBool("PROGRESS_SWEEP_ENABLED"),
			ProgressSweepSchedule: v.GetString("PROGRESS_SWEEP_SCHEDULE"),
		},
	}
}

// SweepSchedule is the progress sweep schedule, empty when disabled.
func (m Maintenance) SweepSchedule() string {
	if !m.ProgressSweepEnabled {
		return ""
	}
	return m.ProgressSweepSchedule
}
