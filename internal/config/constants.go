package config

const (
	// DefaultDatabasePath is the default path for the local book store
	DefaultDatabasePath = "./readerclient.db"

	// DefaultPort is the port the reader UI expects the gateway on
	DefaultPort = 10002

	// DefaultChunkThresholdBytes is used until the maxUnchunkedSize setting is stored
	DefaultChunkThresholdBytes = 100 << 20

	// DefaultEnvFile is loaded if present before reading the environment
	DefaultEnvFile = ".env"
)
