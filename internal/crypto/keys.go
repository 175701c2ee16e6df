package crypto

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvEncryptionKey is the environment variable for the encryption key
	EnvEncryptionKey = "TOKEN_ENCRYPTION_KEY"

	// DefaultKeyFileName is created next to the database when no key is configured
	DefaultKeyFileName = ".readerclient-token-key"
)

// KeyConfig selects where the session encryption key comes from.
type KeyConfig struct {
	// Key is a base64 32 byte key or, failing that, a passphrase.
	Key string

	// KeyFilePath holds a generated key when Key and the environment are empty.
	// Defaults to DefaultKeyFileName in the working directory.
	KeyFilePath string
}

// ResolveEncryptor picks the key in priority order: explicit config, the
// TOKEN_ENCRYPTION_KEY environment variable, then a key file that is
// generated on first use.
func ResolveEncryptor(cfg KeyConfig) (*Encryptor, error) {
	if cfg.Key != "" {
		return fromSecret(cfg.Key)
	}

	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return fromSecret(envKey)
	}

	path := cfg.KeyFilePath
	if path == "" {
		path = DefaultKeyFileName
	}

	if data, err := os.ReadFile(path); err == nil {
		return NewEncryptorFromBase64(strings.TrimSpace(string(data)))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return nil, fmt.Errorf("failed to save encryption key to %s: %w", path, err)
	}
	log.Printf("Generated new session encryption key at %s", path)

	return NewEncryptorFromBase64(key)
}

// fromSecret accepts a base64 encoded key and treats anything else as a
// passphrase.
func fromSecret(secret string) (*Encryptor, error) {
	if key, err := base64.StdEncoding.DecodeString(secret); err == nil && len(key) == KeySize {
		return NewEncryptor(key)
	}
	return NewEncryptorFromPassphrase(secret)
}
