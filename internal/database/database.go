package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readerclient/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the local store and brings the schema to the current
// version. A schema mismatch drops every partition and recreates it.
func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger: newLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.ensureSchema(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return database, nil
}

// dsn enables WAL and a busy timeout so concurrent request handlers
// interleave their writes instead of failing with SQLITE_BUSY.
func dsn(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_journal=WAL&_timeout=5000&_busy_timeout=5000"
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger reports slow queries and failures. Cache misses surface as
// gorm.ErrRecordNotFound on every lookup and are not logged.
func newLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// SchemaVersion returns the version recorded in the store.
func (d *Database) SchemaVersion() (string, error) {
	var meta entities.SchemaMeta
	err := d.DB.Where("key = ?", entities.SchemaMetaVersionKey).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return meta.Value, nil
}

func (d *Database) ensureSchema() error {
	if err := d.DB.AutoMigrate(&entities.SchemaMeta{}); err != nil {
		return err
	}

	stored, err := d.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if stored != entities.SchemaVersion {
		if stored != "" {
			log.Printf("Schema version changed (%s -> %s), recreating local store", stored, entities.SchemaVersion)
		}
		if err := d.DB.Migrator().DropTable(entities.Partitions()...); err != nil {
			return fmt.Errorf("failed to drop partitions: %w", err)
		}
	}

	if err := d.DB.AutoMigrate(entities.Partitions()...); err != nil {
		return err
	}

	meta := entities.SchemaMeta{Key: entities.SchemaMetaVersionKey, Value: entities.SchemaVersion}
	return d.DB.Save(&meta).Error
}
