// Package database provides the local store of the gateway.
//
// # Architecture
//
// The store is one SQLite file with five partitions, each exposed through a
// sub-package:
//
//	database/
//	├── database.go      # Connection setup, schema versioning
//	├── collection.go    # Generic put/get/getAll/delete/clear
//	├── books/           # Book records
//	├── blobs/           # Whole archives, member lists and members
//	├── progress/        # Reading positions
//	├── sessions/        # The single remote login
//	└── settings/        # Opaque client settings
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./readerclient.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	blobsRepo := blobs.NewRepository(db.DB)
//
//	book, err := booksRepo.Get(ctx, id)
//	if errors.Is(err, database.ErrNotFound) {
//		// not cached locally
//	}
//
// # Schema Versioning
//
// The schema is versioned as a whole. When entities.SchemaVersion differs
// from the version recorded in the file, every partition is dropped and
// recreated. There is no per-field migration.
package database
