package store

import (
	"context"
	"fmt"

	"github.com/okolovich/offsync/internal/config"
	"github.com/okolovich/offsync/internal/logger"
)

// Storages groups all engine repositories into a single value that can be
// passed around the service layer.
type Storages struct {
	// Queue is the durable general offline queue.
	Queue QueueRepository
	// Critical is the retention-exempt critical-protected snapshot.
	Critical CriticalRepository
	// Conflicts is the outstanding-conflict set.
	Conflicts ConflictRepository
	// Meta holds small engine metadata (device id, last sync time).
	Meta MetaRepository

	db *DB
}

// Close releases the shared database connection. Safe to call once the
// service layer has fully stopped.
func (s *Storages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewStorages initialises the persistence layer using the supplied
// configuration and logger. It performs the following steps:
//  1. Opens an SQLite connection to the file path specified in cfg.DB.DSN,
//     creating the database file if it does not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Constructs and returns a [Storages] value wired to fresh repositories
//     sharing that connection.
//
// Returns an error if the database connection cannot be established or if
// migration fails.
func NewStorages(cfg config.Storage, logger *logger.Logger) (*Storages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(context.Background(), cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Storages{
		Queue:     NewQueueRepository(db, logger),
		Critical:  NewCriticalRepository(db, logger),
		Conflicts: NewConflictRepository(db, logger),
		Meta:      NewMetaRepository(db, logger),
		db:        db,
	}, nil
}
