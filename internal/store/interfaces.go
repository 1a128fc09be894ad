package store

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

import (
	"context"
	"time"

	"github.com/okolovich/offsync/models"
)

// QueueRepository persists the general offline queue. Rows are keyed by
// entity id; re-upserting an id updates the existing slot rather than
// creating a duplicate.
type QueueRepository interface {
	// Upsert inserts the entity or replaces the queue slot with the same id.
	Upsert(ctx context.Context, entity models.SyncableEntity) error

	// Get returns the queued entity with the given id, or ErrEntityNotFound.
	Get(ctx context.Context, id string) (models.SyncableEntity, error)

	// List returns queued entities ordered by priority descending, then
	// last-modified descending. statuses filters by sync status when
	// non-empty.
	List(ctx context.Context, statuses ...models.SyncStatus) ([]models.SyncableEntity, error)

	// UpdateStatus rewrites the sync status of one queue slot.
	UpdateStatus(ctx context.Context, id string, status models.SyncStatus) error

	// Remove deletes the queue slot. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error

	// PruneOlderThan deletes unsynced non-critical entities enqueued before
	// the cutoff and reports how many rows were removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats aggregates queue counters for the observability surface.
	Stats(ctx context.Context) (models.QueueStats, error)
}

// CriticalRepository is the retention-exempt snapshot of critical entities.
// Rows are only removed once the entity has actually synced.
type CriticalRepository interface {
	Save(ctx context.Context, entity models.SyncableEntity) error
	Get(ctx context.Context, id string) (models.SyncableEntity, error)
	List(ctx context.Context) ([]models.SyncableEntity, error)
	Remove(ctx context.Context, id string) error
}

// ConflictRepository persists the outstanding-conflict set together with the
// server copy needed for later (possibly manual) resolution.
type ConflictRepository interface {
	Save(ctx context.Context, conflict StoredConflict) error
	Get(ctx context.Context, entityID string) (StoredConflict, error)
	List(ctx context.Context) ([]StoredConflict, error)
	Remove(ctx context.Context, entityID string) error
}

// MetaRepository stores small engine metadata values (device id, last sync
// timestamp) as strings keyed by name.
type MetaRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// StoredConflict pairs a detected conflict with the server's entity copy at
// detection time so resolution never needs another round-trip.
type StoredConflict struct {
	models.SyncConflict
	ServerEntity models.SyncableEntity
}

// Meta keys used by the engine.
const (
	MetaDeviceID     = "device_id"
	MetaLastSyncTime = "last_sync_time"
)
