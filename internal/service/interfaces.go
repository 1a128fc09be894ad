package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

import (
	"context"
	"time"

	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

// QueueService is the durable, priority-ordered offline mutation queue.
// Every application write lands here first, online or not.
type QueueService interface {
	// Enqueue stamps the entity (device id, pending status, last-modified)
	// and persists it durably. A persistence failure surfaces synchronously.
	// Critical or safety-relevant entities additionally signal the
	// orchestrator for immediate sync when the network is reachable.
	Enqueue(ctx context.Context, entity models.SyncableEntity) error

	// DequeueBatch returns up to n entities eligible for sync, ordered by
	// priority descending then last-modified descending. Entities stay
	// queued until marked synced.
	DequeueBatch(ctx context.Context, n int) ([]models.SyncableEntity, error)

	// Snapshot returns every entity eligible for sync in drain order.
	Snapshot(ctx context.Context) ([]models.SyncableEntity, error)

	// Remove deletes an entity from the general queue without touching the
	// critical-protected snapshot.
	Remove(ctx context.Context, id string) error

	// MarkStatus persists a sync-status transition for one entity.
	MarkStatus(ctx context.Context, id string, status models.SyncStatus) error

	// MarkSynced marks the terminal success state: the entity leaves the
	// general queue and, if mirrored, the critical-protected snapshot.
	MarkSynced(ctx context.Context, id string) error

	// Prune drops unsynced non-critical entities older than the retention
	// window. Critical entities are never pruned by age, and mirrored
	// entities whose general-queue row was pruned are re-enqueued from
	// their snapshot.
	Prune(ctx context.Context) (int64, error)

	// ListCritical returns the retention-exempt snapshots of entities
	// that have not reached the synced state yet.
	ListCritical(ctx context.Context) ([]models.SyncableEntity, error)

	// RecoverStale resets entities stuck in the syncing state (for example
	// after a crash mid-pass) back to pending.
	RecoverStale(ctx context.Context) (int, error)

	// Stats reports the queryable queue counters.
	Stats(ctx context.Context) (models.QueueStats, error)

	// SetUrgentSignal installs the callback fired when a critical entity is
	// enqueued while the network is reachable.
	SetUrgentSignal(fn func())
}

// ConflictResolver detects version disagreement and applies the per-type
// resolution policy.
type ConflictResolver interface {
	// Detect compares local and server copies and returns the conflict
	// descriptor, or nil when the copies agree.
	Detect(local, server models.SyncableEntity) *models.SyncConflict

	// HandleDetected records a detected conflict and, when automatic
	// resolution is enabled, resolves it immediately. Returns nil when the
	// copies turn out to agree after all.
	HandleDetected(ctx context.Context, local, server models.SyncableEntity) (*models.SyncConflict, error)

	// Resolve applies a strategy to an outstanding conflict. An empty or
	// "auto" override applies the per-type policy table.
	Resolve(ctx context.Context, entityID string, override models.ResolutionStrategy) error

	// ListOutstanding returns unresolved conflicts for manual handling.
	ListOutstanding(ctx context.Context) ([]store.StoredConflict, error)
}

// Orchestrator drives queue draining in bounded batches.
type Orchestrator interface {
	// TriggerSync runs one sync pass. Concurrent calls return an empty
	// no-op result immediately; a later timer or event retriggers.
	TriggerSync(ctx context.Context) (models.SyncResult, error)

	// Subscribe registers a listener notified with the summary of every
	// completed pass. The returned function unsubscribes.
	Subscribe(listener func(models.SyncResult)) func()

	// LastSyncTime reports when the last pass completed, if ever.
	LastSyncTime(ctx context.Context) (time.Time, bool)
}

// Scheduler owns the periodic auto-sync job and the network-restore trigger.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
}
