package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

// NetworkState is the narrow monitor view the queue needs: is a sync
// attempt worth signalling right now.
type NetworkState interface {
	SuitableForSync() bool
}

type queueService struct {
	storages *store.Storages
	network  NetworkState
	settings *Settings
	deviceID string
	logger   *logger.Logger

	mu     sync.RWMutex
	urgent func()
}

// NewQueueService constructs the offline queue on top of the persistence
// layer. deviceID is stamped onto every enqueued entity.
func NewQueueService(storages *store.Storages, network NetworkState, settings *Settings, deviceID string, log *logger.Logger) QueueService {
	if log == nil {
		log = logger.Nop()
	}
	return &queueService{
		storages: storages,
		network:  network,
		settings: settings,
		deviceID: deviceID,
		logger:   log,
	}
}

func (q *queueService) SetUrgentSignal(fn func()) {
	q.mu.Lock()
	q.urgent = fn
	q.mu.Unlock()
}

func (q *queueService) Enqueue(ctx context.Context, entity models.SyncableEntity) error {
	if entity.ID == "" {
		return ErrNoPayload
	}

	entity.DeviceID = q.deviceID
	entity.SyncStatus = models.StatusPending
	entity.LastModified = time.Now().UTC()

	if err := q.storages.Queue.Upsert(ctx, entity); err != nil {
		return fmt.Errorf("enqueue entity %s: %w", entity.ID, err)
	}

	urgent := entity.Priority == models.PriorityCritical || models.IsSafetyCritical(entity.Type)
	if urgent {
		if err := q.storages.Critical.Save(ctx, entity); err != nil {
			return fmt.Errorf("mirror critical entity %s: %w", entity.ID, err)
		}
	}

	q.logger.Debug().
		Str("entity_id", entity.ID).
		Str("entity_type", entity.Type).
		Str("priority", entity.Priority.String()).
		Msg("entity enqueued")

	if urgent && q.network.SuitableForSync() {
		q.mu.RLock()
		signal := q.urgent
		q.mu.RUnlock()
		if signal != nil {
			signal()
		}
	}

	return nil
}

// eligibleStatuses are the states a queue slot may be in when a sync pass
// picks it up. Errored entities are retried on the next full pass; conflict
// entities wait for resolution to flip them back to pending.
var eligibleStatuses = []models.SyncStatus{models.StatusPending, models.StatusError}

func (q *queueService) Snapshot(ctx context.Context) ([]models.SyncableEntity, error) {
	entities, err := q.storages.Queue.List(ctx, eligibleStatuses...)
	if err != nil {
		return nil, fmt.Errorf("snapshot queue: %w", err)
	}
	return entities, nil
}

func (q *queueService) DequeueBatch(ctx context.Context, n int) ([]models.SyncableEntity, error) {
	entities, err := q.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entities) > n {
		entities = entities[:n]
	}
	return entities, nil
}

func (q *queueService) Remove(ctx context.Context, id string) error {
	return q.storages.Queue.Remove(ctx, id)
}

func (q *queueService) MarkStatus(ctx context.Context, id string, status models.SyncStatus) error {
	return q.storages.Queue.UpdateStatus(ctx, id, status)
}

func (q *queueService) MarkSynced(ctx context.Context, id string) error {
	if err := q.storages.Queue.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove synced entity %s: %w", id, err)
	}
	if err := q.storages.Critical.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove critical snapshot %s: %w", id, err)
	}
	return nil
}

func (q *queueService) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-q.settings.Sync().Retention())
	pruned, err := q.storages.Queue.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune queue: %w", err)
	}
	if pruned > 0 {
		q.logger.Info().
			Int64("pruned", pruned).
			Time("cutoff", cutoff).
			Msg("aged entities pruned from queue")
	}
	if err := q.restoreCriticalMirrors(ctx); err != nil {
		return pruned, err
	}
	return pruned, nil
}

// restoreCriticalMirrors re-enqueues mirrored entities whose general-queue
// row has disappeared. Age-based pruning spares the critical priority tier
// but not a safety-critical typed entity queued at a lower tier; its
// snapshot brings the mutation back until it actually syncs.
func (q *queueService) restoreCriticalMirrors(ctx context.Context) error {
	mirrored, err := q.storages.Critical.List(ctx)
	if err != nil {
		return fmt.Errorf("list critical snapshot: %w", err)
	}

	restored := 0
	for _, entity := range mirrored {
		_, err := q.storages.Queue.Get(ctx, entity.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrEntityNotFound) {
			return fmt.Errorf("check mirrored entity %s: %w", entity.ID, err)
		}
		entity.SyncStatus = models.StatusPending
		if err := q.storages.Queue.Upsert(ctx, entity); err != nil {
			return fmt.Errorf("restore mirrored entity %s: %w", entity.ID, err)
		}
		restored++
	}
	if restored > 0 {
		q.logger.Warn().
			Int("restored", restored).
			Msg("mirrored entities re-enqueued from critical snapshot")
	}
	return nil
}

func (q *queueService) ListCritical(ctx context.Context) ([]models.SyncableEntity, error) {
	entities, err := q.storages.Critical.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list critical snapshot: %w", err)
	}
	return entities, nil
}

func (q *queueService) RecoverStale(ctx context.Context) (int, error) {
	stale, err := q.storages.Queue.List(ctx, models.StatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("list stale entities: %w", err)
	}
	for _, entity := range stale {
		if err := q.storages.Queue.UpdateStatus(ctx, entity.ID, models.StatusPending); err != nil {
			return 0, fmt.Errorf("recover stale entity %s: %w", entity.ID, err)
		}
	}
	if len(stale) > 0 {
		q.logger.Warn().Int("recovered", len(stale)).Msg("stale syncing entities reset to pending")
	}
	return len(stale), nil
}

func (q *queueService) Stats(ctx context.Context) (models.QueueStats, error) {
	return q.storages.Queue.Stats(ctx)
}
