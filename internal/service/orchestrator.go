package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okolovich/offsync/internal/adapter"
	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/internal/retry"
	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

// NetworkView is the monitor surface the orchestrator reads.
type NetworkView interface {
	SuitableForSync() bool
	Condition() *models.NetworkCondition
}

// syncOutcome is what one remote attempt produces. A version mismatch is
// not a failure: the server's current copy rides back on the outcome so the
// resolver never needs another round-trip.
type syncOutcome struct {
	entity   models.SyncableEntity
	conflict bool
}

type syncOrchestrator struct {
	queue    QueueService
	resolver ConflictResolver
	api      adapter.SyncAPI
	executor *retry.Executor
	network  NetworkView
	meta     store.MetaRepository
	settings *Settings
	logger   *logger.Logger

	inProgress atomic.Bool

	mu      sync.RWMutex
	subs    map[int]func(models.SyncResult)
	nextSub int
}

// NewOrchestrator wires the sync coordinator. All collaborators are
// injected; the orchestrator owns no goroutines of its own.
func NewOrchestrator(
	queue QueueService,
	resolver ConflictResolver,
	api adapter.SyncAPI,
	executor *retry.Executor,
	network NetworkView,
	meta store.MetaRepository,
	settings *Settings,
	log *logger.Logger,
) Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &syncOrchestrator{
		queue:    queue,
		resolver: resolver,
		api:      api,
		executor: executor,
		network:  network,
		meta:     meta,
		settings: settings,
		logger:   log,
		subs:     make(map[int]func(models.SyncResult)),
	}
}

func (o *syncOrchestrator) Subscribe(listener func(models.SyncResult)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = listener
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *syncOrchestrator) LastSyncTime(ctx context.Context) (time.Time, bool) {
	value, err := o.meta.Get(ctx, store.MetaLastSyncTime)
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// TriggerSync runs one single-flight sync pass: snapshot the queue in drain
// order, split into bounded batches, push every entity through the retry
// executor, route version mismatches to the resolver, and stop early when
// more than half a batch errors out.
func (o *syncOrchestrator) TriggerSync(ctx context.Context) (models.SyncResult, error) {
	if !o.inProgress.CompareAndSwap(false, true) {
		o.logger.Debug().Msg("sync already in progress, skipping trigger")
		return models.SyncResult{Success: true}, nil
	}
	defer o.inProgress.Store(false)

	if !o.network.SuitableForSync() {
		o.logger.Debug().Msg("network unsuitable, sync pass skipped")
		return models.SyncResult{Success: true, NetworkInfo: o.network.Condition()}, nil
	}

	start := time.Now()
	result := models.SyncResult{Success: true}

	snapshot, err := o.queue.Snapshot(ctx)
	if err != nil {
		result.Success = false
		return result, fmt.Errorf("snapshot queue for sync: %w", err)
	}

	batchSize := o.settings.Sync().BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

pass:
	for batchStart := 0; batchStart < len(snapshot); batchStart += batchSize {
		end := batchStart + batchSize
		if end > len(snapshot) {
			end = len(snapshot)
		}
		batch := snapshot[batchStart:end]

		erroredInBatch := 0
		for _, entity := range batch {
			select {
			case <-ctx.Done():
				result.Success = false
				break pass
			default:
			}

			aborted, entityErr := o.syncOne(ctx, entity, &result)
			if aborted {
				result.Success = false
				break pass
			}
			if entityErr {
				erroredInBatch++
			}
		}

		// Per-entity state is already durable at this point; the batch
		// boundary only decides whether hammering a degraded backend is
		// worth continuing.
		if erroredInBatch*2 > len(batch) {
			o.logger.Warn().
				Int("errored", erroredInBatch).
				Int("batch_size", len(batch)).
				Msg("over half the batch failed, aborting sync pass")
			result.Success = false
			break
		}
	}

	now := time.Now().UTC()
	if err := o.meta.Set(ctx, store.MetaLastSyncTime, now.Format(time.RFC3339Nano)); err != nil {
		o.logger.Err(err).Msg("failed to persist last sync time")
	}

	result.SyncDuration = time.Since(start)
	result.NetworkInfo = o.network.Condition()

	o.logger.Info().
		Int("synced", result.EntitiesSynced).
		Int("conflicts", len(result.Conflicts)).
		Int("errors", len(result.Errors)).
		Dur("duration", result.SyncDuration).
		Msg("sync pass finished")

	o.notify(result)
	return result, nil
}

// syncOne pushes a single entity to the server. It reports whether the
// whole pass must abort (cancellation) and whether the entity errored.
func (o *syncOrchestrator) syncOne(ctx context.Context, entity models.SyncableEntity, result *models.SyncResult) (aborted, errored bool) {
	if err := o.queue.MarkStatus(ctx, entity.ID, models.StatusSyncing); err != nil {
		result.Errors = append(result.Errors, models.SyncError{EntityID: entity.ID, Message: err.Error()})
		return false, true
	}

	res := retry.Do(ctx, o.executor, func(attemptCtx context.Context) (syncOutcome, error) {
		canonical, err := o.api.SyncEntity(attemptCtx, entity)
		if errors.Is(err, adapter.ErrVersionConflict) {
			return syncOutcome{entity: canonical, conflict: true}, nil
		}
		if err != nil {
			return syncOutcome{}, err
		}
		return syncOutcome{entity: canonical}, nil
	}, retry.Options{Key: entity.ID})

	switch {
	case res.Success && !res.Data.conflict:
		if err := o.queue.MarkSynced(ctx, entity.ID); err != nil {
			result.Errors = append(result.Errors, models.SyncError{EntityID: entity.ID, Message: err.Error()})
			return false, true
		}
		result.EntitiesSynced++
		return false, false

	case res.Success && res.Data.conflict:
		if err := o.queue.MarkStatus(ctx, entity.ID, models.StatusConflict); err != nil {
			result.Errors = append(result.Errors, models.SyncError{EntityID: entity.ID, Message: err.Error()})
			return false, true
		}
		conflict, err := o.resolver.HandleDetected(ctx, entity, res.Data.entity)
		if err != nil {
			result.Errors = append(result.Errors, models.SyncError{EntityID: entity.ID, Message: err.Error()})
			return false, true
		}
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
		}
		return false, false

	case errors.Is(res.Err, retry.ErrCancelled):
		// Cancellation is terminal for the pass and counts as neither
		// success nor failure for the entity.
		if err := o.queue.MarkStatus(ctx, entity.ID, models.StatusPending); err != nil {
			o.logger.Err(err).Str("entity_id", entity.ID).Msg("failed to reset cancelled entity")
		}
		return true, false

	default:
		if err := o.queue.MarkStatus(ctx, entity.ID, models.StatusError); err != nil {
			o.logger.Err(err).Str("entity_id", entity.ID).Msg("failed to mark errored entity")
		}
		o.logger.Debug().
			Str("entity_id", entity.ID).
			Int("attempts", res.Attempts).
			Err(res.Err).
			Msg("entity sync failed")
		result.Errors = append(result.Errors, models.SyncError{EntityID: entity.ID, Message: res.Err.Error()})
		return false, true
	}
}

func (o *syncOrchestrator) notify(result models.SyncResult) {
	o.mu.RLock()
	listeners := make([]func(models.SyncResult), 0, len(o.subs))
	for _, l := range o.subs {
		listeners = append(listeners, l)
	}
	o.mu.RUnlock()

	for _, l := range listeners {
		l(result)
	}
}
