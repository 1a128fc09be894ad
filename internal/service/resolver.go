package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

// StrategyForType is the deterministic resolution policy table: safety-
// critical records trust the server, user-preference records preserve local
// intent, everything else merges.
func StrategyForType(entityType string) models.ResolutionStrategy {
	switch {
	case models.IsSafetyCritical(entityType):
		return models.StrategyServerWins
	case models.IsUserPreference(entityType):
		return models.StrategyClientWins
	default:
		return models.StrategyMerge
	}
}

type conflictResolver struct {
	storages *store.Storages
	settings *Settings
	logger   *logger.Logger
}

// NewConflictResolver constructs the optimistic-concurrency resolver on top
// of the persistence layer.
func NewConflictResolver(storages *store.Storages, settings *Settings, log *logger.Logger) ConflictResolver {
	if log == nil {
		log = logger.Nop()
	}
	return &conflictResolver{
		storages: storages,
		settings: settings,
		logger:   log,
	}
}

func (r *conflictResolver) Detect(local, server models.SyncableEntity) *models.SyncConflict {
	var reason models.ConflictReason
	switch {
	case local.IsDeleted && !server.IsDeleted:
		reason = models.ReasonDeletedLocally
	case server.IsDeleted && !local.IsDeleted:
		reason = models.ReasonDeletedRemotely
	case local.Version != server.Version:
		reason = models.ReasonVersionMismatch
	case !bytes.Equal(local.Data, server.Data):
		reason = models.ReasonConcurrentModification
	default:
		return nil
	}

	return &models.SyncConflict{
		EntityID:           local.ID,
		EntityType:         local.Type,
		LocalVersion:       local.Version,
		ServerVersion:      server.Version,
		ConflictReason:     reason,
		ResolutionStrategy: StrategyForType(local.Type),
		DetectedAt:         time.Now().UTC(),
	}
}

func (r *conflictResolver) HandleDetected(ctx context.Context, local, server models.SyncableEntity) (*models.SyncConflict, error) {
	conflict := r.Detect(local, server)
	if conflict == nil {
		return nil, nil
	}

	stored := store.StoredConflict{SyncConflict: *conflict, ServerEntity: server}
	if err := r.storages.Conflicts.Save(ctx, stored); err != nil {
		return nil, fmt.Errorf("record conflict for %s: %w", local.ID, err)
	}

	r.logger.Info().
		Str("entity_id", conflict.EntityID).
		Str("entity_type", conflict.EntityType).
		Str("reason", string(conflict.ConflictReason)).
		Str("strategy", string(conflict.ResolutionStrategy)).
		Msg("sync conflict detected")

	if r.settings.Sync().ConflictResolutionEnabled() {
		if err := r.resolve(ctx, stored, conflict.ResolutionStrategy); err != nil {
			return conflict, fmt.Errorf("auto-resolve conflict for %s: %w", local.ID, err)
		}
	}

	return conflict, nil
}

func (r *conflictResolver) Resolve(ctx context.Context, entityID string, override models.ResolutionStrategy) error {
	stored, err := r.storages.Conflicts.Get(ctx, entityID)
	if err != nil {
		return fmt.Errorf("load conflict for %s: %w", entityID, err)
	}

	strategy := stored.ResolutionStrategy
	switch override {
	case "", models.StrategyAuto:
		strategy = StrategyForType(stored.EntityType)
	case models.StrategyServerWins, models.StrategyClientWins, models.StrategyMerge:
		strategy = override
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, override)
	}

	return r.resolve(ctx, stored, strategy)
}

func (r *conflictResolver) ListOutstanding(ctx context.Context) ([]store.StoredConflict, error) {
	return r.storages.Conflicts.List(ctx)
}

// resolve applies the strategy and removes the conflict from the
// outstanding set. client_wins and merge leave the entity pending so the
// next pass re-syncs it with a version that now wins optimistically.
func (r *conflictResolver) resolve(ctx context.Context, stored store.StoredConflict, strategy models.ResolutionStrategy) error {
	server := stored.ServerEntity

	local, err := r.storages.Queue.Get(ctx, stored.EntityID)
	if err != nil {
		if !errors.Is(err, store.ErrEntityNotFound) {
			return fmt.Errorf("load local entity %s: %w", stored.EntityID, err)
		}
		// Local copy is gone; nothing to preserve.
		strategy = models.StrategyServerWins
	}

	switch strategy {
	case models.StrategyServerWins:
		// The server copy is canonical; the mutation is settled.
		if err := r.storages.Queue.Remove(ctx, stored.EntityID); err != nil {
			return fmt.Errorf("accept server copy for %s: %w", stored.EntityID, err)
		}
		if err := r.storages.Critical.Remove(ctx, stored.EntityID); err != nil {
			return fmt.Errorf("drop critical snapshot for %s: %w", stored.EntityID, err)
		}

	case models.StrategyClientWins:
		local.Version = server.Version + 1
		local.SyncStatus = models.StatusPending
		local.LastModified = time.Now().UTC()
		if err := r.storages.Queue.Upsert(ctx, local); err != nil {
			return fmt.Errorf("keep local copy for %s: %w", stored.EntityID, err)
		}

	case models.StrategyMerge:
		merged := server.DataFields()
		for key, value := range local.DataFields() {
			merged[key] = value
		}
		payload, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode merged payload for %s: %w", stored.EntityID, err)
		}

		local.Data = payload
		local.Version = maxVersion(local.Version, server.Version) + 1
		local.SyncStatus = models.StatusPending
		local.LastModified = time.Now().UTC()
		if err := r.storages.Queue.Upsert(ctx, local); err != nil {
			return fmt.Errorf("store merged copy for %s: %w", stored.EntityID, err)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	if err := r.storages.Conflicts.Remove(ctx, stored.EntityID); err != nil {
		return fmt.Errorf("clear resolved conflict for %s: %w", stored.EntityID, err)
	}

	r.logger.Info().
		Str("entity_id", stored.EntityID).
		Str("strategy", string(strategy)).
		Msg("conflict resolved")

	return nil
}

func maxVersion(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
