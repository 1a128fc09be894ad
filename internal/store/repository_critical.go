package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

// criticalRepository mirrors critical-priority entities into a
// retention-exempt snapshot table. Entities are serialized whole so the
// snapshot survives schema drift in the general queue.
type criticalRepository struct {
	*DB
	logger *logger.Logger
}

// NewCriticalRepository constructs a [CriticalRepository] backed by the
// provided database connection and logger.
func NewCriticalRepository(db *DB, logger *logger.Logger) CriticalRepository {
	return &criticalRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *criticalRepository) Save(ctx context.Context, entity models.SyncableEntity) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode critical entity %s: %w", entity.ID, err)
	}

	query, args, err := sq.Insert("critical_store").
		Columns("id", "entity", "stored_at").
		Values(entity.ID, payload, time.Now().UTC()).
		Suffix(`ON CONFLICT(id) DO UPDATE SET entity = excluded.entity`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		r.logger.Err(err).
			Str("func", "criticalRepository.Save").
			Str("entity_id", entity.ID).
			Msg("failed to save critical snapshot")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *criticalRepository) Get(ctx context.Context, id string) (models.SyncableEntity, error) {
	query, args, err := sq.Select("entity").
		From("critical_store").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var payload []byte
	if err = r.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncableEntity{}, fmt.Errorf("%w: id %s", ErrEntityNotFound, id)
		}
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var entity models.SyncableEntity
	if err = json.Unmarshal(payload, &entity); err != nil {
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return entity, nil
}

func (r *criticalRepository) List(ctx context.Context) ([]models.SyncableEntity, error) {
	query, args, err := sq.Select("entity").
		From("critical_store").
		OrderBy("stored_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.SyncableEntity, 0, 10)
	for rows.Next() {
		var payload []byte
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}

		var entity models.SyncableEntity
		if err = json.Unmarshal(payload, &entity); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		results = append(results, entity)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return results, nil
}

func (r *criticalRepository) Remove(ctx context.Context, id string) error {
	query, args, err := sq.Delete("critical_store").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}
