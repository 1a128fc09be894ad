// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

var queueColumns = []string{
	"id",
	"user_id",
	"device_id",
	"entity_type",
	"data",
	"last_modified",
	"version",
	"sync_status",
	"priority",
	"is_deleted",
}

// queueRepository is the SQLite-backed implementation of [QueueRepository].
// All queue mutations performed by the engine flow through this type.
type queueRepository struct {
	*DB
	logger *logger.Logger
}

// NewQueueRepository constructs a [QueueRepository] backed by the provided
// database connection and logger.
func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *queueRepository) Upsert(ctx context.Context, entity models.SyncableEntity) error {
	query, args, err := sq.Insert("sync_queue").
		Columns(append(append([]string{}, queueColumns...), "enqueued_at")...).
		Values(
			entity.ID,
			entity.UserID,
			entity.DeviceID,
			entity.Type,
			[]byte(entity.Data),
			entity.LastModified,
			entity.Version,
			string(entity.SyncStatus),
			int(entity.Priority),
			entity.IsDeleted,
			time.Now().UTC(),
		).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			user_id       = excluded.user_id,
			device_id     = excluded.device_id,
			entity_type   = excluded.entity_type,
			data          = excluded.data,
			last_modified = excluded.last_modified,
			version       = excluded.version,
			sync_status   = excluded.sync_status,
			priority      = excluded.priority,
			is_deleted    = excluded.is_deleted`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		r.logger.Err(err).
			Str("func", "queueRepository.Upsert").
			Str("entity_id", entity.ID).
			Msg("failed to upsert queue slot")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *queueRepository) Get(ctx context.Context, id string) (models.SyncableEntity, error) {
	query, args, err := sq.Select(queueColumns...).
		From("sync_queue").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	row := r.QueryRowContext(ctx, query, args...)
	entity, err := scanQueueEntity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncableEntity{}, fmt.Errorf("%w: id %s", ErrEntityNotFound, id)
		}
		return models.SyncableEntity{}, err
	}

	return entity, nil
}

func (r *queueRepository) List(ctx context.Context, statuses ...models.SyncStatus) ([]models.SyncableEntity, error) {
	builder := sq.Select(queueColumns...).
		From("sync_queue").
		OrderBy("priority DESC", "last_modified DESC")

	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		builder = builder.Where(sq.Eq{"sync_status": names})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Err(err).
			Str("func", "queueRepository.List").
			Msg("failed to execute queue listing query")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.SyncableEntity, 0, 50)
	for rows.Next() {
		entity, scanErr := scanQueueEntity(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, entity)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return results, nil
}

func (r *queueRepository) UpdateStatus(ctx context.Context, id string, status models.SyncStatus) error {
	query, args, err := sq.Update("sync_queue").
		Set("sync_status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: id %s", ErrEntityNotFound, id)
	}

	return nil
}

func (r *queueRepository) Remove(ctx context.Context, id string) error {
	query, args, err := sq.Delete("sync_queue").
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

func (r *queueRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := sq.Delete("sync_queue").
		Where(sq.Lt{"enqueued_at": cutoff}).
		Where(sq.NotEq{"sync_status": string(models.StatusSynced)}).
		Where(sq.Lt{"priority": int(models.PriorityCritical)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Err(err).
			Str("func", "queueRepository.PruneOlderThan").
			Time("cutoff", cutoff).
			Msg("failed to prune aged queue slots")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	pruned, _ := result.RowsAffected()
	return pruned, nil
}

func (r *queueRepository) Stats(ctx context.Context) (models.QueueStats, error) {
	stats := models.QueueStats{
		ByStatus:   make(map[models.SyncStatus]int),
		ByPriority: make(map[string]int),
	}

	rows, err := r.QueryContext(ctx, statsByStatusAndPriority)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var priority, count int
		if err = rows.Scan(&status, &priority, &count); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		stats.TotalItems += count
		stats.ByStatus[models.SyncStatus(status)] += count
		stats.ByPriority[models.Priority(priority).String()] += count
		if status != string(models.StatusSynced) {
			stats.PendingDeliveries += count
		}
	}
	if err = rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var avgSeconds sql.NullFloat64
	if err = r.QueryRowContext(ctx, statsAverageQueueTime).Scan(&avgSeconds); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if avgSeconds.Valid {
		stats.AverageQueueTime = time.Duration(avgSeconds.Float64 * float64(time.Second))
	}

	var pageCount, pageSize int64
	if err = r.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err = r.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.StorageUsedBytes = pageCount * pageSize
		}
	}

	return stats, nil
}

// scanQueueEntity maps one sync_queue row onto a SyncableEntity. The scan
// argument order must match queueColumns.
func scanQueueEntity(scan func(dest ...any) error) (models.SyncableEntity, error) {
	var entity models.SyncableEntity
	var data []byte
	var status string
	var priority int

	err := scan(
		&entity.ID,
		&entity.UserID,
		&entity.DeviceID,
		&entity.Type,
		&data,
		&entity.LastModified,
		&entity.Version,
		&status,
		&priority,
		&entity.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity, err
		}
		return entity, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	entity.Data = data
	entity.SyncStatus = models.SyncStatus(status)
	entity.Priority = models.Priority(priority)
	return entity, nil
}
