package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

var conflictColumns = []string{
	"entity_id",
	"entity_type",
	"local_version",
	"server_version",
	"reason",
	"strategy",
	"server_entity",
	"detected_at",
}

// conflictRepository persists the outstanding-conflict set. One row per
// entity id; re-detecting a conflict for the same entity replaces the row.
type conflictRepository struct {
	*DB
	logger *logger.Logger
}

// NewConflictRepository constructs a [ConflictRepository] backed by the
// provided database connection and logger.
func NewConflictRepository(db *DB, logger *logger.Logger) ConflictRepository {
	return &conflictRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *conflictRepository) Save(ctx context.Context, conflict StoredConflict) error {
	serverPayload, err := json.Marshal(conflict.ServerEntity)
	if err != nil {
		return fmt.Errorf("encode server entity %s: %w", conflict.EntityID, err)
	}

	query, args, err := sq.Insert("conflicts").
		Columns(conflictColumns...).
		Values(
			conflict.EntityID,
			conflict.EntityType,
			conflict.LocalVersion,
			conflict.ServerVersion,
			string(conflict.ConflictReason),
			string(conflict.ResolutionStrategy),
			serverPayload,
			conflict.DetectedAt,
		).
		Suffix(`ON CONFLICT(entity_id) DO UPDATE SET
			entity_type    = excluded.entity_type,
			local_version  = excluded.local_version,
			server_version = excluded.server_version,
			reason         = excluded.reason,
			strategy       = excluded.strategy,
			server_entity  = excluded.server_entity,
			detected_at    = excluded.detected_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		r.logger.Err(err).
			Str("func", "conflictRepository.Save").
			Str("entity_id", conflict.EntityID).
			Msg("failed to save conflict")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *conflictRepository) Get(ctx context.Context, entityID string) (StoredConflict, error) {
	query, args, err := sq.Select(conflictColumns...).
		From("conflicts").
		Where(sq.Eq{"entity_id": entityID}).
		ToSql()
	if err != nil {
		return StoredConflict{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	row := r.QueryRowContext(ctx, query, args...)
	conflict, err := scanConflict(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredConflict{}, fmt.Errorf("%w: conflict for %s", ErrEntityNotFound, entityID)
		}
		return StoredConflict{}, err
	}

	return conflict, nil
}

func (r *conflictRepository) List(ctx context.Context) ([]StoredConflict, error) {
	query, args, err := sq.Select(conflictColumns...).
		From("conflicts").
		OrderBy("detected_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]StoredConflict, 0, 10)
	for rows.Next() {
		conflict, scanErr := scanConflict(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, conflict)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return results, nil
}

func (r *conflictRepository) Remove(ctx context.Context, entityID string) error {
	query, args, err := sq.Delete("conflicts").
		Where(sq.Eq{"entity_id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func scanConflict(scan func(dest ...any) error) (StoredConflict, error) {
	var conflict StoredConflict
	var reason, strategy string
	var serverPayload []byte

	err := scan(
		&conflict.EntityID,
		&conflict.EntityType,
		&conflict.LocalVersion,
		&conflict.ServerVersion,
		&reason,
		&strategy,
		&serverPayload,
		&conflict.DetectedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conflict, err
		}
		return conflict, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	conflict.ConflictReason = models.ConflictReason(reason)
	conflict.ResolutionStrategy = models.ResolutionStrategy(strategy)
	if len(serverPayload) > 0 {
		if err = json.Unmarshal(serverPayload, &conflict.ServerEntity); err != nil {
			return conflict, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
	}

	return conflict, nil
}
