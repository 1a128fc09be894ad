package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/okolovich/offsync/internal/logger"
)

type metaRepository struct {
	*DB
	logger *logger.Logger
}

// NewMetaRepository constructs a [MetaRepository] backed by the provided
// database connection and logger.
func NewMetaRepository(db *DB, logger *logger.Logger) MetaRepository {
	return &metaRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *metaRepository) Get(ctx context.Context, key string) (string, error) {
	query, args, err := sq.Select("value").
		From("sync_meta").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var value string
	if err = r.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrMetaKeyNotFound, key)
		}
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return value, nil
}

func (r *metaRepository) Set(ctx context.Context, key, value string) error {
	query, args, err := sq.Insert("sync_meta").
		Columns("key", "value").
		Values(key, value).
		Suffix(`ON CONFLICT(key) DO UPDATE SET value = excluded.value`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		r.logger.Err(err).
			Str("func", "metaRepository.Set").
			Str("key", key).
			Msg("failed to set meta value")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}
