package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrEntityNotFound is returned when a query targets a queue slot,
	// critical snapshot row, or conflict that does not exist.
	ErrEntityNotFound = errors.New("entity was not found")

	// ErrMetaKeyNotFound is returned when a sync_meta lookup produces no row.
	ErrMetaKeyNotFound = errors.New("meta key was not found")

	// ErrEntityNotSaved is returned when a write completes without error but
	// the number of affected rows is zero, indicating nothing was persisted.
	ErrEntityNotSaved = errors.New("entity was not saved")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query against the
	// database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrScanningRow is returned when a result row cannot be scanned into
	// the target model.
	ErrScanningRow = errors.New("error scanning result row")
)
