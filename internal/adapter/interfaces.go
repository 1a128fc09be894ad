package adapter

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

import (
	"context"

	"github.com/okolovich/offsync/models"
)

// SyncAPI is the remote authority for entity state. SyncEntity is idempotent
// when keyed by (entity id, version): the server either accepts the mutation
// and returns its canonical copy with an incremented version, or reports a
// version mismatch.
//
// On a version mismatch the returned entity is the server's current copy and
// the error wraps [ErrVersionConflict]; the orchestrator routes that pair to
// the conflict resolver rather than treating it as a failure.
type SyncAPI interface {
	SyncEntity(ctx context.Context, entity models.SyncableEntity) (models.SyncableEntity, error)
}

// Notifier informs the user about offline-mode transitions. Calls are
// best-effort and fire-and-forget; implementations must never let a failure
// propagate into sync correctness.
type Notifier interface {
	OfflineModeChanged(offline bool)
}
