// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/okolovich/offsync/internal/config"
	"github.com/okolovich/offsync/internal/mock"
	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

const testDeviceID = "device-abc"

// stubNetwork — фиксированное состояние сети, без монитора.
type stubNetwork struct {
	suitable bool
}

func (s stubNetwork) SuitableForSync() bool { return s.suitable }

func newTestQueue(
	t *testing.T,
	ctrl *gomock.Controller,
	online bool,
) (QueueService, *mock.MockQueueRepository, *mock.MockCriticalRepository) {
	t.Helper()
	mockQueue := mock.NewMockQueueRepository(ctrl)
	mockCritical := mock.NewMockCriticalRepository(ctrl)

	storages := &store.Storages{
		Queue:    mockQueue,
		Critical: mockCritical,
	}
	settings := NewSettings(config.Default().Sync)
	svc := NewQueueService(storages, stubNetwork{suitable: online}, settings, testDeviceID, nil)

	return svc, mockQueue, mockCritical
}

// ── Enqueue ───────────────────────────────────────────────────────────────────

func TestQueue_Enqueue_StampsEntity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, _ := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	var stored models.SyncableEntity
	mockQueue.EXPECT().
		Upsert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.SyncableEntity) error {
			stored = e
			return nil
		})

	err := svc.Enqueue(ctx, models.SyncableEntity{
		ID:       "note-1",
		Type:     models.Note,
		Data:     json.RawMessage(`{"text":"hello"}`),
		Priority: models.PriorityNormal,
		// статус и устройство должны быть перезаписаны сервисом
		SyncStatus: models.StatusSynced,
		DeviceID:   "spoofed",
	})
	require.NoError(t, err)

	assert.Equal(t, testDeviceID, stored.DeviceID)
	assert.Equal(t, models.StatusPending, stored.SyncStatus)
	assert.WithinDuration(t, time.Now().UTC(), stored.LastModified, time.Second)
}

func TestQueue_Enqueue_EmptyIDRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, _, _ := newTestQueue(t, ctrl, true)

	err := svc.Enqueue(context.Background(), models.SyncableEntity{Type: models.Note})
	assert.ErrorIs(t, err, ErrNoPayload)
}

// TestQueue_Enqueue_CriticalMirroredAndSignalled verifies that a critical
// entity lands in the protected snapshot and fires the urgent signal while
// the network is usable.
func TestQueue_Enqueue_CriticalMirroredAndSignalled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	mockQueue.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)
	mockCritical.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	signalled := 0
	svc.SetUrgentSignal(func() { signalled++ })

	err := svc.Enqueue(ctx, models.SyncableEntity{
		ID:       "med-1",
		Type:     models.Medication,
		Priority: models.PriorityCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, signalled)
}

func TestQueue_Enqueue_SafetyCriticalTypeMirrored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	mockQueue.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)
	// emergency_contact защищён по типу, даже с обычным приоритетом
	mockCritical.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	err := svc.Enqueue(ctx, models.SyncableEntity{
		ID:       "contact-1",
		Type:     models.EmergencyContact,
		Priority: models.PriorityNormal,
	})
	require.NoError(t, err)
}

func TestQueue_Enqueue_CriticalOfflineNoSignal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, false)
	ctx := context.Background()

	mockQueue.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)
	mockCritical.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	signalled := 0
	svc.SetUrgentSignal(func() { signalled++ })

	err := svc.Enqueue(ctx, models.SyncableEntity{
		ID:       "med-2",
		Type:     models.Medication,
		Priority: models.PriorityCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, signalled)
}

func TestQueue_Enqueue_NormalEntityNotMirrored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, _ := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	mockQueue.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)

	err := svc.Enqueue(ctx, models.SyncableEntity{
		ID:       "note-2",
		Type:     models.Note,
		Priority: models.PriorityLow,
	})
	require.NoError(t, err)
}

// ── Snapshot / DequeueBatch ───────────────────────────────────────────────────

func TestQueue_Snapshot_RequestsEligibleStatuses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, _ := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	want := []models.SyncableEntity{{ID: "a"}, {ID: "b"}}
	mockQueue.EXPECT().
		List(ctx, models.StatusPending, models.StatusError).
		Return(want, nil)

	got, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQueue_DequeueBatch_TruncatesToLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, _ := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	all := []models.SyncableEntity{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	mockQueue.EXPECT().
		List(ctx, models.StatusPending, models.StatusError).
		Return(all, nil)

	got, err := svc.DequeueBatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, all[:2], got)
}

// ── MarkSynced ────────────────────────────────────────────────────────────────

func TestQueue_MarkSynced_RemovesQueueAndCriticalRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	mockQueue.EXPECT().Remove(ctx, "med-1").Return(nil)
	mockCritical.EXPECT().Remove(ctx, "med-1").Return(nil)

	require.NoError(t, svc.MarkSynced(ctx, "med-1"))
}

// ── Prune ─────────────────────────────────────────────────────────────────────

func TestQueue_Prune_UsesRetentionCutoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	var cutoff time.Time
	mockQueue.EXPECT().
		PruneOlderThan(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, c time.Time) (int64, error) {
			cutoff = c
			return 3, nil
		})
	mockCritical.EXPECT().List(ctx).Return(nil, nil)

	pruned, err := svc.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pruned)

	// retention по умолчанию 14 дней
	want := time.Now().UTC().Add(-14 * 24 * time.Hour)
	assert.WithinDuration(t, want, cutoff, time.Second)
}

func TestQueue_Prune_RestoresPrunedCriticalMirror(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	// safety-critical тип на обычном приоритете: prune его не щадит,
	// но зеркало должно вернуть его в очередь
	mirrored := models.SyncableEntity{
		ID:       "contact-7",
		Type:     models.EmergencyContact,
		Priority: models.PriorityNormal,
		Data:     []byte(`{"phone":"112"}`),
		Version:  2,
	}

	mockQueue.EXPECT().PruneOlderThan(ctx, gomock.Any()).Return(int64(1), nil)
	mockCritical.EXPECT().List(ctx).Return([]models.SyncableEntity{mirrored}, nil)
	mockQueue.EXPECT().Get(ctx, "contact-7").
		Return(models.SyncableEntity{}, store.ErrEntityNotFound)

	var requeued models.SyncableEntity
	mockQueue.EXPECT().
		Upsert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.SyncableEntity) error {
			requeued = e
			return nil
		})

	_, err := svc.Prune(ctx)
	require.NoError(t, err)

	assert.Equal(t, "contact-7", requeued.ID)
	assert.Equal(t, models.StatusPending, requeued.SyncStatus)
	assert.Equal(t, mirrored.Data, requeued.Data)
	assert.EqualValues(t, 2, requeued.Version)
}

func TestQueue_Prune_LeavesQueuedMirrorsAlone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	mirrored := models.SyncableEntity{ID: "med-3", Priority: models.PriorityCritical}

	mockQueue.EXPECT().PruneOlderThan(ctx, gomock.Any()).Return(int64(0), nil)
	mockCritical.EXPECT().List(ctx).Return([]models.SyncableEntity{mirrored}, nil)
	mockQueue.EXPECT().Get(ctx, "med-3").Return(mirrored, nil)
	// Upsert не ожидается

	_, err := svc.Prune(ctx)
	require.NoError(t, err)
}

// ── ListCritical ──────────────────────────────────────────────────────────────

// TestQueue_ListCritical_RetrievableUntilSynced verifies that a mirrored
// entity can be read back from the critical-protected snapshot for as long
// as its mirror exists, which MarkSynced is the only path to remove.
func TestQueue_ListCritical_RetrievableUntilSynced(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, mockCritical := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	mirrored := models.SyncableEntity{ID: "med-1", Type: models.Medication, Priority: models.PriorityCritical}
	mockCritical.EXPECT().List(ctx).Return([]models.SyncableEntity{mirrored}, nil)

	got, err := svc.ListCritical(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "med-1", got[0].ID)

	// после подтверждения сервером зеркало снимается
	mockQueue.EXPECT().Remove(ctx, "med-1").Return(nil)
	mockCritical.EXPECT().Remove(ctx, "med-1").Return(nil)
	require.NoError(t, svc.MarkSynced(ctx, "med-1"))

	mockCritical.EXPECT().List(ctx).Return(nil, nil)
	got, err = svc.ListCritical(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// ── RecoverStale ──────────────────────────────────────────────────────────────

func TestQueue_RecoverStale_ResetsSyncingToPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockQueue, _ := newTestQueue(t, ctrl, true)
	ctx := context.Background()

	stale := []models.SyncableEntity{{ID: "a"}, {ID: "b"}}
	mockQueue.EXPECT().List(ctx, models.StatusSyncing).Return(stale, nil)
	mockQueue.EXPECT().UpdateStatus(ctx, "a", models.StatusPending).Return(nil)
	mockQueue.EXPECT().UpdateStatus(ctx, "b", models.StatusPending).Return(nil)

	recovered, err := svc.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
}
