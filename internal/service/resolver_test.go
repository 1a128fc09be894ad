// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/okolovich/offsync/internal/config"
	"github.com/okolovich/offsync/internal/mock"
	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

func newTestResolver(
	t *testing.T,
	ctrl *gomock.Controller,
	autoResolve bool,
) (ConflictResolver, *mock.MockQueueRepository, *mock.MockCriticalRepository, *mock.MockConflictRepository) {
	t.Helper()
	mockQueue := mock.NewMockQueueRepository(ctrl)
	mockCritical := mock.NewMockCriticalRepository(ctrl)
	mockConflicts := mock.NewMockConflictRepository(ctrl)

	storages := &store.Storages{
		Queue:     mockQueue,
		Critical:  mockCritical,
		Conflicts: mockConflicts,
	}
	cfg := config.Default().Sync
	cfg.DisableConflictResolution = !autoResolve
	resolver := NewConflictResolver(storages, NewSettings(cfg), nil)

	return resolver, mockQueue, mockCritical, mockConflicts
}

// ── StrategyForType ───────────────────────────────────────────────────────────

func TestStrategyForType(t *testing.T) {
	tests := []struct {
		entityType string
		want       models.ResolutionStrategy
	}{
		{entityType: models.Medication, want: models.StrategyServerWins},
		{entityType: models.EmergencyContact, want: models.StrategyServerWins},
		{entityType: models.HealthRecord, want: models.StrategyServerWins},
		{entityType: models.CulturalProfile, want: models.StrategyClientWins},
		{entityType: models.UserSettings, want: models.StrategyClientWins},
		{entityType: models.Appointment, want: models.StrategyMerge},
		{entityType: models.Note, want: models.StrategyMerge},
		{entityType: "something_else", want: models.StrategyMerge},
	}

	for _, tt := range tests {
		t.Run(tt.entityType, func(t *testing.T) {
			assert.Equal(t, tt.want, StrategyForType(tt.entityType))
		})
	}
}

// ── Detect ────────────────────────────────────────────────────────────────────

func TestResolver_Detect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	resolver, _, _, _ := newTestResolver(t, ctrl, false)

	base := models.SyncableEntity{
		ID:      "note-1",
		Type:    models.Note,
		Data:    json.RawMessage(`{"text":"a"}`),
		Version: 2,
	}

	tests := []struct {
		name       string
		mutate     func(local, server *models.SyncableEntity)
		wantReason models.ConflictReason
		wantNil    bool
	}{
		{
			name:    "identical copies agree",
			mutate:  func(local, server *models.SyncableEntity) {},
			wantNil: true,
		},
		{
			name: "deleted locally",
			mutate: func(local, server *models.SyncableEntity) {
				local.IsDeleted = true
			},
			wantReason: models.ReasonDeletedLocally,
		},
		{
			name: "deleted remotely",
			mutate: func(local, server *models.SyncableEntity) {
				server.IsDeleted = true
			},
			wantReason: models.ReasonDeletedRemotely,
		},
		{
			name: "version mismatch",
			mutate: func(local, server *models.SyncableEntity) {
				server.Version = 5
			},
			wantReason: models.ReasonVersionMismatch,
		},
		{
			name: "same version different payload",
			mutate: func(local, server *models.SyncableEntity) {
				server.Data = json.RawMessage(`{"text":"b"}`)
			},
			wantReason: models.ReasonConcurrentModification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, server := base, base
			tt.mutate(&local, &server)

			conflict := resolver.Detect(local, server)
			if tt.wantNil {
				assert.Nil(t, conflict)
				return
			}
			require.NotNil(t, conflict)
			assert.Equal(t, tt.wantReason, conflict.ConflictReason)
			assert.Equal(t, local.ID, conflict.EntityID)
			assert.Equal(t, local.Version, conflict.LocalVersion)
			assert.Equal(t, server.Version, conflict.ServerVersion)
		})
	}
}

// TestResolver_DetectIsDeterministic verifies the policy attached to a
// detected conflict never depends on anything but the entity type.
func TestResolver_DetectIsDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	resolver, _, _, _ := newTestResolver(t, ctrl, false)

	local := models.SyncableEntity{ID: "m-1", Type: models.Medication, Version: 1}
	server := models.SyncableEntity{ID: "m-1", Type: models.Medication, Version: 2}

	for i := 0; i < 10; i++ {
		conflict := resolver.Detect(local, server)
		require.NotNil(t, conflict)
		assert.Equal(t, models.StrategyServerWins, conflict.ResolutionStrategy)
	}
}

// ── HandleDetected ────────────────────────────────────────────────────────────

// TestResolver_HandleDetected_ClientWinsRequeues walks the user-preference
// path: the local cultural profile (v2) loses the version race against the
// server (v3), keeps its payload, and re-enters the queue as v4 pending.
func TestResolver_HandleDetected_ClientWinsRequeues(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, mockQueue, _, mockConflicts := newTestResolver(t, ctrl, true)
	ctx := context.Background()

	local := models.SyncableEntity{
		ID:      "profile-1",
		Type:    models.CulturalProfile,
		Data:    json.RawMessage(`{"language":"ru"}`),
		Version: 2,
	}
	server := models.SyncableEntity{
		ID:      "profile-1",
		Type:    models.CulturalProfile,
		Data:    json.RawMessage(`{"language":"en"}`),
		Version: 3,
	}

	mockConflicts.EXPECT().Save(ctx, gomock.Any()).Return(nil)
	mockQueue.EXPECT().Get(ctx, "profile-1").Return(local, nil)

	var requeued models.SyncableEntity
	mockQueue.EXPECT().
		Upsert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.SyncableEntity) error {
			requeued = e
			return nil
		})
	mockConflicts.EXPECT().Remove(ctx, "profile-1").Return(nil)

	conflict, err := resolver.HandleDetected(ctx, local, server)
	require.NoError(t, err)
	require.NotNil(t, conflict)

	assert.Equal(t, models.StrategyClientWins, conflict.ResolutionStrategy)
	assert.EqualValues(t, 4, requeued.Version)
	assert.Equal(t, models.StatusPending, requeued.SyncStatus)
	assert.JSONEq(t, `{"language":"ru"}`, string(requeued.Data))
}

func TestResolver_HandleDetected_ServerWinsDropsLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, mockQueue, mockCritical, mockConflicts := newTestResolver(t, ctrl, true)
	ctx := context.Background()

	local := models.SyncableEntity{ID: "med-1", Type: models.Medication, Version: 1}
	server := models.SyncableEntity{ID: "med-1", Type: models.Medication, Version: 2}

	mockConflicts.EXPECT().Save(ctx, gomock.Any()).Return(nil)
	mockQueue.EXPECT().Get(ctx, "med-1").Return(local, nil)
	mockQueue.EXPECT().Remove(ctx, "med-1").Return(nil)
	mockCritical.EXPECT().Remove(ctx, "med-1").Return(nil)
	mockConflicts.EXPECT().Remove(ctx, "med-1").Return(nil)

	conflict, err := resolver.HandleDetected(ctx, local, server)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, models.StrategyServerWins, conflict.ResolutionStrategy)
}

func TestResolver_HandleDetected_MergeUnionsFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, mockQueue, _, mockConflicts := newTestResolver(t, ctrl, true)
	ctx := context.Background()

	local := models.SyncableEntity{
		ID:      "apt-1",
		Type:    models.Appointment,
		Data:    json.RawMessage(`{"time":"10:00","notes":"bring documents"}`),
		Version: 2,
	}
	server := models.SyncableEntity{
		ID:      "apt-1",
		Type:    models.Appointment,
		Data:    json.RawMessage(`{"time":"11:00","location":"clinic"}`),
		Version: 3,
	}

	mockConflicts.EXPECT().Save(ctx, gomock.Any()).Return(nil)
	mockQueue.EXPECT().Get(ctx, "apt-1").Return(local, nil)

	var merged models.SyncableEntity
	mockQueue.EXPECT().
		Upsert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.SyncableEntity) error {
			merged = e
			return nil
		})
	mockConflicts.EXPECT().Remove(ctx, "apt-1").Return(nil)

	_, err := resolver.HandleDetected(ctx, local, server)
	require.NoError(t, err)

	// объединение с приоритетом локальных полей
	assert.JSONEq(t, `{"time":"10:00","notes":"bring documents","location":"clinic"}`, string(merged.Data))
	assert.EqualValues(t, 4, merged.Version)
	assert.Equal(t, models.StatusPending, merged.SyncStatus)
}

func TestResolver_HandleDetected_ManualModeOnlyRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, _, mockConflicts := newTestResolver(t, ctrl, false)
	ctx := context.Background()

	local := models.SyncableEntity{ID: "note-1", Type: models.Note, Version: 1}
	server := models.SyncableEntity{ID: "note-1", Type: models.Note, Version: 2}

	// только сохранение: никакого авторазрешения
	mockConflicts.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	conflict, err := resolver.HandleDetected(ctx, local, server)
	require.NoError(t, err)
	require.NotNil(t, conflict)
}

func TestResolver_HandleDetected_AgreementIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, _, _ := newTestResolver(t, ctrl, true)

	same := models.SyncableEntity{ID: "note-1", Type: models.Note, Version: 1}
	conflict, err := resolver.HandleDetected(context.Background(), same, same)
	require.NoError(t, err)
	assert.Nil(t, conflict)
}

// ── Resolve ───────────────────────────────────────────────────────────────────

func TestResolver_Resolve_OverrideWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, mockQueue, mockCritical, mockConflicts := newTestResolver(t, ctrl, false)
	ctx := context.Background()

	stored := store.StoredConflict{
		SyncConflict: models.SyncConflict{
			EntityID:           "profile-1",
			EntityType:         models.CulturalProfile,
			ResolutionStrategy: models.StrategyClientWins,
		},
		ServerEntity: models.SyncableEntity{ID: "profile-1", Version: 3},
	}

	mockConflicts.EXPECT().Get(ctx, "profile-1").Return(stored, nil)
	mockQueue.EXPECT().Get(ctx, "profile-1").Return(models.SyncableEntity{ID: "profile-1", Version: 2}, nil)
	// пользователь явно выбрал серверную копию вопреки политике типа
	mockQueue.EXPECT().Remove(ctx, "profile-1").Return(nil)
	mockCritical.EXPECT().Remove(ctx, "profile-1").Return(nil)
	mockConflicts.EXPECT().Remove(ctx, "profile-1").Return(nil)

	err := resolver.Resolve(ctx, "profile-1", models.StrategyServerWins)
	require.NoError(t, err)
}

func TestResolver_Resolve_UnknownStrategyRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, _, mockConflicts := newTestResolver(t, ctrl, false)
	ctx := context.Background()

	mockConflicts.EXPECT().
		Get(ctx, "note-1").
		Return(store.StoredConflict{SyncConflict: models.SyncConflict{EntityID: "note-1"}}, nil)

	err := resolver.Resolve(ctx, "note-1", models.ResolutionStrategy("coin_flip"))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestResolver_Resolve_MissingLocalFallsBackToServer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, mockQueue, mockCritical, mockConflicts := newTestResolver(t, ctrl, false)
	ctx := context.Background()

	stored := store.StoredConflict{
		SyncConflict: models.SyncConflict{
			EntityID:   "profile-1",
			EntityType: models.CulturalProfile,
		},
		ServerEntity: models.SyncableEntity{ID: "profile-1", Version: 3},
	}

	mockConflicts.EXPECT().Get(ctx, "profile-1").Return(stored, nil)
	mockQueue.EXPECT().Get(ctx, "profile-1").Return(models.SyncableEntity{}, store.ErrEntityNotFound)
	mockQueue.EXPECT().Remove(ctx, "profile-1").Return(nil)
	mockCritical.EXPECT().Remove(ctx, "profile-1").Return(nil)
	mockConflicts.EXPECT().Remove(ctx, "profile-1").Return(nil)

	// политика типа — client_wins, но локальной копии больше нет
	err := resolver.Resolve(ctx, "profile-1", models.StrategyAuto)
	require.NoError(t, err)
}
