// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/okolovich/offsync/internal/adapter"
	"github.com/okolovich/offsync/internal/config"
	"github.com/okolovich/offsync/internal/mock"
	"github.com/okolovich/offsync/internal/retry"
	"github.com/okolovich/offsync/models"
)

// stubView — сетевое представление для оркестратора.
type stubView struct {
	suitable bool
}

func (s stubView) SuitableForSync() bool { return s.suitable }
func (s stubView) Condition() *models.NetworkCondition {
	if !s.suitable {
		return &models.NetworkCondition{IsConnected: false}
	}
	return &models.NetworkCondition{
		IsConnected:         true,
		IsInternetReachable: true,
		Strength:            models.SignalGood,
	}
}

type orchestratorFixture struct {
	orch     Orchestrator
	queue    *mock.MockQueueService
	resolver *mock.MockConflictResolver
	api      *mock.MockSyncAPI
	meta     *mock.MockMetaRepository
}

func newTestOrchestrator(t *testing.T, ctrl *gomock.Controller, online bool) orchestratorFixture {
	t.Helper()

	queue := mock.NewMockQueueService(ctrl)
	resolver := mock.NewMockConflictResolver(ctrl)
	api := mock.NewMockSyncAPI(ctrl)
	meta := mock.NewMockMetaRepository(ctrl)

	executor := retry.New(retry.Config{
		MaxRetries:        1,
		BaseDelay:         time.Microsecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableErrors:   []string{"network"},
	}, nil, nil)

	orch := NewOrchestrator(
		queue, resolver, api, executor,
		stubView{suitable: online},
		meta,
		NewSettings(config.Default().Sync),
		nil,
	)

	return orchestratorFixture{orch: orch, queue: queue, resolver: resolver, api: api, meta: meta}
}

// ── TriggerSync: happy path ───────────────────────────────────────────────────

func TestOrchestrator_TriggerSync_DrainsQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	entities := []models.SyncableEntity{
		{ID: "a", Type: models.Medication, Priority: models.PriorityCritical, Version: 1},
		{ID: "b", Type: models.Note, Priority: models.PriorityLow, Version: 1},
	}
	f.queue.EXPECT().Snapshot(ctx).Return(entities, nil)

	for _, e := range entities {
		e := e
		f.queue.EXPECT().MarkStatus(ctx, e.ID, models.StatusSyncing).Return(nil)
		f.api.EXPECT().SyncEntity(gomock.Any(), e).Return(e, nil)
		f.queue.EXPECT().MarkSynced(ctx, e.ID).Return(nil)
	}
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil)

	result, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.EntitiesSynced)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Conflicts)
}

func TestOrchestrator_TriggerSync_EmptyQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	f.queue.EXPECT().Snapshot(ctx).Return(nil, nil)
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil)

	result, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.EntitiesSynced)
}

// ── TriggerSync: conflicts ────────────────────────────────────────────────────

// TestOrchestrator_TriggerSync_ConflictRoutedToResolver verifies that a
// version mismatch is not a failure: the server copy travels to the resolver
// and the pass keeps going.
func TestOrchestrator_TriggerSync_ConflictRoutedToResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	local := models.SyncableEntity{ID: "profile-1", Type: models.CulturalProfile, Version: 2}
	serverCopy := models.SyncableEntity{ID: "profile-1", Type: models.CulturalProfile, Version: 3}
	detected := &models.SyncConflict{
		EntityID:           "profile-1",
		ConflictReason:     models.ReasonVersionMismatch,
		ResolutionStrategy: models.StrategyClientWins,
	}

	f.queue.EXPECT().Snapshot(ctx).Return([]models.SyncableEntity{local}, nil)
	f.queue.EXPECT().MarkStatus(ctx, "profile-1", models.StatusSyncing).Return(nil)
	f.api.EXPECT().SyncEntity(gomock.Any(), local).Return(serverCopy, adapter.ErrVersionConflict)
	f.queue.EXPECT().MarkStatus(ctx, "profile-1", models.StatusConflict).Return(nil)
	f.resolver.EXPECT().HandleDetected(ctx, local, serverCopy).Return(detected, nil)
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil)

	result, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "profile-1", result.Conflicts[0].EntityID)
	assert.Empty(t, result.Errors)
}

// ── TriggerSync: failures and the abort threshold ─────────────────────────────

func TestOrchestrator_TriggerSync_MinorityErrorsDoNotAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	entities := []models.SyncableEntity{
		{ID: "a", Version: 1},
		{ID: "b", Version: 1},
		{ID: "c", Version: 1},
	}
	f.queue.EXPECT().Snapshot(ctx).Return(entities, nil)

	// "a" падает без ретрая, "b" и "c" проходят
	f.queue.EXPECT().MarkStatus(ctx, "a", models.StatusSyncing).Return(nil)
	f.api.EXPECT().SyncEntity(gomock.Any(), entities[0]).Return(models.SyncableEntity{}, errors.New("payload rejected"))
	f.queue.EXPECT().MarkStatus(ctx, "a", models.StatusError).Return(nil)

	for _, e := range entities[1:] {
		e := e
		f.queue.EXPECT().MarkStatus(ctx, e.ID, models.StatusSyncing).Return(nil)
		f.api.EXPECT().SyncEntity(gomock.Any(), e).Return(e, nil)
		f.queue.EXPECT().MarkSynced(ctx, e.ID).Return(nil)
	}
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil)

	result, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.EntitiesSynced)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "a", result.Errors[0].EntityID)
}

// TestOrchestrator_TriggerSync_MajorityErrorsAbortPass verifies that a pass
// stops after a batch where over half the entities errored, leaving later
// batches untouched.
func TestOrchestrator_TriggerSync_MajorityErrorsAbortPass(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	// batch size 2: первая партия целиком падает, вторая не должна трогаться
	f.orch.(*syncOrchestrator).settings.Update(config.Sync{BatchSize: 2, RetentionDays: 14, Interval: time.Minute})

	entities := []models.SyncableEntity{
		{ID: "a", Version: 1},
		{ID: "b", Version: 1},
		{ID: "c", Version: 1},
	}
	f.queue.EXPECT().Snapshot(ctx).Return(entities, nil)

	for _, id := range []string{"a", "b"} {
		id := id
		f.queue.EXPECT().MarkStatus(ctx, id, models.StatusSyncing).Return(nil)
		f.api.EXPECT().SyncEntity(gomock.Any(), gomock.Any()).Return(models.SyncableEntity{}, errors.New("payload rejected"))
		f.queue.EXPECT().MarkStatus(ctx, id, models.StatusError).Return(nil)
	}
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil)

	result, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 2)
	assert.Zero(t, result.EntitiesSynced)
}

// ── TriggerSync: gating ───────────────────────────────────────────────────────

func TestOrchestrator_TriggerSync_SkipsWhenOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, false)

	result, err := f.orch.TriggerSync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.EntitiesSynced)
}

func TestOrchestrator_TriggerSync_SingleFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	entity := models.SyncableEntity{ID: "a", Version: 1}
	inFlight := make(chan struct{})
	release := make(chan struct{})

	f.queue.EXPECT().Snapshot(ctx).Return([]models.SyncableEntity{entity}, nil)
	f.queue.EXPECT().MarkStatus(ctx, "a", models.StatusSyncing).Return(nil)
	f.api.EXPECT().
		SyncEntity(gomock.Any(), entity).
		DoAndReturn(func(context.Context, models.SyncableEntity) (models.SyncableEntity, error) {
			close(inFlight)
			<-release
			return entity, nil
		})
	f.queue.EXPECT().MarkSynced(ctx, "a").Return(nil)
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil)

	done := make(chan models.SyncResult, 1)
	go func() {
		result, _ := f.orch.TriggerSync(ctx)
		done <- result
	}()

	<-inFlight
	// второй вызов во время первого прохода — пустой no-op
	second, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Zero(t, second.EntitiesSynced)

	close(release)
	first := <-done
	assert.Equal(t, 1, first.EntitiesSynced)
}

// ── subscriptions and sync time ───────────────────────────────────────────────

func TestOrchestrator_SubscribersNotified(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	f.queue.EXPECT().Snapshot(ctx).Return(nil, nil).Times(2)
	f.meta.EXPECT().Set(ctx, "last_sync_time", gomock.Any()).Return(nil).Times(2)

	notified := 0
	unsubscribe := f.orch.Subscribe(func(models.SyncResult) { notified++ })

	_, err := f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)

	unsubscribe()
	_, err = f.orch.TriggerSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
}

func TestOrchestrator_LastSyncTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	stamp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f.meta.EXPECT().Get(ctx, "last_sync_time").Return(stamp.Format(time.RFC3339Nano), nil)

	got, ok := f.orch.LastSyncTime(ctx)
	require.True(t, ok)
	assert.True(t, stamp.Equal(got))
}

func TestOrchestrator_LastSyncTime_NeverSynced(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newTestOrchestrator(t, ctrl, true)
	ctx := context.Background()

	f.meta.EXPECT().Get(ctx, "last_sync_time").Return("", errors.New("meta key was not found"))

	_, ok := f.orch.LastSyncTime(ctx)
	assert.False(t, ok)
}
