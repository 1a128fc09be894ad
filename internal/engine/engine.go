// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

// Package engine assembles the offline-first sync engine: local persistence,
// network monitoring, the retry executor, the offline queue, conflict
// resolution and the sync orchestrator, behind one facade with a
// Start/Stop lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okolovich/offsync/internal/adapter"
	"github.com/okolovich/offsync/internal/config"
	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/internal/network"
	"github.com/okolovich/offsync/internal/retry"
	"github.com/okolovich/offsync/internal/service"
	"github.com/okolovich/offsync/internal/store"
	"github.com/okolovich/offsync/models"
)

// Engine is the single entry point applications embed. All engine
// operations are safe for concurrent use.
type Engine struct {
	cfg      *config.StructuredConfig
	logger   *logger.Logger
	settings *service.Settings

	storages     *store.Storages
	monitor      *network.Monitor
	executor     *retry.Executor
	queue        service.QueueService
	resolver     service.ConflictResolver
	orchestrator service.Orchestrator
	scheduler    service.Scheduler
	notifier     adapter.Notifier

	deviceID string
	started  bool
}

// Option customises engine construction. Used mainly to substitute the
// transport or classifier in tests and embedded environments.
type Option func(*options)

type options struct {
	api        adapter.SyncAPI
	notifier   adapter.Notifier
	classifier network.Classifier
}

// WithSyncAPI replaces the default HTTP transport.
func WithSyncAPI(api adapter.SyncAPI) Option {
	return func(o *options) { o.api = api }
}

// WithNotifier replaces the default log-based offline-mode notifier.
func WithNotifier(n adapter.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClassifier replaces the default network classifier.
func WithClassifier(c network.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// New builds a fully wired engine from the given configuration. The local
// database is opened and migrated here; background jobs start only on
// [Engine.Start].
func New(cfg *config.StructuredConfig, log *logger.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Nop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	storages, err := store.NewStorages(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("init storages: %w", err)
	}

	deviceID, err := ensureDeviceID(context.Background(), storages.Meta)
	if err != nil {
		return nil, fmt.Errorf("resolve device id: %w", err)
	}

	settings := service.NewSettings(cfg.Sync)
	monitor := network.NewMonitor(o.classifier, log)
	executor := retry.New(retryConfig(cfg.Retry), monitor, log)

	api := o.api
	if api == nil {
		api = adapter.NewHTTPSyncAPI(adapter.HTTPClientConfig{
			BaseURL: cfg.Adapter.HTTPAddress,
			Timeout: cfg.Adapter.RequestTimeout,
		}, log)
	}
	notifier := o.notifier
	if notifier == nil {
		notifier = adapter.NewLogNotifier(log)
	}

	queue := service.NewQueueService(storages, monitor, settings, deviceID, log)
	resolver := service.NewConflictResolver(storages, settings, log)
	orchestrator := service.NewOrchestrator(queue, resolver, api, executor, monitor, storages.Meta, settings, log)
	scheduler := service.NewScheduler(orchestrator, queue, monitor, notifier, settings, log)

	e := &Engine{
		cfg:          cfg,
		logger:       log,
		settings:     settings,
		storages:     storages,
		monitor:      monitor,
		executor:     executor,
		queue:        queue,
		resolver:     resolver,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		notifier:     notifier,
		deviceID:     deviceID,
	}

	// A critical enqueue while the link is up should not wait for the next
	// timer tick.
	queue.SetUrgentSignal(func() {
		go func() {
			if _, err := e.orchestrator.TriggerSync(context.Background()); err != nil {
				e.logger.Err(err).Msg("urgent sync failed")
			}
		}()
	})

	return e, nil
}

// Start recovers entities left mid-sync by a previous crash and launches
// the background scheduler.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return nil
	}

	recovered, err := e.queue.RecoverStale(ctx)
	if err != nil {
		return fmt.Errorf("recover stale queue entries: %w", err)
	}
	if recovered > 0 {
		e.logger.Info().Int("recovered", recovered).Msg("reset entities stuck in syncing state")
	}

	if err := e.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	e.started = true
	e.logger.Info().Str("device_id", e.deviceID).Msg("sync engine started")
	return nil
}

// Stop halts background jobs and closes the local database. The engine
// cannot be restarted after Stop.
func (e *Engine) Stop() error {
	if e.started {
		e.scheduler.Stop()
		e.started = false
	}
	return e.storages.Close()
}

// DeviceID returns the stable identifier stamped on every local mutation.
func (e *Engine) DeviceID() string { return e.deviceID }

// Enqueue records a local mutation for eventual delivery.
func (e *Engine) Enqueue(ctx context.Context, entity models.SyncableEntity) error {
	return e.queue.Enqueue(ctx, entity)
}

// TriggerSync runs one sync pass immediately, subject to single-flight and
// network gating.
func (e *Engine) TriggerSync(ctx context.Context) (models.SyncResult, error) {
	return e.orchestrator.TriggerSync(ctx)
}

// Subscribe registers a listener for sync-pass summaries.
func (e *Engine) Subscribe(listener func(models.SyncResult)) func() {
	return e.orchestrator.Subscribe(listener)
}

// Stats reports the current queue counters.
func (e *Engine) Stats(ctx context.Context) (models.QueueStats, error) {
	return e.queue.Stats(ctx)
}

// ListCriticalPending returns the critical-protected snapshots still
// awaiting sync. An entity stays listed here, regardless of retention age,
// until the server accepts it.
func (e *Engine) ListCriticalPending(ctx context.Context) ([]models.SyncableEntity, error) {
	return e.queue.ListCritical(ctx)
}

// ListConflicts returns conflicts awaiting manual resolution.
func (e *Engine) ListConflicts(ctx context.Context) ([]store.StoredConflict, error) {
	return e.resolver.ListOutstanding(ctx)
}

// ResolveConflict applies a strategy to an outstanding conflict. An empty
// override applies the per-type policy.
func (e *Engine) ResolveConflict(ctx context.Context, entityID string, override models.ResolutionStrategy) error {
	return e.resolver.Resolve(ctx, entityID, override)
}

// ReportNetwork feeds a platform connectivity event into the monitor.
// Call it from whatever connectivity hook the host platform provides.
func (e *Engine) ReportNetwork(link network.Link) {
	e.monitor.Report(link)
}

// NetworkCondition returns the latest classified condition, or nil if no
// connectivity report has arrived yet.
func (e *Engine) NetworkCondition() *models.NetworkCondition {
	return e.monitor.Condition()
}

// LastSyncTime reports when the last sync pass completed, if ever.
func (e *Engine) LastSyncTime(ctx context.Context) (time.Time, bool) {
	return e.orchestrator.LastSyncTime(ctx)
}

// UpdateConfig applies a new sync configuration at runtime. Changing the
// auto-sync interval or toggling auto-sync restarts the scheduler.
func (e *Engine) UpdateConfig(ctx context.Context, cfg config.Sync) error {
	prev := e.settings.Sync()
	e.settings.Update(cfg)

	rescheduled := prev.Interval != cfg.Interval || prev.DisableAutoSync != cfg.DisableAutoSync
	if e.started && rescheduled {
		e.scheduler.Stop()
		if err := e.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("restart scheduler: %w", err)
		}
		e.logger.Info().Dur("interval", cfg.Interval).Msg("scheduler restarted with new settings")
	}
	return nil
}

// ensureDeviceID reads the persistent device identifier, generating and
// storing one on first run.
func ensureDeviceID(ctx context.Context, meta store.MetaRepository) (string, error) {
	id, err := meta.Get(ctx, store.MetaDeviceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, store.ErrMetaKeyNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := meta.Set(ctx, store.MetaDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// retryConfig maps the user-facing retry settings onto the executor policy,
// keeping the built-in retryable status and error lists.
func retryConfig(cfg config.Retry) retry.Config {
	rc := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		rc.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		rc.MaxDelay = cfg.MaxDelay
	}
	if cfg.BackoffMultiplier > 0 {
		rc.BackoffMultiplier = cfg.BackoffMultiplier
	}
	if cfg.JitterFactor > 0 {
		rc.JitterFactor = cfg.JitterFactor
	}
	if cfg.Timeout > 0 {
		rc.Timeout = cfg.Timeout
	}
	rc.EnableNetworkCheck = !cfg.DisableNetworkCheck
	return rc
}
