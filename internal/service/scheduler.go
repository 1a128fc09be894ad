// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/okolovich/offsync/internal/adapter"
	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/internal/network"
	"github.com/okolovich/offsync/models"
)

type syncScheduler struct {
	orchestrator Orchestrator
	queue        QueueService
	monitor      *network.Monitor
	notifier     adapter.Notifier
	settings     *Settings
	logger       *logger.Logger

	mu          sync.Mutex
	cron        *cron.Cron
	unsubscribe func()
	cancel      context.CancelFunc
	wasOnline   bool
	started     bool
}

// NewScheduler builds the background driver of the engine: the periodic
// auto-sync timer, the hourly retention prune and the network-restore
// trigger. It owns no work itself, it only decides when the orchestrator
// and queue service run.
func NewScheduler(
	orchestrator Orchestrator,
	queue QueueService,
	monitor *network.Monitor,
	notifier adapter.Notifier,
	settings *Settings,
	log *logger.Logger,
) Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &syncScheduler{
		orchestrator: orchestrator,
		queue:        queue,
		monitor:      monitor,
		notifier:     notifier,
		settings:     settings,
		logger:       log,
		wasOnline:    true,
	}
}

func (s *syncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cfg := s.settings.Sync()
	s.cron = cron.New()

	if cfg.AutoSyncEnabled() {
		spec := fmt.Sprintf("@every %s", cfg.Interval)
		if _, err := s.cron.AddFunc(spec, func() { s.periodicSync(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("schedule auto-sync job: %w", err)
		}
		s.logger.Info().Dur("interval", cfg.Interval).Msg("auto-sync scheduled")
	}

	if _, err := s.cron.AddFunc("@every 1h", func() { s.prune(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule prune job: %w", err)
	}

	s.unsubscribe = s.monitor.OnChange(func(ev network.Event) {
		s.onNetworkEvent(runCtx, ev)
	})

	s.cron.Start()
	s.started = true
	return nil
}

func (s *syncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	// cron.Stop returns a context that completes once running jobs finish.
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info().Msg("scheduler stopped")
}

// periodicSync fires on the auto-sync interval. It skips quietly when the
// link is down or the queue has nothing to drain.
func (s *syncScheduler) periodicSync(ctx context.Context) {
	if !s.monitor.SuitableForSync() {
		s.logger.Debug().Msg("periodic sync skipped, network unsuitable")
		return
	}

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.logger.Err(err).Msg("failed to read queue stats before periodic sync")
	} else if stats.ByStatus[models.StatusPending]+stats.ByStatus[models.StatusError] == 0 {
		// conflict and syncing rows are not drainable, so they must not
		// keep waking the orchestrator
		s.logger.Debug().Msg("periodic sync skipped, nothing eligible to drain")
		return
	}

	if _, err := s.orchestrator.TriggerSync(ctx); err != nil {
		s.logger.Err(err).Msg("periodic sync failed")
	}
}

func (s *syncScheduler) prune(ctx context.Context) {
	removed, err := s.queue.Prune(ctx)
	if err != nil {
		s.logger.Err(err).Msg("retention prune failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("retention prune complete")
	}
}

// onNetworkEvent flips offline-mode notifications on edges and fires exactly
// one sync pass when connectivity is restored. A flood of platform reports
// while the link stays down produces no repeated notifications.
func (s *syncScheduler) onNetworkEvent(ctx context.Context, ev network.Event) {
	online := ev.Condition.Suitable()

	s.mu.Lock()
	edge := online != s.wasOnline
	s.wasOnline = online
	s.mu.Unlock()

	if edge && s.notifier != nil {
		s.notifier.OfflineModeChanged(!online)
	}

	if ev.Recovered {
		s.logger.Info().Msg("connectivity restored, triggering sync")
		go func() {
			if _, err := s.orchestrator.TriggerSync(ctx); err != nil {
				s.logger.Err(err).Msg("recovery sync failed")
			}
		}()
	}
}
