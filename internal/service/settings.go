package service

import (
	"sync"

	"github.com/okolovich/offsync/internal/config"
)

// Settings is the shared, runtime-updatable view of the offline-sync
// configuration. The engine owns the single instance; queue, resolver, and
// orchestrator read it on every use so an explicit update call takes effect
// on the next operation without restarts.
type Settings struct {
	mu   sync.RWMutex
	sync config.Sync
}

// NewSettings wraps the startup configuration.
func NewSettings(cfg config.Sync) *Settings {
	return &Settings{sync: cfg}
}

// Sync returns the current offline-sync configuration.
func (s *Settings) Sync() config.Sync {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sync
}

// Update replaces the offline-sync configuration.
func (s *Settings) Update(cfg config.Sync) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync = cfg
}
