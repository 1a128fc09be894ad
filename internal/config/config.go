// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the sync
// engine. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, an optional JSON
// file, and built-in defaults (in that priority order, first non-zero wins).
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Sync holds offline-sync behaviour settings: auto-sync cadence,
	// retention, batch sizing.
	Sync Sync `envPrefix:"SYNC_"`

	// Retry holds the default retry policy applied by the retry executor
	// when a call site does not override it.
	Retry Retry `envPrefix:"RETRY_"`

	// Storage holds configuration for the local persistence backend.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds configuration for the remote sync API transport.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Sync groups process-wide offline-sync settings. Mutable at runtime via the
// engine's explicit UpdateConfig setter; nothing in the core reads the
// environment after startup.
type Sync struct {
	// DisableAutoSync turns off the periodic background sync job.
	// Auto-sync is on by default; the negated form keeps the zero value
	// meaningful across config merging.
	// Env: SYNC_DISABLE_AUTO_SYNC
	DisableAutoSync bool `env:"DISABLE_AUTO_SYNC"`

	// Interval is the cadence of the periodic auto-sync job.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// RetentionDays bounds how long unsynced non-critical entities are kept
	// in the general queue before becoming eligible for pruning.
	// Env: SYNC_RETENTION_DAYS
	RetentionDays int `env:"RETENTION_DAYS"`

	// MaxLocalStorageMB caps the local database size reported in stats.
	// Env: SYNC_MAX_LOCAL_STORAGE_MB
	MaxLocalStorageMB int `env:"MAX_LOCAL_STORAGE_MB"`

	// DisableConflictResolution switches automatic conflict resolution off;
	// conflicts then accumulate for caller-driven manual resolution.
	// Env: SYNC_DISABLE_CONFLICT_RESOLUTION
	DisableConflictResolution bool `env:"DISABLE_CONFLICT_RESOLUTION"`

	// BatchSize is the number of entities drained per sync batch.
	// Env: SYNC_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`
}

// AutoSyncEnabled reports whether the periodic sync job should run.
func (s Sync) AutoSyncEnabled() bool { return !s.DisableAutoSync }

// ConflictResolutionEnabled reports whether conflicts are auto-resolved.
func (s Sync) ConflictResolutionEnabled() bool { return !s.DisableConflictResolution }

// Retention returns the general-queue retention window as a duration.
func (s Sync) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// Retry holds the engine-wide default retry policy.
type Retry struct {
	// MaxRetries is the number of re-attempts after the initial try.
	// Env: RETRY_MAX_RETRIES
	MaxRetries int `env:"MAX_RETRIES"`

	// BaseDelay seeds the exponential backoff sequence.
	// Env: RETRY_BASE_DELAY
	BaseDelay time.Duration `env:"BASE_DELAY"`

	// MaxDelay caps any single computed backoff delay.
	// Env: RETRY_MAX_DELAY
	MaxDelay time.Duration `env:"MAX_DELAY"`

	// BackoffMultiplier is the exponential growth factor between attempts.
	// Env: RETRY_BACKOFF_MULTIPLIER
	BackoffMultiplier float64 `env:"BACKOFF_MULTIPLIER"`

	// JitterFactor is the random perturbation fraction (0..1) applied to
	// each delay to avoid synchronized retry storms across devices.
	// Env: RETRY_JITTER_FACTOR
	JitterFactor float64 `env:"JITTER_FACTOR"`

	// Timeout is the hard per-attempt deadline for the wrapped operation.
	// Env: RETRY_TIMEOUT
	Timeout time.Duration `env:"TIMEOUT"`

	// DisableNetworkCheck turns off network-gating before each attempt.
	// Env: RETRY_DISABLE_NETWORK_CHECK
	DisableNetworkCheck bool `env:"DISABLE_NETWORK_CHECK"`
}

// Storage groups the configuration for the local persistence backend.
type Storage struct {
	// DB holds the embedded database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the embedded SQLite database that backs
// the offline queue, conflict set, and critical-protected snapshot.
type DB struct {
	// DSN is the SQLite data source name, usually a file path
	// (e.g. "offsync.db" or "/data/offsync.db").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Adapter holds configuration for the remote sync API transport.
type Adapter struct {
	// HTTPAddress is the base URL of the remote sync API
	// (e.g. "http://localhost:8080").
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the outbound HTTP client timeout. The per-attempt
	// retry timeout is enforced separately by the retry executor.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// GetStructuredConfig loads, merges, and validates the engine configuration
// from all available sources in the following priority order (first non-zero
// value wins):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}

// Default returns the built-in configuration the engine runs with when no
// external source overrides a field.
func Default() *StructuredConfig {
	return &StructuredConfig{
		Sync: Sync{
			Interval:          5 * time.Minute,
			RetentionDays:     14,
			MaxLocalStorageMB: 50,
			BatchSize:         50,
		},
		Retry: Retry{
			MaxRetries:        3,
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFactor:      0.1,
			Timeout:           30 * time.Second,
		},
		Storage: Storage{DB: DB{DSN: "offsync.db"}},
		Adapter: Adapter{
			HTTPAddress:    "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
		},
	}
}
