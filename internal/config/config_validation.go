// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

package config

import "strings"

// validate checks that the final merged [StructuredConfig] satisfies the
// engine's invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a sentinel error otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, ":memory:") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Sync.Interval <= 0 || cfg.Sync.BatchSize <= 0 || cfg.Sync.RetentionDays <= 0 {
		return ErrInvalidSyncConfigs
	}

	if cfg.Retry.MaxRetries < 0 ||
		cfg.Retry.BaseDelay <= 0 ||
		cfg.Retry.MaxDelay < cfg.Retry.BaseDelay ||
		cfg.Retry.BackoffMultiplier < 1 ||
		cfg.Retry.JitterFactor < 0 || cfg.Retry.JitterFactor > 1 {
		return ErrInvalidRetryConfigs
	}

	return nil
}
