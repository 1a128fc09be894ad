package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a remote sync API base URL
//	-d local database DSN (SQLite file path)
//	-c/-config json file path with configs
//	-sync-interval auto-sync cadence (e.g., "5m")
//	-batch-size entities drained per sync batch
//	-retention-days general-queue retention window in days
//	-request-timeout outbound request timeout (e.g., "15s")
//	-no-auto-sync disable the periodic sync job
func ParseFlags() *StructuredConfig {
	var adapterAddress string
	var databaseDSN string
	var jsonConfigPath string
	var syncInterval time.Duration
	var batchSize int
	var retentionDays int
	var requestTimeout time.Duration
	var noAutoSync bool

	flag.StringVar(&adapterAddress, "a", "", "Remote sync API base URL")
	flag.StringVar(&databaseDSN, "d", "", "Local database DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Auto-sync interval (e.g., 5m)")
	flag.IntVar(&batchSize, "batch-size", 0, "Entities per sync batch")
	flag.IntVar(&retentionDays, "retention-days", 0, "Queue retention in days")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	flag.BoolVar(&noAutoSync, "no-auto-sync", false, "Disable periodic auto-sync")

	flag.Parse()

	return &StructuredConfig{
		Sync: Sync{
			DisableAutoSync: noAutoSync,
			Interval:        syncInterval,
			RetentionDays:   retentionDays,
			BatchSize:       batchSize,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    adapterAddress,
			RequestTimeout: requestTimeout,
		},
		JSONFilePath: jsonConfigPath,
	}
}
