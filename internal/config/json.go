package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON-friendly types
// so duration fields accept human-readable strings like "5m" or "30s".
type StructuredJSONConfig struct {
	Sync struct {
		DisableAutoSync           bool     `json:"disable_auto_sync"`
		Interval                  Duration `json:"interval"`
		RetentionDays             int      `json:"retention_days"`
		MaxLocalStorageMB         int      `json:"max_local_storage_mb"`
		DisableConflictResolution bool     `json:"disable_conflict_resolution"`
		BatchSize                 int      `json:"batch_size"`
	} `json:"sync,omitempty"`

	Retry struct {
		MaxRetries          int      `json:"max_retries"`
		BaseDelay           Duration `json:"base_delay"`
		MaxDelay            Duration `json:"max_delay"`
		BackoffMultiplier   float64  `json:"backoff_multiplier"`
		JitterFactor        float64  `json:"jitter_factor"`
		Timeout             Duration `json:"timeout"`
		DisableNetworkCheck bool     `json:"disable_network_check"`
	} `json:"retry,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Sync: Sync{
			DisableAutoSync:           jsonCfg.Sync.DisableAutoSync,
			Interval:                  time.Duration(jsonCfg.Sync.Interval),
			RetentionDays:             jsonCfg.Sync.RetentionDays,
			MaxLocalStorageMB:         jsonCfg.Sync.MaxLocalStorageMB,
			DisableConflictResolution: jsonCfg.Sync.DisableConflictResolution,
			BatchSize:                 jsonCfg.Sync.BatchSize,
		},
		Retry: Retry{
			MaxRetries:          jsonCfg.Retry.MaxRetries,
			BaseDelay:           time.Duration(jsonCfg.Retry.BaseDelay),
			MaxDelay:            time.Duration(jsonCfg.Retry.MaxDelay),
			BackoffMultiplier:   jsonCfg.Retry.BackoffMultiplier,
			JitterFactor:        jsonCfg.Retry.JitterFactor,
			Timeout:             time.Duration(jsonCfg.Retry.Timeout),
			DisableNetworkCheck: jsonCfg.Retry.DisableNetworkCheck,
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    jsonCfg.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
