package models

import "time"

// SyncError records a single per-entity failure inside a sync pass.
type SyncError struct {
	EntityID string `json:"entity_id"`
	Message  string `json:"message"`
}

// SyncResult summarises one sync pass. Subscribers receive it after every
// completed (or aborted) pass.
type SyncResult struct {
	Success        bool              `json:"success"`
	EntitiesSynced int               `json:"entities_synced"`
	Conflicts      []SyncConflict    `json:"conflicts,omitempty"`
	Errors         []SyncError       `json:"errors,omitempty"`
	SyncDuration   time.Duration     `json:"sync_duration"`
	NetworkInfo    *NetworkCondition `json:"network_info,omitempty"`
}

// QueueStats is the queryable observability surface of the offline queue.
type QueueStats struct {
	TotalItems        int                `json:"total_items"`
	PendingDeliveries int                `json:"pending_deliveries"`
	AverageQueueTime  time.Duration      `json:"average_queue_time"`
	StorageUsedBytes  int64              `json:"storage_used_bytes"`
	ByStatus          map[SyncStatus]int `json:"by_status"`
	ByPriority        map[string]int     `json:"by_priority"`
}
