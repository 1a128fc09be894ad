package models

import (
	"encoding/json"
	"time"
)

// EntityType is the closed set of domain record kinds subject to sync.
const (
	Medication       = "medication"
	EmergencyContact = "emergency_contact"
	Appointment      = "appointment"
	HealthRecord     = "health_record"
	CulturalProfile  = "cultural_profile"
	UserSettings     = "user_settings"
	Note             = "note"
)

// SyncStatus tracks an entity through the sync state machine.
// Transitions: pending → syncing → {synced | conflict | error},
// conflict → pending after resolution.
type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSyncing  SyncStatus = "syncing"
	StatusSynced   SyncStatus = "synced"
	StatusConflict SyncStatus = "conflict"
	StatusError    SyncStatus = "error"
)

// Priority orders queued entities. Higher values drain first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "normal"
}

// ParsePriority maps a priority name to its level. Unknown names map to
// PriorityNormal so a malformed row never blocks the queue.
func ParsePriority(name string) Priority {
	for p, n := range priorityNames {
		if n == name {
			return p
		}
	}
	return PriorityNormal
}

// SyncableEntity is a unit of application data buffered for synchronization
// with the remote authority. The payload is opaque to the engine.
type SyncableEntity struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data"`
	LastModified time.Time       `json:"last_modified"`
	Version      int64           `json:"version"`
	DeviceID     string          `json:"device_id"`
	UserID       string          `json:"user_id"`
	SyncStatus   SyncStatus      `json:"sync_status"`
	Priority     Priority        `json:"priority"`
	IsDeleted    bool            `json:"is_deleted,omitempty"`
}

// DataFields decodes the opaque payload into a field map for merge
// resolution. A nil or non-object payload yields an empty map.
func (e SyncableEntity) DataFields() map[string]any {
	fields := make(map[string]any)
	if len(e.Data) == 0 {
		return fields
	}
	_ = json.Unmarshal(e.Data, &fields)
	return fields
}
