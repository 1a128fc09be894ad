package models

import "time"

// ConflictReason explains why local and server copies disagree.
type ConflictReason string

const (
	ReasonVersionMismatch        ConflictReason = "version_mismatch"
	ReasonConcurrentModification ConflictReason = "concurrent_modification"
	ReasonDeletedLocally         ConflictReason = "deleted_locally"
	ReasonDeletedRemotely        ConflictReason = "deleted_remotely"
)

// ResolutionStrategy selects how a conflict is reconciled.
type ResolutionStrategy string

const (
	StrategyAuto       ResolutionStrategy = "auto"
	StrategyManual     ResolutionStrategy = "manual"
	StrategyServerWins ResolutionStrategy = "server_wins"
	StrategyClientWins ResolutionStrategy = "client_wins"
	StrategyMerge      ResolutionStrategy = "merge"
)

// SyncConflict records a version disagreement detected during a sync attempt.
// It lives in the outstanding-conflict set until resolved.
type SyncConflict struct {
	EntityID           string             `json:"entity_id"`
	EntityType         string             `json:"entity_type"`
	LocalVersion       int64              `json:"local_version"`
	ServerVersion      int64              `json:"server_version"`
	ConflictReason     ConflictReason     `json:"conflict_reason"`
	ResolutionStrategy ResolutionStrategy `json:"resolution_strategy"`
	DetectedAt         time.Time          `json:"detected_at"`
}
