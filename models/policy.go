package models

// IsSafetyCritical reports whether an entity type carries clinically
// relevant data. These records are mirrored into the critical-protected
// store and the server stays authoritative for them during conflicts.
func IsSafetyCritical(entityType string) bool {
	switch entityType {
	case Medication, EmergencyContact, HealthRecord:
		return true
	}
	return false
}

// IsUserPreference reports whether an entity type encodes user intent that
// must not be silently overwritten by the server.
func IsUserPreference(entityType string) bool {
	switch entityType {
	case CulturalProfile, UserSettings:
		return true
	}
	return false
}
