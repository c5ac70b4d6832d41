package domain

import "time"

// PresetKind selects one of the preset tables
type PresetKind string

const (
	PresetMaintenanceItem PresetKind = "maintenance_item"
	PresetMaintenanceType PresetKind = "maintenance_type"
)

// Preset is a reusable name+category lookup row with a usage counter.
// MaintenanceItemPreset and MaintenanceTypePreset share this shape.
type Preset struct {
	ID          string     `json:"id" db:"id"`
	Kind        PresetKind `json:"kind" db:"-"`
	Name        string     `json:"name" db:"name"`
	Category    string     `json:"category" db:"category"`
	Description string     `json:"description" db:"description"`
	UsageCount  int        `json:"usage_count" db:"usage_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsValidPresetKind reports whether k names a preset table
func IsValidPresetKind(k PresetKind) bool {
	return k == PresetMaintenanceItem || k == PresetMaintenanceType
}
