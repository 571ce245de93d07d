package models

import (
	"time"

	"gorm.io/datatypes"
)

// CircuitVersion is an immutable snapshot of the circuit JSON. VersionNumber
// is gapless per project, starting at 1, assigned under the project's row
// lock at write time.
type CircuitVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProjectID     uint           `gorm:"uniqueIndex:idx_project_version;not null" json:"project_id"`
	VersionNumber int            `gorm:"uniqueIndex:idx_project_version;not null" json:"version_number"`
	DataJSON      datatypes.JSON `gorm:"not null" json:"data_json"`
}

type SimulationStatus string

const (
	SimulationPending SimulationStatus = "pending"
	SimulationSuccess SimulationStatus = "success"
	SimulationError   SimulationStatus = "error"
)

// Simulation is the persisted record of a submitted task. It is committed
// as pending before the result is known and reconciled to a terminal state
// when the task completes.
type Simulation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SimulatedAt time.Time `gorm:"autoCreateTime" json:"simulated_at"`

	ProjectID  uint             `gorm:"index;not null" json:"project_id"`
	TaskID     string           `gorm:"uniqueIndex;size:64;not null" json:"task_id"`
	Status     SimulationStatus `gorm:"size:32;not null;default:pending" json:"status"`
	ResultJSON datatypes.JSON   `json:"result_json,omitempty"`
}

// AuditLog is append-only: rows are written once and never mutated.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AccountID uint   `gorm:"index;not null" json:"account_id"`
	ProjectID uint   `gorm:"index;not null" json:"project_id"`
	Action    string `gorm:"size:255;not null" json:"action"`
}
