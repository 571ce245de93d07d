package models

import (
	"time"
)

// ProjectRole is the in-project collaboration role. Members and shares use
// the same role vocabulary: viewers read, editors read and write.
type ProjectRole string

const (
	RoleViewer ProjectRole = "viewer"
	RoleEditor ProjectRole = "editor"
)

func (r ProjectRole) Valid() bool { return r == RoleViewer || r == RoleEditor }

type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// Bumped on every content-mutating action; project listings order by it.
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `gorm:"size:255;not null" json:"name"`
	CompanyID uint   `gorm:"index;not null" json:"company_id"`
	OwnerID   uint   `gorm:"index;not null" json:"owner_id"`
}

// ProjectMember grants an account a role on a project. This is the
// materialized, in-tenant collaboration mechanism; cross-tenant access
// starts life as a ProjectShare instead.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProjectID uint        `gorm:"uniqueIndex:idx_project_account;not null" json:"project_id"`
	AccountID uint        `gorm:"uniqueIndex:idx_project_account;not null" json:"account_id"`
	Role      ProjectRole `gorm:"size:32;not null;default:viewer" json:"role"`
}

type ShareStatus string

const (
	SharePending  ShareStatus = "pending"
	ShareAccepted ShareStatus = "accepted"
	ShareRejected ShareStatus = "rejected"
)

// ProjectShare is a cross-tenant invitation keyed by email. Invariant: at
// most one non-rejected share per (project, email) pair.
type ProjectShare struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProjectID  uint        `gorm:"index;uniqueIndex:idx_project_live_share;not null" json:"project_id"`
	SharedByID uint        `gorm:"not null" json:"shared_by_id"`
	Email      string      `gorm:"index;size:255;not null" json:"email"`
	Role       ProjectRole `gorm:"size:32;not null;default:viewer" json:"role"`
	Status     ShareStatus `gorm:"size:32;not null;default:pending" json:"status"`

	// ActiveEmail mirrors Email while the share is pending or accepted and
	// is cleared to NULL on rejection. The unique index on (project,
	// active_email) backstops the one-live-share invariant the same way the
	// (project, version_number) index backstops version assignment.
	ActiveEmail *string `gorm:"uniqueIndex:idx_project_live_share;size:255" json:"-"`

	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	AcceptedByID *uint      `json:"accepted_by_id,omitempty"`
}
