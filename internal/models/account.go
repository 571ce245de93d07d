package models

import (
	"time"
)

// AccountRole is fixed at registration for now; there is no role-change endpoint.
type AccountRole string

const (
	RoleCompanyAdmin AccountRole = "company_admin"
	RoleUser         AccountRole = "user"
)

type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Name         string      `gorm:"size:255;not null" json:"name"`
	Email        string      `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string      `gorm:"size:255;not null" json:"-"`
	Role         AccountRole `gorm:"size:32;not null;default:user" json:"role"`

	CompanyID uint     `gorm:"index;not null" json:"company_id"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// Company is the tenant boundary: it owns accounts, projects and licenses.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name string `gorm:"uniqueIndex;size:255;not null" json:"name"`
}

type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "active"
	LicenseCancelled LicenseStatus = "cancelled"
	LicenseTrial     LicenseStatus = "trial"
	LicenseExpired   LicenseStatus = "expired"
)

type License struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CompanyID uint `gorm:"index;not null" json:"company_id"`

	Plan      string        `gorm:"size:64;not null" json:"plan"`
	StartDate time.Time     `gorm:"not null" json:"start_date"`
	EndDate   time.Time     `gorm:"not null" json:"end_date"`
	Status    LicenseStatus `gorm:"size:32;not null;default:active" json:"status"`
}
