// Package authz computes effective project permissions. All routes resolve
// access through here instead of inlining relation queries.
package authz

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ampflux/internal/models"
)

// Source tags which relation produced the decision.
type Source string

const (
	SourceOwner  Source = "owner" // same-company: full trust
	SourceMember Source = "member"
	SourceShare  Source = "share"
	SourceNone   Source = "none"
)

// RoleOwner is the synthetic role reported for same-company access; member
// and share decisions carry the granted viewer/editor role instead.
const RoleOwner = "owner"

// Decision is the effective permission tuple for (account, project).
type Decision struct {
	CanView bool               `json:"can_view"`
	CanEdit bool               `json:"can_edit"`
	Role    string             `json:"role,omitempty"`
	Source  Source             `json:"-"`
	Status  models.ShareStatus `json:"-"` // set when Source == share
}

type Resolver struct{ db *gorm.DB }

func NewResolver(db *gorm.DB) *Resolver { return &Resolver{db: db} }

var denied = Decision{Source: SourceNone}

// Resolve evaluates the trust hierarchy in strict priority order and stops
// at the first match:
//
//	1) same company            -> full access, role "owner"
//	2) ProjectMember row       -> view always, edit iff editor
//	3) pending ProjectShare    -> per the invitation's role
//	4) accepted ProjectShare   -> same semantics, already materialized
//	5) nothing                 -> no access
//
// Company affiliation deliberately overrides any conflicting member or
// share row.
func (r *Resolver) Resolve(ctx context.Context, acc *models.Account, project *models.Project) (Decision, error) {
	if acc == nil || project == nil {
		return denied, nil
	}

	// 1) same-company relationship
	if project.CompanyID == acc.CompanyID {
		return Decision{CanView: true, CanEdit: true, Role: RoleOwner, Source: SourceOwner}, nil
	}

	// 2) explicit membership row
	var member models.ProjectMember
	err := r.db.WithContext(ctx).
		Where(&models.ProjectMember{ProjectID: project.ID, AccountID: acc.ID}).
		First(&member).Error
	switch {
	case err == nil:
		return Decision{
			CanView: true,
			CanEdit: member.Role == models.RoleEditor,
			Role:    string(member.Role),
			Source:  SourceMember,
		}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return denied, err
	}

	// 3) pending, then 4) accepted share matched by email
	for _, status := range []models.ShareStatus{models.SharePending, models.ShareAccepted} {
		var share models.ProjectShare
		err := r.db.WithContext(ctx).
			Where(&models.ProjectShare{ProjectID: project.ID, Email: acc.Email, Status: status}).
			First(&share).Error
		switch {
		case err == nil:
			return Decision{
				CanView: true,
				CanEdit: share.Role == models.RoleEditor,
				Role:    string(share.Role),
				Source:  SourceShare,
				Status:  status,
			}, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return denied, err
		}
	}

	// 5) no relation at all
	return denied, nil
}

// CanManage gates the destructive / permission-altering operations: delete
// project, add or remove members, create shares. Edit permission alone is
// not enough; only the owning account or a company_admin of the owning
// company qualifies.
func CanManage(acc *models.Account, project *models.Project) bool {
	if acc == nil || project == nil {
		return false
	}
	if acc.ID == project.OwnerID {
		return true
	}
	return acc.Role == models.RoleCompanyAdmin && acc.CompanyID == project.CompanyID
}
