package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ampflux/internal/models"
)

var (
	ErrMemberExists      = errors.New("account is already a member of this project")
	ErrCannotRemoveOwner = errors.New("cannot remove the project owner")
	ErrDuplicateShare    = errors.New("project already shared with this email")
	ErrShareNotFound     = errors.New("share invitation not found")
)

type ProjectStore struct{ db *gorm.DB }

func NewProjectStore(db *gorm.DB) *ProjectStore { return &ProjectStore{db: db} }

// Create inserts the project and the owner's editor membership in one
// transaction.
func (s *ProjectStore) Create(ctx context.Context, name string, owner *models.Account) (*models.Project, error) {
	p := models.Project{
		Name:      name,
		CompanyID: owner.CompanyID,
		OwnerID:   owner.ID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		m := models.ProjectMember{ProjectID: p.ID, AccountID: owner.ID, Role: models.RoleEditor}
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectStore) Get(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListForAccount returns company projects plus membership projects from
// other tenants, deduplicated, most recently updated first. Share-only
// projects are deliberately excluded; they live under /projects/shared.
func (s *ProjectStore) ListForAccount(ctx context.Context, acc *models.Account) ([]models.Project, error) {
	var out []models.Project
	err := s.db.WithContext(ctx).
		Distinct("projects.*").
		Joins("LEFT JOIN project_members ON project_members.project_id = projects.id").
		Where("projects.company_id = ? OR project_members.account_id = ?", acc.CompanyID, acc.ID).
		Order("projects.updated_at DESC").
		Find(&out).Error
	return out, err
}

// Delete removes the project and every row hanging off it. Related rows go
// first to keep foreign keys satisfied.
func (s *ProjectStore) Delete(ctx context.Context, projectID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&models.ProjectMember{},
			&models.ProjectShare{},
			&models.CircuitVersion{},
			&models.Simulation{},
			&models.AuditLog{},
		} {
			if err := tx.Where("project_id = ?", projectID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, projectID).Error
	})
}

// Touch bumps updated_at; called by every content-mutating action.
func (s *ProjectStore) Touch(ctx context.Context, projectID uint) error {
	return s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("updated_at", time.Now().UTC()).Error
}

// -------- membership --------

func (s *ProjectStore) AddMember(ctx context.Context, projectID, accountID uint, role models.ProjectRole) (*models.ProjectMember, error) {
	var m models.ProjectMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ProjectMember{}).
			Where("project_id = ? AND account_id = ?", projectID, accountID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrMemberExists
		}
		m = models.ProjectMember{ProjectID: projectID, AccountID: accountID, Role: role}
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *ProjectStore) RemoveMember(ctx context.Context, projectID, accountID uint) error {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID == accountID {
		return ErrCannotRemoveOwner
	}
	res := s.db.WithContext(ctx).
		Where("project_id = ? AND account_id = ?", projectID, accountID).
		Delete(&models.ProjectMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberInfo is a membership row joined with the account behind it.
type MemberInfo struct {
	ID        uint               `json:"id"`
	AccountID uint               `json:"account_id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Role      models.ProjectRole `json:"role"`
	IsOwner   bool               `json:"is_owner"`
}

func (s *ProjectStore) Members(ctx context.Context, projectID uint) ([]MemberInfo, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		models.ProjectMember
		Name  string
		Email string
	}
	err = s.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Select("project_members.*, accounts.name, accounts.email").
		Joins("JOIN accounts ON accounts.id = project_members.account_id").
		Where("project_members.project_id = ?", projectID).
		Order("project_members.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]MemberInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, MemberInfo{
			ID:        r.ProjectMember.ID,
			AccountID: r.AccountID,
			Name:      r.Name,
			Email:     r.Email,
			Role:      r.Role,
			IsOwner:   r.AccountID == p.OwnerID,
		})
	}
	return out, nil
}

// -------- sharing state machine --------

// CreateShare opens a pending cross-tenant invitation. At most one
// non-rejected share may exist per (project, email); a rejected one does
// not block re-inviting.
func (s *ProjectStore) CreateShare(ctx context.Context, projectID, sharedByID uint, email string, role models.ProjectRole) (*models.ProjectShare, error) {
	var share models.ProjectShare
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ProjectShare{}).
			Where("project_id = ? AND email = ? AND status <> ?", projectID, email, models.ShareRejected).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateShare
		}
		share = models.ProjectShare{
			ProjectID:   projectID,
			SharedByID:  sharedByID,
			Email:       email,
			Role:        role,
			Status:      models.SharePending,
			ActiveEmail: &email,
		}
		return tx.Create(&share).Error
	})
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// SharedProject is a share row joined with its project and inviter, for the
// "shared with me" listing.
type SharedProject struct {
	Share   models.ProjectShare `json:"share"`
	Project models.Project      `json:"project"`
	ByName  string              `json:"shared_by_name"`
	ByEmail string              `json:"shared_by_email"`
}

func (s *ProjectStore) SharesForEmail(ctx context.Context, email string) ([]SharedProject, error) {
	var shares []models.ProjectShare
	err := s.db.WithContext(ctx).
		Where("email = ? AND status IN ?", email, []models.ShareStatus{models.SharePending, models.ShareAccepted}).
		Find(&shares).Error
	if err != nil {
		return nil, err
	}
	out := make([]SharedProject, 0, len(shares))
	for _, sh := range shares {
		var p models.Project
		if err := s.db.WithContext(ctx).First(&p, sh.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		var by models.Account
		if err := s.db.WithContext(ctx).First(&by, sh.SharedByID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		out = append(out, SharedProject{Share: sh, Project: p, ByName: by.Name, ByEmail: by.Email})
	}
	// most recently updated project first
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Project.UpdatedAt.After(out[j-1].Project.UpdatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// AcceptShare flips a pending share to accepted and materializes the
// membership. Idempotent: re-accepting neither duplicates the member row
// nor errors, and the share keeps its original acceptance bookkeeping.
func (s *ProjectStore) AcceptShare(ctx context.Context, projectID uint, acc *models.Account) (*models.ProjectShare, error) {
	var share models.ProjectShare
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("project_id = ? AND email = ? AND status <> ?", projectID, acc.Email, models.ShareRejected).
			First(&share).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShareNotFound
		}
		if err != nil {
			return err
		}

		// check-before-insert keeps double accepts from duplicating rows
		var count int64
		if err := tx.Model(&models.ProjectMember{}).
			Where("project_id = ? AND account_id = ?", projectID, acc.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			m := models.ProjectMember{ProjectID: projectID, AccountID: acc.ID, Role: share.Role}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}

		if share.Status == models.ShareAccepted {
			return nil // already accepted, nothing left to record
		}
		now := time.Now().UTC()
		share.Status = models.ShareAccepted
		share.AcceptedAt = &now
		share.AcceptedByID = &acc.ID
		return tx.Save(&share).Error
	})
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// RejectShare is terminal; the inviter may share again afterwards. Clearing
// active_email releases the unique slot for the next invitation.
func (s *ProjectStore) RejectShare(ctx context.Context, projectID uint, acc *models.Account) error {
	res := s.db.WithContext(ctx).Model(&models.ProjectShare{}).
		Where("project_id = ? AND email = ? AND status = ?", projectID, acc.Email, models.SharePending).
		Updates(map[string]any{
			"status":       models.ShareRejected,
			"active_email": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}
