package repo

import (
	"context"

	"gorm.io/gorm"

	"ampflux/internal/logs"
	"ampflux/internal/models"
)

type AuditStore struct{ db *gorm.DB }

func NewAuditStore(db *gorm.DB) *AuditStore { return &AuditStore{db: db} }

// Append writes one action record. Audit failures are logged and swallowed:
// the action itself must not fail because its trail could not be written.
func (s *AuditStore) Append(ctx context.Context, accountID, projectID uint, action string) {
	entry := models.AuditLog{AccountID: accountID, ProjectID: projectID, Action: action}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logs.Logger.Errorf("audit append failed: action=%s project=%d account=%d err=%v",
			action, projectID, accountID, err)
	}
}

func (s *AuditStore) ListForProject(ctx context.Context, projectID uint) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
