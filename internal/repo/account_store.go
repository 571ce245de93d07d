package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ampflux/internal/models"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
)

type AccountStore struct{ db *gorm.DB }

func NewAccountStore(db *gorm.DB) *AccountStore { return &AccountStore{db: db} }

type RegisterInput struct {
	Name        string
	Email       string
	Password    string // already bcrypt-hashed by the caller
	CompanyName string // empty -> "<name>'s Company"
}

// Register creates the account and its company in one transaction. A
// duplicate email aborts before anything is written, so a failed
// registration leaves no company behind. The registrant becomes
// company_admin of the fresh tenant.
func (s *AccountStore) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	var acc *models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		name := strings.TrimSpace(in.CompanyName)
		if name == "" {
			name = fmt.Sprintf("%s's Company", in.Name)
		}
		// Company names are unique; collisions get a random suffix.
		var taken int64
		if err := tx.Model(&models.Company{}).Where("name = ?", name).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			name = fmt.Sprintf("%s (%s)", name, uuid.NewString()[:8])
		}

		company := models.Company{Name: name}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}

		// Fresh tenants start on a 30-day trial.
		now := time.Now().UTC()
		lic := models.License{
			CompanyID: company.ID,
			Plan:      "trial",
			StartDate: now,
			EndDate:   now.AddDate(0, 0, 30),
			Status:    models.LicenseTrial,
		}
		if err := tx.Create(&lic).Error; err != nil {
			return err
		}

		a := models.Account{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: in.Password,
			Role:         models.RoleCompanyAdmin,
			CompanyID:    company.ID,
		}
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		a.Company = &company
		acc = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount satisfies auth.AccountSource.
func (s *AccountStore) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) GetWithCompany(ctx context.Context, id uint) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Preload("Company").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) ListCompanyAccounts(ctx context.Context, companyID uint) ([]models.Account, error) {
	var out []models.Account
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("id").Find(&out).Error
	return out, err
}

func (s *AccountStore) GetCompany(ctx context.Context, id uint) (*models.Company, error) {
	var c models.Company
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *AccountStore) CompanyLicenses(ctx context.Context, companyID uint) ([]models.License, error) {
	var out []models.License
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("start_date desc").Find(&out).Error
	return out, err
}
