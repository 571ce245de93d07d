package repo

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ampflux/internal/models"
)

func migrate(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.AutoMigrate(
		&models.Company{}, &models.License{}, &models.Account{},
		&models.Project{}, &models.ProjectMember{}, &models.ProjectShare{},
		&models.CircuitVersion{}, &models.Simulation{}, &models.AuditLog{},
	))
}

func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	migrate(t, db)
	return db
}

// newFileDB backs the store with an on-disk database; used where tests
// exercise concurrent writers, which the shared-cache in-memory setup does
// not tolerate.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)",
		filepath.Join(t.TempDir(), "store.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	migrate(t, db)
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, name, email, companyName string, role models.AccountRole) *models.Account {
	t.Helper()
	co := models.Company{Name: companyName}
	require.NoError(t, db.Create(&co).Error)
	acc := models.Account{Name: name, Email: email, PasswordHash: "x", Role: role, CompanyID: co.ID}
	require.NoError(t, db.Create(&acc).Error)
	return &acc
}
