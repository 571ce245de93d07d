package repo

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampflux/internal/models"
)

func TestRegisterDefaultCompanyName(t *testing.T) {
	db := newStoreDB(t)
	store := NewAccountStore(db)

	acc, err := store.Register(context.Background(), RegisterInput{
		Name: "Alice", Email: "alice@a.test", Password: "hash",
	})
	require.NoError(t, err)
	require.NotNil(t, acc.Company)
	assert.Equal(t, "Alice's Company", acc.Company.Name)
	assert.Equal(t, models.RoleCompanyAdmin, acc.Role)

	lics, err := store.CompanyLicenses(context.Background(), acc.CompanyID)
	require.NoError(t, err)
	require.Len(t, lics, 1)
	assert.Equal(t, "trial", lics[0].Plan)
	assert.True(t, lics[0].EndDate.After(lics[0].StartDate))
}

func TestRegisterCompanyNameCollision(t *testing.T) {
	db := newStoreDB(t)
	store := NewAccountStore(db)

	first, err := store.Register(context.Background(), RegisterInput{
		Name: "Alice", Email: "alice@a.test", Password: "hash", CompanyName: "Volt Works",
	})
	require.NoError(t, err)
	assert.Equal(t, "Volt Works", first.Company.Name)

	second, err := store.Register(context.Background(), RegisterInput{
		Name: "Bob", Email: "bob@b.test", Password: "hash", CompanyName: "Volt Works",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "Volt Works", second.Company.Name)
	assert.True(t, strings.HasPrefix(second.Company.Name, "Volt Works ("))
}

func TestRegisterDuplicateEmailLeavesNoTenant(t *testing.T) {
	db := newStoreDB(t)
	store := NewAccountStore(db)

	_, err := store.Register(context.Background(), RegisterInput{
		Name: "Alice", Email: "alice@a.test", Password: "hash",
	})
	require.NoError(t, err)

	var before int64
	require.NoError(t, db.Model(&models.Company{}).Count(&before).Error)

	_, err = store.Register(context.Background(), RegisterInput{
		Name: "Impostor", Email: "alice@a.test", Password: "hash",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	var after int64
	require.NoError(t, db.Model(&models.Company{}).Count(&after).Error)
	assert.Equal(t, before, after)
}
