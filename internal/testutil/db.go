// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"bizdir/internal/database"
	"bizdir/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema.
// A single connection keeps every query on the same in-memory instance.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with the given role.
func CreateUser(t testing.TB, db *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Name:  name,
		Email: name + "@example.test",
		Role:  role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePendingApplicant inserts a general user who applied at appliedAt.
func CreatePendingApplicant(t testing.TB, db *gorm.DB, name string, appliedAt time.Time) *models.User {
	t.Helper()
	status := models.ApprovalStatusPending
	u := &models.User{
		Name:                 name,
		Email:                name + "@example.test",
		Role:                 models.RoleUser,
		SalespersonStatus:    &status,
		SalespersonAppliedAt: &appliedAt,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateCompany inserts a pending company owned by ownerID.
func CreateCompany(t testing.TB, db *gorm.DB, ownerID uint, name string, createdAt time.Time) *models.Company {
	t.Helper()
	c := &models.Company{
		Name:      name,
		TaxID:     "TAX-" + name,
		CreatedBy: ownerID,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreateCertification inserts a pending certification owned by userID.
func CreateCertification(t testing.TB, db *gorm.DB, userID uint, name string, createdAt time.Time) *models.Certification {
	t.Helper()
	c := &models.Certification{
		UserID:    userID,
		Name:      name,
		Issuer:    "Board of Trade",
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
