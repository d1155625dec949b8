package bootstrap

import (
	"context"
	"testing"

	"bizdir/internal/config"
	"bizdir/internal/models"
	"bizdir/internal/repository"
	"bizdir/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootEmail:     "Root@Example.test",
		DevRootPassword:  "Root-Password-1",
	}
}

func TestEnsureDevRootAdmin_CreatesAdmin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)

	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), users))

	root, err := users.GetByEmail(context.Background(), "root@example.test")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, models.RoleAdmin, root.Role)
	assert.Equal(t, "Directory Root", root.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("Root-Password-1")))
}

func TestEnsureDevRootAdmin_PromotesExisting(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	existing := &models.User{Name: "Old Name", Email: "root@example.test", Password: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(existing).Error)

	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), users))

	var got models.User
	require.NoError(t, db.First(&got, existing.ID).Error)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "Old Name", got.Name)
	assert.Equal(t, "x", got.Password, "credentials untouched without force")

	cfg := devConfig()
	cfg.DevRootForceCredentials = true
	cfg.DevRootName = "New Name"
	require.NoError(t, EnsureDevRootAdmin(context.Background(), cfg, users))

	require.NoError(t, db.First(&got, existing.ID).Error)
	assert.Equal(t, "New Name", got.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.Password), []byte("Root-Password-1")))
}

func TestEnsureDevRootAdmin_Skips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"production", func(c *config.Config) { c.Env = "production" }},
		{"flag off", func(c *config.Config) { c.DevBootstrapRoot = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewSQLiteDB(t)
			cfg := devConfig()
			tt.mutate(cfg)

			require.NoError(t, EnsureDevRootAdmin(context.Background(), cfg, repository.NewUserRepository(db)))

			var count int64
			require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestEnsureDevRootAdmin_RequiresPassword(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	cfg := devConfig()
	cfg.DevRootPassword = ""

	err := EnsureDevRootAdmin(context.Background(), cfg, repository.NewUserRepository(db))
	assert.ErrorContains(t, err, "DEV_ROOT_PASSWORD")
}

func TestSeedIfEmpty_OnlyOnce(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	require.NoError(t, seedIfEmpty(ctx, db))
	var first int64
	require.NoError(t, db.Model(&models.User{}).Count(&first).Error)
	require.NotZero(t, first)

	var companies int64
	require.NoError(t, db.Model(&models.Company{}).Count(&companies).Error)
	if companies == 0 {
		t.Skip("random draw produced no companies; second run would reseed")
	}

	require.NoError(t, seedIfEmpty(ctx, db))
	var second int64
	require.NoError(t, db.Model(&models.User{}).Count(&second).Error)
	assert.Equal(t, first, second)
}
