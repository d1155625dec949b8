// Package bootstrap wires the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bizdir/internal/cache"
	"bizdir/internal/config"
	"bizdir/internal/database"
	"bizdir/internal/models"
	"bizdir/internal/repository"
	"bizdir/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo data.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	users := repository.NewUserRepository(db)
	if err := EnsureDevRootAdmin(ctx, cfg, users); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo && cfg.Env == "development" {
		if err := seedIfEmpty(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin makes sure the configured development admin exists. It
// is a no-op outside development or when DEV_BOOTSTRAP_ROOT is off.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || users == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	name := strings.TrimSpace(cfg.DevRootName)
	if name == "" {
		name = "Directory Root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@bizdir.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	root, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if root == nil {
		root = &models.User{
			Name:     name,
			Email:    email,
			Password: string(hashedPassword),
			Role:     models.RoleAdmin,
		}
		if err := users.Create(ctx, root); err != nil {
			return err
		}
		slog.InfoContext(ctx, "development root admin created", "user_id", root.ID, "email", email)
		return nil
	}

	changed := root.Role != models.RoleAdmin
	root.Role = models.RoleAdmin
	if cfg.DevRootForceCredentials {
		changed = changed || root.Name != name
		root.Name = name
		if err := users.SetPassword(ctx, root.ID, string(hashedPassword)); err != nil {
			return err
		}
	}
	if changed {
		if err := users.Update(ctx, root); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "development root admin bootstrap ensured", "user_id", root.ID, "email", email)
	return nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Company{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	opts := seed.DefaultOptions()
	opts.SkipBcrypt = true
	_, err := seed.NewSeeder(db, opts).Run(ctx)
	return err
}
