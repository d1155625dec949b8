package database

import (
	"context"
	"fmt"
	"log/slog"

	"bizdir/internal/config"
	"bizdir/internal/middleware"

	"gorm.io/gorm"
)

// schemaPlan is what DB_SCHEMA_MODE resolves to for one environment.
type schemaPlan struct {
	Mode    string
	SQL     bool
	Auto    bool
	Destroy bool
}

// SchemaStatus describes what ApplySchema would do against db.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// MissingTables are persistent tables the pending migrations will create.
	MissingTables []string
}

// planSchema maps the mode onto the environment. Staging counts as
// production for the AutoMigrate guard.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{Mode: cfg.DBSchemaMode}
	if plan.Mode == "" {
		plan.Mode = config.SchemaModeHybrid
	}
	guarded := cfg.IsProduction() || cfg.Env == "staging" || cfg.Env == "stage"

	switch plan.Mode {
	case config.SchemaModeSQL:
		plan.SQL = true
	case config.SchemaModeAuto:
		if guarded && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.Auto = true
		plan.Destroy = guarded
	case config.SchemaModeHybrid:
		plan.SQL = true
		plan.Auto = !guarded
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the directory and ledger tables up to date.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.Auto {
		return nil
	}

	if plan.Destroy {
		middleware.Logger.Warn("AutoMigrate forced outside development; review schema diffs before deploying",
			slog.String("env", cfg.Env))
	}
	middleware.Logger.Info("Running GORM AutoMigrate",
		slog.String("mode", plan.Mode),
		slog.Int("models", len(PersistentModels())),
	)
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports applied and pending migrations without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
	}
	if !plan.SQL {
		return status, nil
	}

	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	applied, err := NewMigrationStore(db).Applied(ctx)
	if err != nil {
		return nil, err
	}
	for _, log := range applied {
		status.AppliedVersions = append(status.AppliedVersions, log.Version)
	}
	status.PendingMigrations, err = pendingMigrations(applied, all)
	if err != nil {
		return nil, err
	}
	for _, m := range status.PendingMigrations {
		status.MissingTables = append(status.MissingTables, m.Tables...)
	}
	return status, nil
}
