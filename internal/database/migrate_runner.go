package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"bizdir/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one applied migration as recorded in migration_logs.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

const ensureMigrationLogsSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// MigrationStore applies and reverts migrations together with their
// migration_logs record.
type MigrationStore interface {
	Applied(ctx context.Context) ([]MigrationLog, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) Applied(ctx context.Context) ([]MigrationLog, error) {
	var logs []MigrationLog
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// Apply runs the up script and records it in one transaction, so a failed
// script leaves neither tables nor a log row behind.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply migration %s: %w", &m, err)
		}
		if err := tx.Exec("INSERT INTO migration_logs (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
			m.Version, m.Name, m.Checksum(), time.Now().UTC()).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", &m, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration applied",
		slog.String("migration", m.String()),
		slog.String("tables", strings.Join(m.Tables, ",")),
	)
	return nil
}

func (s *migrationStore) Revert(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert migration %s: %w", &m, err)
		}
		if err := tx.Exec("DELETE FROM migration_logs WHERE version = ?", m.Version).Error; err != nil {
			return fmt.Errorf("remove migration record %s: %w", &m, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back",
		slog.String("migration", m.String()),
		slog.String("tables", strings.Join(m.Tables, ",")),
	)
	return nil
}

// RunMigrations applies every embedded migration not yet recorded.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	all, err := Migrations()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(ensureMigrationLogsSQL).Error; err != nil {
		return fmt.Errorf("ensure migration_logs table: %w", err)
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	pending, err := pendingMigrations(applied, all)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		middleware.Logger.Debug("Schema up to date", slog.Int("applied", len(applied)))
		return nil
	}

	for _, m := range pending {
		middleware.Logger.Info("Applying migration", slog.String("migration", m.String()))
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// pendingMigrations compares the log with the embedded history. It refuses
// versions the code does not know, applied scripts whose contents changed,
// and holes where a later version was applied before an earlier one.
func pendingMigrations(applied []MigrationLog, registered []Migration) ([]Migration, error) {
	known := make(map[int]Migration, len(registered))
	for _, m := range registered {
		known[m.Version] = m
	}

	done := make(map[int]bool, len(applied))
	var unknown, drifted []string
	for _, log := range applied {
		done[log.Version] = true
		m, ok := known[log.Version]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", log.Version))
			continue
		}
		if log.Checksum != "" && log.Checksum != m.Checksum() {
			drifted = append(drifted, m.String())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf(
			"migration_logs contains unknown versions not present in code: %s (rebuild the development database or restore the missing migration files)",
			strings.Join(unknown, ", "),
		)
	}
	if len(drifted) > 0 {
		return nil, fmt.Errorf("applied migrations were edited after they ran: %s", strings.Join(drifted, ", "))
	}

	var pending []Migration
	for _, m := range registered {
		if !done[m.Version] {
			pending = append(pending, m)
			continue
		}
		if len(pending) > 0 {
			return nil, fmt.Errorf("migration %s is applied but earlier %s is not", m.String(), pending[0].String())
		}
	}
	return pending, nil
}

// RollbackMigration reverts version, which must be the newest applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m, err := MigrationByVersion(version)
	if err != nil {
		return err
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("migration %s has not been applied", m)
	}
	latest := applied[len(applied)-1].Version
	if latest != version {
		found := false
		for _, log := range applied {
			found = found || log.Version == version
		}
		if !found {
			return fmt.Errorf("migration %s has not been applied", m)
		}
		return fmt.Errorf("migration %s is not the newest applied (%06d); roll back newer migrations first", m, latest)
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", m.String()))
	return store.Revert(ctx, *m)
}
