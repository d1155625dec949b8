//go:build integration

package seed

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"bizdir/internal/config"
	"bizdir/internal/database"
	"bizdir/internal/models"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbname := strings.TrimPrefix(u.Path, "/")
	cfg := &config.Config{
		DBHost:       host,
		DBPort:       port,
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       dbname,
		DBSSLMode:    "disable",
		Env:          "test",
		DBSchemaMode: "auto",
	}
	return cfg, nil
}

func TestIntegration_SeedPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	if err != nil {
		t.Fatalf("failed parse dsn: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{})
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}

	sum, err := NewSeeder(db, Options{NumUsers: 10, SkipBcrypt: true, ShouldClean: true, ApplyRatio: 0.5, ApproveRatio: 0.5, RejectRatio: 0.25}).
		Run(context.Background())
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var logs int64
	if err := db.Model(&models.ApprovalLog{}).Count(&logs).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if logs != int64(sum.Approved+sum.Rejected) {
		t.Fatalf("expected %d ledger rows, got %d", sum.Approved+sum.Rejected, logs)
	}
}
