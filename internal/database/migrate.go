package database

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm/schema"
)

// Migration is one numbered pair of SQL scripts under migrations/.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
	// Tables lists the tables the up script creates, in script order.
	Tables []string
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	migrationFile = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)
	createTable   = regexp.MustCompile(`(?i)CREATE TABLE(?: IF NOT EXISTS)?\s+"?(\w+)"?`)
	dropTable     = regexp.MustCompile(`(?i)DROP TABLE(?: IF EXISTS)?\s+"?(\w+)"?`)
)

var (
	catalogOnce sync.Once
	catalog     []Migration
	catalogErr  error
)

// Migrations returns the embedded schema history, oldest first. The history is
// loaded once and must create a table for every persistent model.
func Migrations() ([]Migration, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = LoadMigrations(migrationFS, "migrations")
		if catalogErr == nil {
			catalogErr = checkModelCoverage(catalog, PersistentModels())
		}
	})
	return catalog, catalogErr
}

// MigrationByVersion looks up one embedded migration.
func MigrationByVersion(version int) (*Migration, error) {
	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Version == version {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("migration version %d not found", version)
}

// LoadMigrations reads NNNNNN_name.up.sql / .down.sql pairs from dir. Versions
// must run 1..n without gaps, and each down script must drop every table its
// up script creates.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("migration file %s is not named NNNNNN_name.up.sql or NNNNNN_name.down.sql", entry.Name())
		}
		version, _ := strconv.Atoi(match[1])
		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		} else if m.Name != match[2] {
			return nil, fmt.Errorf("migration version %06d is claimed by both %q and %q", version, m.Name, match[2])
		}
		if match[3] == "up" {
			m.UpScript = string(body)
		} else {
			m.DownScript = string(body)
		}
	}

	versions := make([]int, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	out := make([]Migration, 0, len(versions))
	for i, v := range versions {
		m := byVersion[v]
		if v != i+1 {
			return nil, fmt.Errorf("migration %s breaks the sequence: expected version %06d", m, i+1)
		}
		if strings.TrimSpace(m.UpScript) == "" {
			return nil, fmt.Errorf("migration %s has no up script", m)
		}
		if strings.TrimSpace(m.DownScript) == "" {
			return nil, fmt.Errorf("migration %s has no down script", m)
		}
		m.Tables = tableNames(createTable, m.UpScript)
		dropped := make(map[string]bool)
		for _, t := range tableNames(dropTable, m.DownScript) {
			dropped[t] = true
		}
		for _, t := range m.Tables {
			if !dropped[t] {
				return nil, fmt.Errorf("migration %s creates %s but its down script does not drop it", m, t)
			}
		}
		out = append(out, *m)
	}
	return out, nil
}

func tableNames(re *regexp.Regexp, sql string) []string {
	var names []string
	for _, match := range re.FindAllStringSubmatch(sql, -1) {
		names = append(names, strings.ToLower(match[1]))
	}
	return names
}

// checkModelCoverage fails when a persistent model has no creating migration
// or when two migrations create the same table.
func checkModelCoverage(migs []Migration, persistent []interface{}) error {
	createdBy := make(map[string]int)
	for _, m := range migs {
		for _, t := range m.Tables {
			if prev, dup := createdBy[t]; dup {
				return fmt.Errorf("table %s is created by both %06d and %06d", t, prev, m.Version)
			}
			createdBy[t] = m.Version
		}
	}

	var (
		missing []string
		parsed  sync.Map
	)
	for _, model := range persistent {
		s, err := schema.Parse(model, &parsed, schema.NamingStrategy{})
		if err != nil {
			return fmt.Errorf("parse model %T: %w", model, err)
		}
		if _, ok := createdBy[s.Table]; !ok {
			missing = append(missing, s.Table)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("no migration creates %s", strings.Join(missing, ", "))
	}
	return nil
}

// Checksum fingerprints the up script so edits to an applied migration are caught.
func (m *Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpScript))
	return hex.EncodeToString(sum[:])
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}
