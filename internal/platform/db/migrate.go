package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SchemaVersion is the newest schema version this build knows how to use.
const SchemaVersion = 1

// ErrSchemaMismatch is returned by Check when the database schema is not one
// this build can use.
var ErrSchemaMismatch = errors.New("database schema does not match")

// Tables lists the clinic tables in drop order (dependents first).
var Tables = []string{"treatments", "appointments", "doctors", "patients"}

//go:embed migrations/*/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded migrations for a dialect ("sqlite" or
// "postgres").
func Migrations(dialect string) (fs.FS, error) {
	sub, err := fs.Sub(migrationFiles, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", dialect, err)
	}
	return sub, nil
}

// Migration represents a single database migration loaded from a SQL file.
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt time.Time
}

// MigrationStatus represents the status of a migration (applied or pending).
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator reads SQL migration files and applies them to the database.
type Migrator struct {
	db     *gorm.DB
	fsys   fs.FS
	logger zerolog.Logger
}

// NewMigrator creates a Migrator that reads migration files from fsys.
func NewMigrator(db *gorm.DB, fsys fs.FS, logger zerolog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		fsys:   fsys,
		logger: logger,
	}
}

// NewDialectMigrator creates a Migrator over the embedded migrations for the
// dialect of db.
func NewDialectMigrator(db *gorm.DB, logger zerolog.Logger) (*Migrator, error) {
	fsys, err := Migrations(db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	return NewMigrator(db, fsys, logger), nil
}

// EnsureMigrationsTable creates the _migrations tracking table if it does not
// already exist.
func (m *Migrator) EnsureMigrationsTable(ctx context.Context) error {
	err := m.db.WithContext(ctx).Exec(`CREATE TABLE IF NOT EXISTS _migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`).Error
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}
	return nil
}

// LoadMigrations reads all .sql files, parses the version number from the
// filename prefix (e.g., "001_clinic.sql" -> version 1), and returns them
// sorted by version. Files that do not start with a numeric prefix are
// skipped.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(m.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

type appliedRow struct {
	Version   int
	AppliedAt time.Time
}

func (m *Migrator) applied(ctx context.Context) ([]appliedRow, error) {
	var rows []appliedRow
	err := m.db.WithContext(ctx).
		Raw(`SELECT version, applied_at FROM _migrations ORDER BY version`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	return rows, nil
}

// AppliedVersions returns the set of migration versions already applied.
func (m *Migrator) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(rows))
	for _, r := range rows {
		applied[r.Version] = true
	}
	return applied, nil
}

// Up applies all pending migrations in version order. Each migration runs in
// its own transaction. Returns the count of applied migrations.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return 0, err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.applyMigration(ctx, mig); err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		m.logger.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("migration applied")
		count++
	}

	return count, nil
}

// applyMigration runs a single migration in a transaction and records it in
// the _migrations table.
func (m *Migrator) applyMigration(ctx context.Context, mig Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range splitStatements(mig.SQL) {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("execute SQL: %w", err)
			}
		}
		if err := tx.Exec(
			"INSERT INTO _migrations (version, name) VALUES (?, ?)",
			mig.Version, mig.Name,
		).Error; err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		return nil
	})
}

// Status returns the status of all known migrations, applied and pending.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	rows, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	appliedMap := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		appliedMap[r.Version] = r.AppliedAt
	}

	var statuses []MigrationStatus
	for _, mig := range migrations {
		status := MigrationStatus{
			Version: mig.Version,
			Name:    mig.Name,
		}
		if at, ok := appliedMap[mig.Version]; ok {
			status.Applied = true
			appliedAt := at
			status.AppliedAt = &appliedAt
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// Check compares the database against the migrations this build carries. It
// returns ErrSchemaMismatch when the database records a version newer than
// SchemaVersion, when a migration is recorded but its tables are gone, or
// when clinic tables exist that no recorded migration created.
func (m *Migrator) Check(ctx context.Context) error {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return err
	}
	rows, err := m.applied(ctx)
	if err != nil {
		return err
	}

	present := 0
	for _, table := range Tables {
		if m.db.WithContext(ctx).Migrator().HasTable(table) {
			present++
		}
	}

	switch {
	case len(rows) > 0 && rows[len(rows)-1].Version > SchemaVersion:
		return fmt.Errorf("%w: database is at version %d, expected at most %d",
			ErrSchemaMismatch, rows[len(rows)-1].Version, SchemaVersion)
	case len(rows) > 0 && present != len(Tables):
		return fmt.Errorf("%w: %d of %d tables present", ErrSchemaMismatch, present, len(Tables))
	case len(rows) == 0 && present > 0:
		return fmt.Errorf("%w: untracked tables present", ErrSchemaMismatch)
	}
	return nil
}

// Reset drops every clinic table and the migration record, then re-applies
// all migrations. All stored data is lost.
func (m *Migrator) Reset(ctx context.Context) error {
	drops := append(append([]string(nil), Tables...), "_migrations")
	for _, table := range drops {
		if err := m.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	m.logger.Warn().Strs("tables", drops).Msg("database reset")

	if _, err := m.Up(ctx); err != nil {
		return err
	}
	return nil
}

// Prepare brings the database to SchemaVersion. A mismatched schema is
// destroyed and recreated when resetOnMismatch is set; otherwise the
// mismatch is returned.
func (m *Migrator) Prepare(ctx context.Context, resetOnMismatch bool) error {
	if err := m.Check(ctx); err != nil {
		if !errors.Is(err, ErrSchemaMismatch) || !resetOnMismatch {
			return err
		}
		m.logger.Warn().Err(err).Msg("schema mismatch, resetting database")
		return m.Reset(ctx)
	}

	if _, err := m.Up(ctx); err != nil {
		return err
	}
	return nil
}

// splitStatements splits a migration script on semicolons, dropping empty
// statements and comment-only lines.
func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
