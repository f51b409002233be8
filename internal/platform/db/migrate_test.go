package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "clinic.db"),
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { Close(gdb) })
	return gdb
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_core.sql":     {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"002_clinical.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
		"003_extra.sql":    {Data: []byte("CREATE TABLE c (id INTEGER PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, fsys, zerolog.Nop()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected name 001_core.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE a (id INTEGER PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrderAndInvalidNames(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql":  {Data: []byte("SELECT 10;")},
		"002_second.sql":  {Data: []byte("SELECT 2;")},
		"001_first.sql":   {Data: []byte("SELECT 1;")},
		"readme.sql":      {Data: []byte("-- no version prefix")},
		"notes.txt":       {Data: []byte("not a sql file")},
		"abc_invalid.sql": {Data: []byte("-- non-numeric prefix")},
	}

	migrations, err := NewMigrator(nil, fsys, zerolog.Nop()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expected := []int{1, 2, 10}
	if len(migrations) != len(expected) {
		t.Fatalf("expected %d migrations, got %d", len(expected), len(migrations))
	}
	for i, v := range expected {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{DriverSQLite, DriverPostgres} {
		fsys, err := Migrations(dialect)
		if err != nil {
			t.Fatalf("Migrations(%s) error: %v", dialect, err)
		}
		migrations, err := NewMigrator(nil, fsys, zerolog.Nop()).LoadMigrations()
		if err != nil {
			t.Fatalf("LoadMigrations(%s) error: %v", dialect, err)
		}
		if len(migrations) == 0 {
			t.Fatalf("expected embedded migrations for %s", dialect)
		}
		if last := migrations[len(migrations)-1].Version; last != SchemaVersion {
			t.Errorf("%s: newest migration is %d, SchemaVersion is %d", dialect, last, SchemaVersion)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (id INTEGER);

CREATE INDEX idx_a ON a(id);
;`
	stmts := splitStatements(script)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id INTEGER)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
	if stmts[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Errorf("unexpected second statement %q", stmts[1])
	}
}

func TestMigrator_UpAndStatus(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()

	m, err := NewDialectMigrator(gdb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDialectMigrator() error: %v", err)
	}

	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	if n != SchemaVersion {
		t.Errorf("expected %d migrations applied, got %d", SchemaVersion, n)
	}

	n, err = m.Up(ctx)
	if err != nil {
		t.Fatalf("second Up() error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected second Up to apply nothing, got %d", n)
	}

	for _, table := range Tables {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist", table)
		}
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Applied || statuses[0].AppliedAt == nil {
		t.Fatalf("expected one applied migration, got %+v", statuses)
	}
}

func TestMigrator_StatusPending(t *testing.T) {
	gdb := openTestDB(t)
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"002_b.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
	}
	m := NewMigrator(gdb, fsys, zerolog.Nop())

	statuses, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if s.Applied || s.AppliedAt != nil {
			t.Errorf("expected %s to be pending", s.Name)
		}
	}
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	gdb := openTestDB(t)
	fsys := fstest.MapFS{
		"001_bad.sql": {Data: []byte("CREATE TABLE ok (id INTEGER PRIMARY KEY); THIS IS NOT SQL;")},
	}
	m := NewMigrator(gdb, fsys, zerolog.Nop())

	if _, err := m.Up(context.Background()); err == nil {
		t.Fatal("expected error for invalid migration")
	}
	applied, err := m.AppliedVersions(context.Background())
	if err != nil {
		t.Fatalf("AppliedVersions() error: %v", err)
	}
	if applied[1] {
		t.Error("failed migration should not be recorded")
	}
	if gdb.Migrator().HasTable("ok") {
		t.Error("failed migration should be rolled back")
	}
}

func TestMigrator_CheckDetectsNewerVersion(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	m, _ := NewDialectMigrator(gdb, zerolog.Nop())

	if err := m.Prepare(ctx, false); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if err := m.Check(ctx); err != nil {
		t.Fatalf("expected matching schema, got %v", err)
	}

	if err := gdb.Exec("INSERT INTO _migrations (version, name) VALUES (?, ?)", SchemaVersion+1, "999_future.sql").Error; err != nil {
		t.Fatalf("insert future version: %v", err)
	}

	err := m.Check(ctx)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}

	if err := m.Prepare(ctx, false); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected Prepare without reset to fail, got %v", err)
	}
}

func TestMigrator_PrepareResetsOnMismatch(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()

	if err := gdb.Exec("CREATE TABLE patients (id INTEGER PRIMARY KEY, legacy TEXT)").Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if err := gdb.Exec("INSERT INTO patients (legacy) VALUES ('old')").Error; err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	m, _ := NewDialectMigrator(gdb, zerolog.Nop())
	if err := m.Check(ctx); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected untracked table to be a mismatch, got %v", err)
	}

	if err := m.Prepare(ctx, true); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if err := m.Check(ctx); err != nil {
		t.Fatalf("expected matching schema after reset, got %v", err)
	}

	var count int64
	if err := gdb.Table("patients").Count(&count).Error; err != nil {
		t.Fatalf("count patients: %v", err)
	}
	if count != 0 {
		t.Errorf("expected reset to drop old rows, got %d", count)
	}
	if !gdb.Migrator().HasColumn("patients", "date_of_birth") {
		t.Error("expected recreated patients table")
	}
}

func TestMigrator_CheckDetectsMissingTables(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	m, _ := NewDialectMigrator(gdb, zerolog.Nop())

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	if err := gdb.Exec("DROP TABLE treatments").Error; err != nil {
		t.Fatalf("drop treatments: %v", err)
	}
	if err := m.Check(ctx); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
