// Package db opens the clinic database through GORM, keeps its schema at the
// version the code expects and classifies driver errors.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqliteParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

// Options configures Open.
type Options struct {
	Driver   string
	URL      string
	MaxConns int
	Logger   zerolog.Logger
	// SlowThreshold is the duration above which a query is logged as slow.
	// Zero uses the default of 200ms.
	SlowThreshold time.Duration
}

// Open connects to the database described by opts and verifies the
// connection with a ping.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	maxConns := opts.MaxConns

	switch opts.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(sqliteDSN(opts.URL))
		if maxConns <= 0 {
			maxConns = 1
		}
	case DriverPostgres:
		dialector = postgres.Open(opts.URL)
		if maxConns <= 0 {
			maxConns = 10
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewLogger(opts.Logger, opts.SlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return gdb, nil
}

// Close releases the connection pool behind gdb.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// sqliteDSN turns a file path into a DSN with foreign keys enforced.
func sqliteDSN(url string) string {
	if url == "" {
		url = "clinic.db"
	}
	if strings.Contains(url, "_foreign_keys=") || strings.Contains(url, "_fk=") {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&" + sqliteParams
	}
	return url + "?" + sqliteParams
}
