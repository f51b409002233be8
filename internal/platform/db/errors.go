package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrConstraint marks a write rejected because it referenced a row that does
// not exist.
var ErrConstraint = errors.New("foreign key constraint violated")

const pgForeignKeyViolation = "23503"

// IsForeignKeyViolation reports whether err is a foreign-key violation from
// either supported driver, translated or not.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConstraint) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// Classify wraps err with the operation name. Foreign-key violations also
// wrap ErrConstraint so callers can test for them with errors.Is. GORM's
// translated sentinel carries no driver detail and is replaced outright.
func Classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConstraint):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", op, ErrConstraint)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
