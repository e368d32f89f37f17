package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres (pgx or lib/pq) or sqlite. When constraintName is provided the
// violated constraint must match it as well.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && constraintName == "" {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && matchesConstraint(pgErr.ConstraintName, constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation && matchesConstraint(pqErr.Constraint, constraintName)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func matchesConstraint(actual, want string) bool {
	return want == "" || actual == want
}
