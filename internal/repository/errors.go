package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/pkg/validator"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("repository: record not found")

// UniqueViolationError reports a write rejected by a unique index.
type UniqueViolationError struct {
	Field string
	Err   error
}

func (e *UniqueViolationError) Error() string {
	if e.Field == "" {
		return "repository: duplicate value"
	}
	return "repository: duplicate value for " + e.Field
}

func (e *UniqueViolationError) Unwrap() error { return e.Err }

// FieldValidationError reports a record that failed model validation.
type FieldValidationError struct {
	Failures validator.ValidationErrors
}

func (e *FieldValidationError) Error() string {
	return "repository: invalid record: " + e.Failures.Error()
}

var (
	sqliteUnique = regexp.MustCompile(`UNIQUE constraint failed: \w+\.(\w+)`)
	pgKeyDetail  = regexp.MustCompile(`Key \((?:lower\()?"?(\w+)"?\)?\)=`)
	mysqlKey     = regexp.MustCompile(`for key '([^']+)'`)
)

// classify maps driver errors onto the repository error types.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field := indexField(table, pgErr.ConstraintName)
		if m := pgKeyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			field = m[1]
		}
		return &UniqueViolationError{Field: field, Err: err}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		field := ""
		if m := mysqlKey.FindStringSubmatch(myErr.Message); m != nil {
			key := m[1]
			if idx := strings.LastIndexByte(key, '.'); idx != -1 {
				key = key[idx+1:]
			}
			field = indexField(table, key)
		}
		return &UniqueViolationError{Field: field, Err: err}
	}

	if m := sqliteUnique.FindStringSubmatch(err.Error()); m != nil {
		return &UniqueViolationError{Field: m[1], Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &UniqueViolationError{Err: err}
	}

	return fmt.Errorf("repository: %s: %w", table, err)
}

// indexField strips gorm's "idx_<table>_" naming from an index name.
func indexField(table, index string) string {
	return strings.TrimPrefix(index, "idx_"+table+"_")
}
