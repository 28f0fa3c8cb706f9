package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// UniqueViolation reports whether err is a PostgreSQL unique_violation and,
// if so, the name of the violated constraint.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// NotFound reports whether a lookup found no row. A key that PostgreSQL
// cannot parse as the column type (an id that is not a UUID) cannot match
// any row either.
func NotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}
