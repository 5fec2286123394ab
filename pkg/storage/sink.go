package storage

import (
	"context"
	"errors"
	"fmt"
)

// uniqueViolation is the postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var ErrConflict = errors.New("record already exists")

// Sink inserts one warehouse record. A duplicate key is reported as
// ErrConflict so the loader can count it instead of failing.
type Sink interface {
	Upsert(ctx context.Context, table string, record map[string]interface{}) error
}

// UpsertError carries the store's own error code and message.
type UpsertError struct {
	Table   string
	Code    string
	Message string
}

func (e *UpsertError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("upsert %s: %s", e.Table, e.Message)
	}
	return fmt.Sprintf("upsert %s: %s (%s)", e.Table, e.Message, e.Code)
}

func (e *UpsertError) Unwrap() error {
	if e.Code == uniqueViolation {
		return ErrConflict
	}
	return nil
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
