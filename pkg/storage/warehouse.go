package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// WarehouseWriter inserts records into the warehouse database through gorm.
type WarehouseWriter struct {
	db *gorm.DB
}

func NewWarehouseWriter(db *gorm.DB) *WarehouseWriter {
	return &WarehouseWriter{db: db}
}

func (w *WarehouseWriter) Upsert(ctx context.Context, table string, record map[string]interface{}) error {
	err := w.db.WithContext(ctx).Table(table).Create(record).Error
	return classify(table, err)
}

func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &UpsertError{Table: table, Code: uniqueViolation, Message: err.Error()}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &UpsertError{Table: table, Code: pgErr.Code, Message: pgErr.Message}
	}
	return &UpsertError{Table: table, Message: err.Error()}
}
