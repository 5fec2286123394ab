package extraction

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormSource reads tables straight from the source postgres database.
type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) FetchTable(ctx context.Context, name string) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := s.db.WithContext(ctx).Table(name).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return rows, nil
}
