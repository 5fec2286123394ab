package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("run not found")

type runModel struct {
	ID           uuid.UUID         `gorm:"primaryKey;column:id;type:uuid"`
	Trigger      string            `gorm:"column:trigger"`
	Status       string            `gorm:"column:status;index"`
	DryRun       bool              `gorm:"column:dry_run"`
	Summary      datatypes.JSONMap `gorm:"column:summary"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at;index"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (runModel) TableName() string {
	return "etl_runs"
}

// RunRepository keeps one row per run in the warehouse database.
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{})
}

func (r *RunRepository) Create(ctx context.Context, run *models.RunSummary) error {
	model, err := runToModel(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *RunRepository) Save(ctx context.Context, run *models.RunSummary) error {
	model, err := runToModel(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", model.ID).Updates(map[string]interface{}{
		"status":        model.Status,
		"summary":       model.Summary,
		"error_message": model.ErrorMessage,
		"started_at":    model.StartedAt,
		"completed_at":  model.CompletedAt,
	}).Error
}

func (r *RunRepository) Get(ctx context.Context, id string) (*models.RunSummary, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRunNotFound
	}
	var model runModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return modelToRun(&model)
}

func (r *RunRepository) Latest(ctx context.Context) (*models.RunSummary, error) {
	var model runModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return modelToRun(&model)
}

func runToModel(run *models.RunSummary) (*runModel, error) {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return nil, err
	}
	summary, err := summaryData(run)
	if err != nil {
		return nil, err
	}
	return &runModel{
		ID:           id,
		Trigger:      run.Trigger,
		Status:       run.Status,
		DryRun:       run.DryRun,
		Summary:      datatypes.JSONMap(summary),
		ErrorMessage: run.Error,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
	}, nil
}

func modelToRun(model *runModel) (*models.RunSummary, error) {
	run := &models.RunSummary{}
	if len(model.Summary) > 0 {
		raw, err := json.Marshal(model.Summary)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, run); err != nil {
			return nil, err
		}
	}
	// columns are authoritative over the summary document
	run.ID = model.ID.String()
	run.Trigger = model.Trigger
	run.Status = model.Status
	run.DryRun = model.DryRun
	run.Error = model.ErrorMessage
	run.CreatedAt = model.CreatedAt
	run.StartedAt = model.StartedAt
	run.CompletedAt = model.CompletedAt
	return run, nil
}

func summaryData(run *models.RunSummary) (map[string]interface{}, error) {
	raw, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
