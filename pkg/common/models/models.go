package models

import (
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // etl.trigger, etl.run.completed, etl.run.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventTypeTrigger      = "etl.trigger"
	EventTypeRunCompleted = "etl.run.completed"
	EventTypeRunFailed    = "etl.run.failed"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// TableLoadStats counts the outcome of upserting one batch into the warehouse.
type TableLoadStats struct {
	Table     string `json:"table"`
	Attempted int    `json:"attempted"`
	Inserted  int    `json:"inserted"`
	Conflicts int    `json:"conflicts"`
	Failed    int    `json:"failed"`
}

type RunSummary struct {
	ID            string           `json:"id"`
	Trigger       string           `json:"trigger"`
	Status        string           `json:"status"`
	DryRun        bool             `json:"dry_run"`
	ExtractedRows map[string]int   `json:"extracted_rows,omitempty"`
	MissingTables []string         `json:"missing_tables,omitempty"`
	Loaded        []TableLoadStats `json:"loaded,omitempty"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

func (s RunSummary) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

func (s RunSummary) TotalExtracted() int {
	total := 0
	for _, n := range s.ExtractedRows {
		total += n
	}
	return total
}

// Totals sums the load stats across every warehouse table.
func (s RunSummary) Totals() TableLoadStats {
	var total TableLoadStats
	for _, t := range s.Loaded {
		total.Attempted += t.Attempted
		total.Inserted += t.Inserted
		total.Conflicts += t.Conflicts
		total.Failed += t.Failed
	}
	return total
}
