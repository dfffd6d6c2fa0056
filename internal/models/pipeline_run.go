package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCanceled  = "canceled"
)

type PipelineRun struct {
	RunID        string         `gorm:"primaryKey;type:varchar(36);comment:run id" json:"run_id"`
	StartedAt    time.Time      `gorm:"index;not null;comment:run start" json:"started_at"`
	FinishedAt   *time.Time     `gorm:"comment:run end" json:"finished_at"`
	Status       string         `gorm:"type:varchar(16);not null;comment:running completed or canceled" json:"status"`
	Entities     int            `gorm:"not null;default:0;comment:entities processed" json:"entities"`
	SuccessCount int            `gorm:"not null;default:0" json:"success_count"`
	PartialCount int            `gorm:"not null;default:0" json:"partial_count"`
	FailedCount  int            `gorm:"not null;default:0" json:"failed_count"`
	SummaryJSON  datatypes.JSON `gorm:"comment:full run summary" json:"summary"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
