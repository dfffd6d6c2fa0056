package repository

import (
	"context"

	"github.com/raghuneu/finsage/internal/models"
)

// RunRepository persists pipeline run history.
type RunRepository interface {
	SaveRun(ctx context.Context, run *models.PipelineRun) error
	GetRun(ctx context.Context, runID string) (*models.PipelineRun, error)
	ListRuns(ctx context.Context, params ListRunsParams) ([]models.PipelineRun, error)
	CountRuns(ctx context.Context, params ListRunsParams) (int64, error)
}

type ListRunsParams struct {
	Status *string
	Limit  int
	Offset int
}
