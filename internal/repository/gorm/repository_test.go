package gormrepository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/db"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/repository"
)

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	d, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(d) })
	require.NoError(t, db.AutoMigrate(d))
	store := New(d.Gorm)

	base := time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		require.NoError(t, store.SaveRun(ctx, &models.PipelineRun{
			RunID:     id,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    models.RunStatusCompleted,
		}))
	}

	finished := base.Add(10 * time.Minute)
	require.NoError(t, store.SaveRun(ctx, &models.PipelineRun{
		RunID:        "run-a",
		StartedAt:    base,
		FinishedAt:   &finished,
		Status:       models.RunStatusCanceled,
		SuccessCount: 2,
		SummaryJSON:  datatypes.JSON(`{"run_id":"run-a"}`),
	}))

	got, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RunStatusCanceled, got.Status)
	assert.Equal(t, 2, got.SuccessCount)
	require.NotNil(t, got.FinishedAt)

	missing, err := store.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	runs, err := store.ListRuns(ctx, repository.ListRunsParams{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID)

	status := models.RunStatusCanceled
	n, err := store.CountRuns(ctx, repository.ListRunsParams{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
