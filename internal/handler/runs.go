package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/pipeline"
	"github.com/raghuneu/finsage/internal/repository"
	"github.com/raghuneu/finsage/internal/runlock"
)

type PipelineStarter interface {
	Start(ctx context.Context, opts pipeline.Options, done func(pipeline.Summary)) (string, error)
	Active() (string, bool)
}

type RunHandler struct {
	Runs     repository.RunRepository
	Pipeline PipelineStarter
	// Tickers is the default entity list when a trigger names none.
	Tickers []string
	// BaseCtx outlives the request; triggered runs are bound to it.
	BaseCtx context.Context
	Logger  *zap.Logger
}

type triggerRunRequest struct {
	Tickers []string `json:"tickers"`
	Sources []string `json:"sources" binding:"omitempty,dive,oneof=stocks fundamentals news sec filings"`
}

func (h *RunHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/runs")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("", h.trigger)
}

// @Summary List pipeline runs
// @Tags runs
// @Param status query string false "running|completed|canceled"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/runs [get]
func (h *RunHandler) list(c *gin.Context) {
	if h.Runs == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var status *string
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status = &v
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListRunsParams{Status: status, Limit: limit, Offset: offset}
	items, err := h.Runs.ListRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Runs.CountRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get pipeline run
// @Tags runs
// @Param id path string true "run id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/runs/{id} [get]
func (h *RunHandler) get(c *gin.Context) {
	if h.Runs == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Trigger a pipeline run
// @Tags runs
// @Accept json
// @Param request body triggerRunRequest false "tickers and sources; empty uses the configured list"
// @Success 202 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/runs [post]
func (h *RunHandler) trigger(c *gin.Context) {
	if h.Pipeline == nil {
		Error(c, http.StatusInternalServerError, "pipeline unavailable", nil)
		return
	}
	var req triggerRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	if active, ok := h.Pipeline.Active(); ok {
		Error(c, http.StatusConflict, "a pipeline run is already active", map[string]any{"run_id": active})
		return
	}
	tickers := req.Tickers
	if len(tickers) == 0 {
		tickers = h.Tickers
	}

	baseCtx := h.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := h.Pipeline.Start(baseCtx, pipeline.Options{Tickers: tickers, Sources: req.Sources}, func(sum pipeline.Summary) {
		logger.Info("triggered run finished", zap.String("run_id", sum.RunID), zap.String("status", sum.Status))
	})
	switch {
	case errors.Is(err, runlock.ErrLocked):
		Error(c, http.StatusConflict, "a pipeline run is already active", nil)
		return
	case errors.Is(err, pipeline.ErrNoEntities):
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Respond(c, http.StatusAccepted, gin.H{"run_id": runID, "status": "running"}, nil)
}
