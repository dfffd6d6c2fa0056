package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raghuneu/finsage/internal/loader"
	"github.com/raghuneu/finsage/internal/warehouse"
)

type WatermarkHandler struct {
	Store   *warehouse.Store
	Runners []loader.Runner
}

type sourceWatermark struct {
	Source    string  `json:"source"`
	Table     string  `json:"table"`
	Column    string  `json:"column,omitempty"`
	Watermark *string `json:"watermark"`
	Rows      int64   `json:"rows"`
}

func (h *WatermarkHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/watermarks/:ticker", h.get)
}

// @Summary Per-source watermarks for a ticker
// @Tags watermarks
// @Param ticker path string true "ticker symbol"
// @Success 200 {object} apiResponse
// @Router /api/v1/watermarks/{ticker} [get]
func (h *WatermarkHandler) get(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		Error(c, http.StatusBadRequest, "invalid ticker", nil)
		return
	}
	ctx := c.Request.Context()
	out := make([]sourceWatermark, 0, len(h.Runners))
	for _, r := range h.Runners {
		t := r.Table()
		mark, err := h.Store.Watermark(ctx, t, ticker)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		n, err := h.Store.Count(ctx, t, ticker)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		out = append(out, sourceWatermark{
			Source:    r.Source(),
			Table:     t.Name,
			Column:    t.WatermarkColumn,
			Watermark: mark,
			Rows:      n,
		})
	}
	Ok(c, out, map[string]any{"ticker": ticker})
}
