package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/db"
	"github.com/raghuneu/finsage/internal/loader"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/pipeline"
	gormrepository "github.com/raghuneu/finsage/internal/repository/gorm"
	"github.com/raghuneu/finsage/internal/warehouse"
)

type gatedRunner struct {
	gate chan struct{}
}

func (g *gatedRunner) Source() string         { return "stocks" }
func (g *gatedRunner) Table() warehouse.Table { return warehouse.Table{Name: "raw_stock_prices"} }
func (g *gatedRunner) Load(ctx context.Context, key string) loader.Outcome {
	select {
	case <-g.gate:
	case <-ctx.Done():
	}
	return loader.Outcome{Source: "stocks", EntityKey: key, State: loader.StateDone}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(d) })
	require.NoError(t, db.AutoMigrate(d))
	return d
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth(t *testing.T) {
	engine := gin.New()
	(&HealthHandler{DB: openDB(t).Gorm}).Register(engine)

	code, _ := do(t, engine, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, engine, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, code)

	bare := gin.New()
	(&HealthHandler{}).Register(bare)
	code, _ = do(t, bare, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestTriggerAndReadRuns(t *testing.T) {
	d := openDB(t)
	runs := gormrepository.New(d.Gorm)
	runner := &gatedRunner{gate: make(chan struct{})}
	svc := &pipeline.Service{Runners: []loader.Runner{runner}, Runs: runs}

	engine := gin.New()
	(&RunHandler{Runs: runs, Pipeline: svc, Tickers: []string{"AAPL"}}).Register(engine)

	code, env := do(t, engine, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	require.NotEmpty(t, started.RunID)

	code, env = do(t, engine, http.MethodPost, "/api/v1/runs", `{"tickers":["MSFT"]}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, started.RunID, env.Meta["run_id"])

	close(runner.gate)
	require.Eventually(t, func() bool {
		_, active := svc.Active()
		return !active
	}, 5*time.Second, 10*time.Millisecond)

	code, env = do(t, engine, http.MethodGet, "/api/v1/runs/"+started.RunID, "")
	require.Equal(t, http.StatusOK, code)
	var run models.PipelineRun
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.SuccessCount)

	code, env = do(t, engine, http.MethodGet, "/api/v1/runs?limit=10", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Meta["total"])

	code, _ = do(t, engine, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTriggerRejectsUnknownSource(t *testing.T) {
	svc := &pipeline.Service{}
	engine := gin.New()
	(&RunHandler{Pipeline: svc, Tickers: []string{"AAPL"}}).Register(engine)

	code, _ := do(t, engine, http.MethodPost, "/api/v1/runs", `{"sources":["crypto"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTriggerWithoutTickers(t *testing.T) {
	engine := gin.New()
	(&RunHandler{Pipeline: &pipeline.Service{}}).Register(engine)

	code, _ := do(t, engine, http.MethodPost, "/api/v1/runs", `{"tickers":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWatermarks(t *testing.T) {
	d := openDB(t)
	store := warehouse.New(d.Gorm, 100)
	px := decimal.NewFromInt(10)
	vol := int64(5)
	fetch := loader.FetcherFunc[models.StockPrice](func(context.Context, string, *string) ([]models.StockPrice, error) {
		return []models.StockPrice{
			{Date: "2024-01-02", Open: &px, High: &px, Low: &px, Close: &px, Volume: &vol},
			{Date: "2024-01-03", Open: &px, High: &px, Low: &px, Close: &px, Volume: &vol},
		}, nil
	})
	l, err := loader.NewStockLoader(store, fetch, nil, loader.Options{})
	require.NoError(t, err)
	require.True(t, l.Load(context.Background(), "AAPL").OK())

	engine := gin.New()
	(&WatermarkHandler{Store: store, Runners: []loader.Runner{l}}).Register(engine)

	code, env := do(t, engine, http.MethodGet, "/api/v1/watermarks/aapl", "")
	require.Equal(t, http.StatusOK, code)
	var marks []sourceWatermark
	require.NoError(t, json.Unmarshal(env.Data, &marks))
	require.Len(t, marks, 1)
	assert.Equal(t, "stocks", marks[0].Source)
	require.NotNil(t, marks[0].Watermark)
	assert.Equal(t, "2024-01-03", *marks[0].Watermark)
	assert.Equal(t, int64(2), marks[0].Rows)

	code, env = do(t, engine, http.MethodGet, "/api/v1/watermarks/TSLA", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &marks))
	assert.Nil(t, marks[0].Watermark)
}

func TestSwaggerDocument(t *testing.T) {
	engine := gin.New()
	RegisterDocs(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "FinSage Ingestion API", doc.Info.Title)
	for _, p := range []string{"/healthz", "/readyz", "/api/v1/runs", "/api/v1/runs/{id}", "/api/v1/watermarks/{ticker}"} {
		assert.Contains(t, doc.Paths, p)
	}
}
