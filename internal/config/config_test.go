package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	t.Setenv("FINSAGE_DB_DSN", "file::memory:")
	t.Setenv("FINSAGE_DB_DRIVER", "sqlite")

	cfg, err := Load("", true)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL"}, cfg.Pipeline.Tickers)
	assert.Equal(t, time.Second, cfg.Pipeline.TickerDelay)
	assert.Equal(t, "0 0 17 * * 1-5", cfg.Cron.Pipeline)
	assert.True(t, cfg.Pipeline.Sources.Stocks)
	assert.False(t, cfg.Pipeline.Sources.News)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 8.0, cfg.Edgar.RateLimit)
	assert.Len(t, cfg.Edgar.Concepts, 10)
}

func TestLoadFileWithTickersFile(t *testing.T) {
	dir := t.TempDir()
	tickers := filepath.Join(dir, "tickers.yaml")
	require.NoError(t, os.WriteFile(tickers, []byte("tickers:\n  - nvda\n  - AAPL\n  - nvda\n"), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	body := "db:\n  driver: sqlite\n  dsn: finsage.db\npipeline:\n  tickers_file: " + tickers + "\n  min_quality_score: 60\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	cfg, err := Load(cfgPath, false)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"NVDA", "AAPL"}, cfg.Pipeline.Tickers)
	assert.Equal(t, 60.0, cfg.Pipeline.MinQualityScore)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("FINSAGE_DB_DSN", "x")
	cfg, err := Load("", true)
	require.NoError(t, err)

	cfg.DB.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.DB.Driver = "postgres"
	cfg.Pipeline.MinQualityScore = 120
	assert.Error(t, cfg.Validate())

	cfg.Pipeline.MinQualityScore = 0
	cfg.RunLock.Backend = "redis"
	cfg.Redis.Addr = ""
	assert.ErrorContains(t, cfg.Validate(), "redis.addr")
}

func TestLoadTickersEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tickers: []\n"), 0o644))
	_, err := LoadTickers(path)
	assert.Error(t, err)
}
