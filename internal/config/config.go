package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Yahoo    YahooConfig    `mapstructure:"yahoo"`
	NewsAPI  NewsAPIConfig  `mapstructure:"newsapi"`
	Edgar    EdgarConfig    `mapstructure:"edgar"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RunLock  RunLockConfig  `mapstructure:"runlock"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding" validate:"oneof=console json"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	Output            string `mapstructure:"output"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Pipeline string `mapstructure:"pipeline"`
}

type PipelineConfig struct {
	Tickers         []string      `mapstructure:"tickers"`
	TickersFile     string        `mapstructure:"tickers_file"`
	Sources         SourcesConfig `mapstructure:"sources"`
	TickerDelay     time.Duration `mapstructure:"ticker_delay" validate:"gte=0"`
	LoaderTimeout   time.Duration `mapstructure:"loader_timeout" validate:"gt=0"`
	MinQualityScore float64       `mapstructure:"min_quality_score" validate:"gte=0,lte=100"`
	LockTTL         time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
	BatchSize       int           `mapstructure:"batch_size" validate:"gt=0"`
	MaxFilings      int           `mapstructure:"max_filings" validate:"gte=0"`
}

type SourcesConfig struct {
	Stocks       bool `mapstructure:"stocks"`
	Fundamentals bool `mapstructure:"fundamentals"`
	News         bool `mapstructure:"news"`
	SEC          bool `mapstructure:"sec"`
	Filings      bool `mapstructure:"filings"`
}

type YahooConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Range   string        `mapstructure:"range"`
}

type NewsAPIConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size" validate:"gt=0,lte=100"`
	Lookback time.Duration `mapstructure:"lookback"`
}

type EdgarConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	ArchiveURL  string        `mapstructure:"archive_url" validate:"required,url"`
	TickersURL  string        `mapstructure:"tickers_url" validate:"required,url"`
	UserAgent   string        `mapstructure:"user_agent" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"gt=0"`
	Forms       []string      `mapstructure:"forms"`
	Concepts    []string      `mapstructure:"concepts"`
	CIKCacheTTL time.Duration `mapstructure:"cik_cache_ttl"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RunLockConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis"`
	Key     string `mapstructure:"key" validate:"required"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FINSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.pipeline", "0 0 17 * * 1-5")

	v.SetDefault("pipeline.tickers", []string{"AAPL", "MSFT", "GOOGL"})
	v.SetDefault("pipeline.tickers_file", "")
	v.SetDefault("pipeline.sources.stocks", true)
	v.SetDefault("pipeline.sources.fundamentals", true)
	v.SetDefault("pipeline.sources.news", false)
	v.SetDefault("pipeline.sources.sec", true)
	v.SetDefault("pipeline.sources.filings", false)
	v.SetDefault("pipeline.ticker_delay", "1s")
	v.SetDefault("pipeline.loader_timeout", "2m")
	v.SetDefault("pipeline.min_quality_score", 0)
	v.SetDefault("pipeline.lock_ttl", "2h")
	v.SetDefault("pipeline.batch_size", 500)
	v.SetDefault("pipeline.max_filings", 2)

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.timeout", "15s")
	v.SetDefault("yahoo.range", "2y")

	v.SetDefault("newsapi.base_url", "https://newsapi.org")
	v.SetDefault("newsapi.api_key", "")
	v.SetDefault("newsapi.timeout", "15s")
	v.SetDefault("newsapi.page_size", 100)
	v.SetDefault("newsapi.lookback", "168h")

	v.SetDefault("edgar.base_url", "https://data.sec.gov")
	v.SetDefault("edgar.archive_url", "https://www.sec.gov")
	v.SetDefault("edgar.tickers_url", "https://www.sec.gov/files/company_tickers.json")
	v.SetDefault("edgar.user_agent", "FinSage research finsage@example.com")
	v.SetDefault("edgar.timeout", "30s")
	v.SetDefault("edgar.rate_limit", 8)
	v.SetDefault("edgar.forms", []string{"10-K", "10-Q"})
	v.SetDefault("edgar.concepts", []string{
		"Revenues", "NetIncomeLoss", "EarningsPerShareBasic", "EarningsPerShareDiluted",
		"Assets", "Liabilities", "StockholdersEquity", "OperatingIncomeLoss",
		"GrossProfit", "ResearchAndDevelopmentExpense",
	})
	v.SetDefault("edgar.cik_cache_ttl", "24h")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("runlock.backend", "memory")
	v.SetDefault("runlock.key", "finsage:pipeline:run")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dir", "data/archive")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Pipeline.TickersFile != "" {
		tickers, err := LoadTickers(cfg.Pipeline.TickersFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Pipeline.Tickers = tickers
	}
	cfg.Pipeline.Tickers = NormalizeTickers(cfg.Pipeline.Tickers)

	return cfg, nil
}

// Validate checks struct-level constraints after Load.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == "redis" || c.RunLock.Backend == "redis" {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("invalid config: redis.addr is required for redis backends")
		}
	}
	return nil
}

type tickersFile struct {
	Tickers []string `yaml:"tickers"`
}

// LoadTickers reads a YAML file with a top-level "tickers" list.
func LoadTickers(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tickers file: %w", err)
	}
	var f tickersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tickers file %s: %w", path, err)
	}
	if len(f.Tickers) == 0 {
		return nil, fmt.Errorf("tickers file %s has no tickers", path)
	}
	return NormalizeTickers(f.Tickers), nil
}

// NormalizeTickers uppercases, trims and dedupes, keeping first-seen order.
func NormalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
