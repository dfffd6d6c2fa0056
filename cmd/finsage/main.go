package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/cache"
	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/db"
	"github.com/raghuneu/finsage/internal/logger"
	"github.com/raghuneu/finsage/internal/runlock"
	"github.com/raghuneu/finsage/internal/warehouse"
)

var (
	cfgPath string
	envOnly bool
)

var rootCmd = &cobra.Command{
	Use:           "finsage",
	Short:         "Ingest market, news and SEC data into the warehouse",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultPath := os.Getenv("FINSAGE_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	defaultEnvOnly := false
	if raw := os.Getenv("FINSAGE_ENV_ONLY"); raw != "" {
		defaultEnvOnly = strings.EqualFold(raw, "true") || raw == "1"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", defaultEnvOnly, "read configuration from FINSAGE_* env only")

	rootCmd.AddCommand(runCmd, serveCmd, migrateCmd, ciksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "finsage:", err)
		os.Exit(1)
	}
}

// app holds the shared handles every command starts from.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *db.DB
	store  *warehouse.Store
	redis  redis.UniversalClient
	cache  cache.Store
	locker runlock.Locker
}

// bootstrap loads config and opens shared handles. adjust, when set, may
// override loaded values before anything is built.
func bootstrap(adjust func(*config.Config)) (*app, error) {
	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}

	a := &app{
		cfg:    cfg,
		logger: log,
		db:     dbConn,
		store:  warehouse.New(dbConn.Gorm, cfg.Pipeline.BatchSize),
	}
	if cfg.Cache.Backend == cache.BackendRedis || cfg.RunLock.Backend == runlock.BackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if a.cache, err = cache.New(cfg.Cache.Backend, a.redis); err != nil {
		a.close()
		return nil, err
	}
	if a.locker, err = runlock.New(cfg.RunLock.Backend, a.redis); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = db.Close(a.db)
	}
	_ = a.logger.Sync()
}
