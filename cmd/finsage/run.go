package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/db"
	"github.com/raghuneu/finsage/internal/pipeline"
	gormrepository "github.com/raghuneu/finsage/internal/repository/gorm"
)

var (
	runTickers []string
	runSources []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion pipeline once and print the summary",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "tickers to load (default: pipeline.tickers)")
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "limit the run to these sources (stocks, fundamentals, news, sec, filings)")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	// stdout carries the summary.
	a, err := bootstrap(func(c *config.Config) {
		if c.Log.Output == "" || c.Log.Output == "stdout" {
			c.Log.Output = "stderr"
		}
	})
	if err != nil {
		return err
	}
	defer a.close()
	if err := db.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	svc, err := newPipeline(a)
	if err != nil {
		return err
	}
	tickers := runTickers
	if len(tickers) == 0 {
		tickers = a.cfg.Pipeline.Tickers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sum, err := svc.Run(ctx, pipeline.Options{Tickers: tickers, Sources: runSources})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return err
	}
	if len(sum.Failed) > 0 {
		return fmt.Errorf("%d of %d entities failed: %v", len(sum.Failed), len(sum.Entities), sum.Failed)
	}
	return nil
}

func newPipeline(a *app) (*pipeline.Service, error) {
	runners, err := pipeline.BuildRunners(a.cfg, pipeline.Deps{Store: a.store, Cache: a.cache, Logger: a.logger})
	if err != nil {
		return nil, err
	}
	if len(runners) == 0 {
		a.logger.Warn("no sources enabled in pipeline.sources")
	}
	return &pipeline.Service{
		Runners:     runners,
		Locker:      a.locker,
		LockKey:     a.cfg.RunLock.Key,
		LockTTL:     a.cfg.Pipeline.LockTTL,
		Runs:        gormrepository.New(a.db.Gorm),
		Logger:      a.logger.With(zap.String("component", "pipeline")),
		TickerDelay: a.cfg.Pipeline.TickerDelay,
	}, nil
}
