package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cronrunner "github.com/raghuneu/finsage/internal/cron"
	"github.com/raghuneu/finsage/internal/db"
	"github.com/raghuneu/finsage/internal/handler"
	"github.com/raghuneu/finsage/internal/pipeline"
	gormrepository "github.com/raghuneu/finsage/internal/repository/gorm"
	"github.com/raghuneu/finsage/internal/runlock"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the pipeline on the cron schedule",
	RunE:  serve,
}

func serve(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(nil)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger
	cfg := a.cfg

	if err := db.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	svc, err := newPipeline(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	(&handler.HealthHandler{DB: a.db.Gorm}).Register(engine)
	(&handler.RunHandler{
		Runs:     gormrepository.New(a.db.Gorm),
		Pipeline: svc,
		Tickers:  cfg.Pipeline.Tickers,
		BaseCtx:  ctx,
		Logger:   logger,
	}).Register(engine)
	(&handler.WatermarkHandler{Store: a.store, Runners: svc.Runners}).Register(engine)
	handler.RegisterDocs(engine)

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		id, err := cronRunner.Add("pipeline", cfg.Cron.Pipeline, func(ctx context.Context) {
			_, err := svc.Run(ctx, pipeline.Options{Tickers: cfg.Pipeline.Tickers})
			switch {
			case errors.Is(err, runlock.ErrLocked):
				logger.Info("scheduled run skipped, another run is active")
			case err != nil:
				logger.Warn("scheduled run failed to start", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("cron register pipeline: %w", err)
		}
		cronRunner.Start()
		defer cronRunner.Stop()
		logger.Info("pipeline scheduled", zap.String("spec", cfg.Cron.Pipeline), zap.Time("next", cronRunner.Next(id)))
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	svc.Wait()
	logger.Info("server stopped")
	return nil
}
