package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sewstat/api"
	"sewstat/etl"
	"sewstat/jobs"
	"sewstat/logger"
	"sewstat/mart"
	"sewstat/report"
)

type ServeCmd struct {
	Host string `help:"Override API_HOST."`
	Port string `help:"Override API_PORT."`
}

func (c *ServeCmd) Run(ctx *Context) error {
	e, err := ctx.open()
	if err != nil {
		return err
	}
	defer e.close()
	logger.Info("configuration loaded", "source", e.cfg.Source.Mode, "mock_data", e.cfg.MockData.Enabled)

	workerPool := jobs.NewWorkerPool(e.cfg.WorkerPoolSize)
	defer workerPool.Stop()
	logger.Info("worker pool started", "workers", workerPool.Workers())

	martBuilder := mart.NewMartBuilder(e.db)
	ingestor := etl.NewDataIngestor(e.cfg, e.repo, e.upstream)

	scheduler := etl.NewScheduler(e.cfg, ingestor, martBuilder, e.repo)
	scheduler.Start()
	defer scheduler.Stop()

	reports := report.NewService(e.reportSource(), e.repo, e.cfg, workerPool)
	handler := api.NewHandler(e.db, e.repo, e.cfg, martBuilder, ingestor, reports)

	router := api.SetupRouter(handler)
	router.Use(api.CORSMiddleware())
	router.Use(api.RequestIDMiddleware())
	router.Use(api.LoggingMiddleware())

	host, port := e.cfg.APIHost, e.cfg.APIPort
	if c.Host != "" {
		host = c.Host
	}
	if c.Port != "" {
		port = c.Port
	}
	addr := fmt.Sprintf("%s:%s", host, port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Streams and exports can run long
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
