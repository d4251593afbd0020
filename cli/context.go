package cli

import (
	"context"
	"fmt"
	"io"

	"sewstat/config"
	"sewstat/database"
	"sewstat/etl"
	"sewstat/logger"
	"sewstat/report"
)

// Context is shared by every command
type Context struct {
	Ctx        context.Context
	ConfigPath string
	Out        io.Writer
}

// LoadConfig reads the configuration and sets up logging
func (c *Context) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Dir: cfg.LogDir, Stderr: true}); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

// env is what the serving and batch commands run against
type env struct {
	cfg      *config.Config
	db       *database.DB
	repo     *database.Repository
	upstream etl.Source
}

func (c *Context) open() (*env, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.Initialize(cfg.DBPath, cfg.AppDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := database.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	upstream, err := etl.NewSource(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open upstream source: %w", err)
	}
	return &env{cfg: cfg, db: db, repo: repo, upstream: upstream}, nil
}

// reportSource picks where reports read rows from. Anything that fills the
// lake (mock data, the scheduler, lake mode) reads the lake; otherwise
// reports go straight to the upstream.
func (e *env) reportSource() report.RowSource {
	if e.upstream == nil || e.cfg.MockData.Enabled || e.cfg.Scheduler.Enabled {
		return e.repo
	}
	return e.upstream
}

func (e *env) close() {
	if c, ok := e.upstream.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close upstream source", "error", err)
		}
	}
	e.db.Close()
}
