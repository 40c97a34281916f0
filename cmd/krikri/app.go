package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/config"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/enrich"
	"github.com/jlicht/krikri/internal/harvest/oai"
	"github.com/jlicht/krikri/internal/queue"
	"github.com/jlicht/krikri/internal/sqlite"
)

// app holds the services a command runs against.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sqlite.DB
	records    *record.Service
	activities *activity.Service
	registry   *agent.Registry
	closers    []func() error
}

// loadConfig reads configuration, honoring the --config flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("KRIKRI_CONFIG_PATH", path); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// newApp opens the store and builds the services and agent registry. Logs
// go to logOut unless a log file is configured.
func newApp(cfg config.Config, logOut io.Writer) (*app, error) {
	logger, closeLog, err := newLogger(logOut, cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return nil, fmt.Errorf("log file error: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	policy, err := enrich.ParsePolicy(cfg.Enrichment.FailurePolicy)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := ensureParentDir(cfg.DB.Path); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if err := db.RunMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	entities := sqlite.NewEntityRepository(db)
	a.records = record.NewService(entities, logger)
	a.activities = activity.NewService(sqlite.NewActivityRepository(db), entities, logger)
	a.registry = agent.StandardRegistry(agent.Deps{
		Records:    a.records,
		Activities: a.activities,
		Harvest:    harvestConfig(cfg.Harvest),
		Policy:     policy,
		Logger:     logger,
	})
	return a, nil
}

// openQueue connects to Redis and registers the connection for Close.
func (a *app) openQueue() (*queue.RedisQueue, error) {
	q, err := queue.NewRedisQueue(queue.RedisOptions{
		URL:            a.cfg.Redis.URL,
		ConnectTimeout: a.cfg.Redis.ConnectTimeout,
		ReadTimeout:    a.cfg.Redis.ReadTimeout,
		WriteTimeout:   a.cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, q.Close)
	return q, nil
}

func (a *app) dispatcher(q queue.Queue) *agent.Dispatcher {
	return agent.NewDispatcher(a.registry, a.activities, q, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func harvestConfig(c config.HarvestConfig) oai.ClientConfig {
	return oai.ClientConfig{
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
		RateBurst: c.RateBurst,
		UserAgent: c.UserAgent,
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
