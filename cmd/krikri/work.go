package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/tracing"
)

func newWorkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run queued agents until interrupted",
		Long: `Pop activity ids from Redis queues and run the agent each activity
names. Queues are polled in the order given; without --queue the configured
worker queues are used, falling back to every registered agent's queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.openQueue()
			if err != nil {
				return err
			}
			if cfg.Tracing.Enabled {
				shutdown := installTracing(a)
				defer shutdown()
			}

			queues, _ := cmd.Flags().GetStringSlice("queue")
			if len(queues) == 0 {
				queues = cfg.Worker.Queues
			}
			if len(queues) == 0 {
				queues = a.registry.Queues()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			job := agent.NewJob(a.activities, a.registry, a.logger)
			worker := agent.NewWorker(q, job, queues, cfg.Worker.PollTimeout, a.logger)
			a.logger.Info("worker started", "worker", worker.ID, "queues", queues)
			return worker.Work(ctx)
		},
	}
	cmd.Flags().StringSlice("queue", nil, "Queue to work, repeatable; earlier queues take priority")
	return cmd
}

// installTracing exports spans to the app logger and returns a shutdown
// function that logs its own failure.
func installTracing(a *app) func() {
	shutdown := tracing.Install(a.cfg.Tracing.ServiceName, a.logger)
	return func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}
}
