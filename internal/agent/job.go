package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jlicht/krikri/internal/domain/activity"
)

const tracerName = "github.com/jlicht/krikri/internal/agent"

// Job drives one activity through its lifecycle: start, run the agent,
// then complete or fail.
type Job struct {
	activities *activity.Service
	registry   *Registry
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewJob creates a job runner.
func NewJob(activities *activity.Service, registry *Registry, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		activities: activities,
		registry:   registry,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
	}
}

// Run executes the activity's agent and reports whether it succeeded.
// Activities that already started are not run again.
func (j *Job) Run(ctx context.Context, activityID string) bool {
	ctx, span := j.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("activity.id", activityID),
	))
	defer span.End()

	a, err := j.activities.Get(ctx, activityID)
	if err != nil {
		j.logger.Error("loading activity", "activity", activityID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return false
	}
	span.SetAttributes(attribute.String("agent.name", a.Agent))

	if _, err := j.activities.Start(ctx, activityID); err != nil {
		if errors.Is(err, activity.ErrAlreadyStarted) {
			j.logger.Warn("activity already started, skipping", "activity", activityID)
		} else {
			j.logger.Error("starting activity", "activity", activityID, "error", err)
		}
		span.SetStatus(codes.Error, err.Error())
		return false
	}

	runErr := j.run(ctx, a)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		if _, err := j.activities.Fail(ctx, activityID, runErr); err != nil {
			j.logger.Error("recording failure", "activity", activityID, "error", err)
		}
		return false
	}

	if _, err := j.activities.Complete(ctx, activityID); err != nil {
		j.logger.Error("recording success", "activity", activityID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return false
	}
	return true
}

func (j *Job) run(ctx context.Context, a *activity.Activity) (err error) {
	def, ok := j.registry.Lookup(a.Agent)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, a.Agent)
	}
	opts, err := a.Options()
	if err != nil {
		return err
	}
	agent, err := def.Factory(opts)
	if err != nil {
		return fmt.Errorf("instantiating %s: %w", def.Name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", def.Name, r)
		}
	}()
	return agent.Run(ctx, a.ID)
}
