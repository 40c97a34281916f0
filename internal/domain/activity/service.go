package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/repository"
)

// Service records the lifecycle of agent runs and answers provenance
// queries.
type Service struct {
	repo     Repository
	entities EntityStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new activity service.
func NewService(repo Repository, entities EntityStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		entities: entities,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create records a new activity for agentName with its options serialized.
func (s *Service) Create(ctx context.Context, agentName, queue string, opts map[string]any) (*Activity, error) {
	if agentName == "" {
		return nil, ErrInvalidInput
	}
	if opts == nil {
		opts = map[string]any{}
	}
	encoded, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encoding activity options: %w", err)
	}

	a := &Activity{
		ID:        uuid.NewString(),
		Agent:     agentName,
		Opts:      encoded,
		Queue:     queue,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}
	s.logger.Info("created activity", "activity", a.ID, "agent", agentName)
	return a, nil
}

// Get returns an activity by ID.
func (s *Service) Get(ctx context.Context, id string) (*Activity, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("getting activity: %w", err)
	}
	return a, nil
}

// Start records the beginning of a run. Only one caller can start a given
// activity; the others get ErrAlreadyStarted.
func (s *Service) Start(ctx context.Context, id string) (*Activity, error) {
	if err := s.repo.MarkStarted(ctx, id, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrActivityNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAlreadyStarted
		}
		return nil, fmt.Errorf("starting activity: %w", err)
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("activity started", "activity", a.ID, "agent", a.Agent)
	return a, nil
}

// Complete records a successful end.
func (s *Service) Complete(ctx context.Context, id string) (*Activity, error) {
	return s.end(ctx, id, StatusSucceeded, "")
}

// Fail records a failed end with the cause.
func (s *Service) Fail(ctx context.Context, id string, cause error) (*Activity, error) {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	return s.end(ctx, id, StatusFailed, msg)
}

// Abandon fails an activity that will never reach a worker, such as one
// whose job could not be queued.
func (s *Service) Abandon(ctx context.Context, id string, cause error) (*Activity, error) {
	if err := s.repo.MarkStarted(ctx, id, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrActivityNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrAlreadyStarted
		}
		return nil, fmt.Errorf("abandoning activity: %w", err)
	}
	return s.Fail(ctx, id, cause)
}

func (s *Service) end(ctx context.Context, id string, status Status, msg string) (*Activity, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.StartTime == nil {
		return nil, ErrNotStarted
	}
	if a.EndTime != nil {
		return nil, ErrAlreadyEnded
	}
	now := s.now()
	a.EndTime = &now
	a.Status = status
	a.Error = msg
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("ending activity: %w", err)
	}
	if status == StatusFailed {
		s.logger.Error("activity failed", "activity", a.ID, "agent", a.Agent, "error", msg)
	} else {
		s.logger.Info("activity succeeded", "activity", a.ID, "agent", a.Agent, "duration", a.Duration())
	}
	return a, nil
}

// RecordFailures appends per-item failures to a running activity.
func (s *Service) RecordFailures(ctx context.Context, id string, failures []ItemFailure) error {
	if len(failures) == 0 {
		return nil
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	a.Failures = append(a.Failures, failures...)
	if err := s.repo.Update(ctx, a); err != nil {
		return fmt.Errorf("recording failures: %w", err)
	}
	return nil
}

// List returns activities matching opts, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Activity, error) {
	list, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return list, nil
}

// Count returns how many activities match opts.
func (s *Service) Count(ctx context.Context, opts ListOptions) (int, error) {
	n, err := s.repo.Count(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("counting activities: %w", err)
	}
	return n, nil
}

// Entities enumerates the entities an activity generated, as selected by
// behavior.
func (s *Service) Entities(ctx context.Context, id string, behavior EntityBehavior, opts EntityOptions) (harvest.Iterator[record.Entity], error) {
	if s.entities == nil {
		return nil, errors.New("entity store not configured")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if behavior == nil {
		behavior = AggregationEntityBehavior{}
	}
	return behavior.Entities(ctx, s.entities, id, opts), nil
}

// LoadEntity fetches one entity of the behavior's kind. Callers walking
// identifiers use it to load entities one at a time and skip those that
// fail.
func (s *Service) LoadEntity(ctx context.Context, behavior EntityBehavior, id string) (record.Entity, error) {
	if s.entities == nil {
		return nil, errors.New("entity store not configured")
	}
	if behavior == nil {
		behavior = AggregationEntityBehavior{}
	}
	return behavior.Load(ctx, s.entities, id)
}
