package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jlicht/krikri/internal/repository"
)

// Service handles storage of original records and aggregations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new record service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// SaveOriginal stores a harvested record. Saving an id that already exists
// replaces it, so re-harvesting the same item leaves a single entity.
func (s *Service) SaveOriginal(ctx context.Context, rec *OriginalRecord) error {
	if err := ValidateOriginal(rec); err != nil {
		return err
	}
	if rec.Record == nil {
		rec.Record = New()
	}
	if rec.ContentType == "" {
		rec.ContentType = "text/xml"
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.ModifiedAt = now

	if err := s.repo.SaveOriginal(ctx, rec); err != nil {
		return fmt.Errorf("saving original record: %w", err)
	}
	if rec.Deleted {
		if err := s.repo.Invalidate(ctx, rec.ID, now); err != nil {
			return fmt.Errorf("invalidating deleted record: %w", err)
		}
		rec.InvalidatedAt = &now
	}
	s.logger.Debug("original record saved", "id", rec.ID, "provider", rec.Provider, "activity", rec.GeneratedBy)
	return nil
}

// GetOriginal returns an original record by ID.
func (s *Service) GetOriginal(ctx context.Context, id string) (*OriginalRecord, error) {
	rec, err := s.repo.GetOriginal(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("getting original record: %w", err)
	}
	return rec, nil
}

// SaveAggregation stores an enriched record.
func (s *Service) SaveAggregation(ctx context.Context, agg *Aggregation) error {
	if err := ValidateAggregation(agg); err != nil {
		return err
	}

	now := time.Now().UTC()
	if agg.CreatedAt.IsZero() {
		agg.CreatedAt = now
	}
	agg.ModifiedAt = now

	if err := s.repo.SaveAggregation(ctx, agg); err != nil {
		return fmt.Errorf("saving aggregation: %w", err)
	}
	s.logger.Debug("aggregation saved", "id", agg.ID, "derived_from", agg.DerivedFrom, "activity", agg.GeneratedBy)
	return nil
}

// GetAggregation returns an aggregation by ID.
func (s *Service) GetAggregation(ctx context.Context, id string) (*Aggregation, error) {
	agg, err := s.repo.GetAggregation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("getting aggregation: %w", err)
	}
	return agg, nil
}

// Invalidate marks an entity as withdrawn upstream. Invalidated entities are
// kept but skipped by entity behaviors unless explicitly requested.
func (s *Service) Invalidate(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return ErrInvalidInput
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := s.repo.Invalidate(ctx, id, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntityNotFound
		}
		return fmt.Errorf("invalidating entity: %w", err)
	}
	return nil
}
