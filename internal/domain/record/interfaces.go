package record

import (
	"context"
	"time"
)

// Repository provides persistence for harvested and enriched entities.
type Repository interface {
	SaveOriginal(ctx context.Context, rec *OriginalRecord) error
	GetOriginal(ctx context.Context, id string) (*OriginalRecord, error)
	SaveAggregation(ctx context.Context, agg *Aggregation) error
	GetAggregation(ctx context.Context, id string) (*Aggregation, error)
	Invalidate(ctx context.Context, id string, at time.Time) error
}
