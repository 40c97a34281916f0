package activity

import (
	"context"
	"time"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
)

// Repository provides persistence operations for activities.
type Repository interface {
	Create(ctx context.Context, a *Activity) error
	Get(ctx context.Context, id string) (*Activity, error)
	Update(ctx context.Context, a *Activity) error
	// MarkStarted sets the start time only if the activity has none yet.
	// It returns repository.ErrConflict when the activity already started.
	MarkStarted(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, opts ListOptions) ([]Activity, error)
	Count(ctx context.Context, opts ListOptions) (int, error)
}

// EntityStore loads the entities activities generated.
type EntityStore interface {
	GetOriginal(ctx context.Context, id string) (*record.OriginalRecord, error)
	GetAggregation(ctx context.Context, id string) (*record.Aggregation, error)
	OriginalIDsGeneratedBy(ctx context.Context, activityID string, includeInvalidated bool) harvest.Iterator[string]
	AggregationIDsGeneratedBy(ctx context.Context, activityID string, includeInvalidated bool) harvest.Iterator[string]
}
