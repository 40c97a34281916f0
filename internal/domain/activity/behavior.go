package activity

import (
	"context"
	"fmt"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
)

// EntityOptions control how entity behaviors enumerate entities.
type EntityOptions struct {
	// Load fetches each full entity. When false only identifiers are filled.
	Load bool
	// IncludeInvalidated includes entities withdrawn by a later activity.
	IncludeInvalidated bool
}

// DefaultEntityOptions loads entities and skips invalidated ones.
func DefaultEntityOptions() EntityOptions {
	return EntityOptions{Load: true}
}

// EntityBehavior selects which stored entities an activity concerns.
type EntityBehavior interface {
	// Name identifies the behavior in logs and listings.
	Name() string
	// Entities lazily enumerates the entities generated by activityID. Each
	// entity is loaded only when the iterator reaches it.
	Entities(ctx context.Context, store EntityStore, activityID string, opts EntityOptions) harvest.Iterator[record.Entity]
	// Load fetches one entity of the behavior's kind by id.
	Load(ctx context.Context, store EntityStore, id string) (record.Entity, error)
}

// OriginalRecordEntityBehavior enumerates the original records an activity
// harvested.
type OriginalRecordEntityBehavior struct{}

// Name implements EntityBehavior.
func (OriginalRecordEntityBehavior) Name() string { return "original_record" }

// Entities implements EntityBehavior.
func (b OriginalRecordEntityBehavior) Entities(ctx context.Context, store EntityStore, activityID string, opts EntityOptions) harvest.Iterator[record.Entity] {
	ids := store.OriginalIDsGeneratedBy(ctx, activityID, opts.IncludeInvalidated)
	return harvest.Map(ids, func(id string) (record.Entity, error) {
		if !opts.Load {
			return &record.OriginalRecord{ID: id, GeneratedBy: activityID}, nil
		}
		return b.Load(ctx, store, id)
	})
}

// Load implements EntityBehavior.
func (OriginalRecordEntityBehavior) Load(ctx context.Context, store EntityStore, id string) (record.Entity, error) {
	rec, err := store.GetOriginal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading original record %s: %w", id, err)
	}
	return rec, nil
}

// AggregationEntityBehavior enumerates the aggregations an activity produced.
// It is the default behavior for agents.
type AggregationEntityBehavior struct{}

// Name implements EntityBehavior.
func (AggregationEntityBehavior) Name() string { return "aggregation" }

// Entities implements EntityBehavior.
func (b AggregationEntityBehavior) Entities(ctx context.Context, store EntityStore, activityID string, opts EntityOptions) harvest.Iterator[record.Entity] {
	ids := store.AggregationIDsGeneratedBy(ctx, activityID, opts.IncludeInvalidated)
	return harvest.Map(ids, func(id string) (record.Entity, error) {
		if !opts.Load {
			return &record.Aggregation{ID: id, GeneratedBy: activityID}, nil
		}
		return b.Load(ctx, store, id)
	})
}

// Load implements EntityBehavior.
func (AggregationEntityBehavior) Load(ctx context.Context, store EntityStore, id string) (record.Entity, error) {
	agg, err := store.GetAggregation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading aggregation %s: %w", id, err)
	}
	return agg, nil
}

// BehaviorByName returns the named behavior.
func BehaviorByName(name string) (EntityBehavior, bool) {
	switch name {
	case OriginalRecordEntityBehavior{}.Name():
		return OriginalRecordEntityBehavior{}, true
	case AggregationEntityBehavior{}.Name(), "":
		return AggregationEntityBehavior{}, true
	default:
		return nil, false
	}
}
