package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/enrich"
	"github.com/jlicht/krikri/internal/harvest"
)

// Enrichment agent option keys.
const (
	OptSourceActivity = "source_activity"
	OptSourceBehavior = "source_behavior"
	OptChains         = "chains"
	OptTransforms     = "transforms"
	OptPolicy         = "policy"
)

// DefaultTransform is applied when no transforms are named.
const DefaultTransform = "parse_date"

// EnrichmentSchema returns the options the enrichment agent accepts.
func EnrichmentSchema() harvest.OptionSchema {
	return harvest.OptionSchema{
		OptSourceActivity: {Type: harvest.TypeString, Required: true, Description: "activity whose entities are enriched"},
		OptSourceBehavior: {Type: harvest.TypeString, Description: "entity kind to read: original_record (default) or aggregation"},
		OptChains:         {Type: harvest.TypeString, Multiple: true, Description: "dotted field chains; omit for every field"},
		OptTransforms:     {Type: harvest.TypeString, Multiple: true, Description: "named transforms applied in order"},
		OptPolicy:         {Type: harvest.TypeString, Description: "transform failure policy: keep, drop or record"},
	}
}

// EntitySource enumerates the entities an activity generated and loads
// them one by one.
type EntitySource interface {
	Entities(ctx context.Context, id string, behavior activity.EntityBehavior, opts activity.EntityOptions) (harvest.Iterator[record.Entity], error)
	LoadEntity(ctx context.Context, behavior activity.EntityBehavior, id string) (record.Entity, error)
}

// EnrichmentConfig selects the records and fields an EnrichmentAgent works on.
type EnrichmentConfig struct {
	SourceActivity string
	SourceBehavior activity.EntityBehavior
	Chains         []enrich.FieldChain
}

// EnrichmentAgent enriches the entities of a source activity and saves the
// results as aggregations.
type EnrichmentAgent struct {
	Base
	config     EnrichmentConfig
	enrichment *enrich.FieldEnrichment
	source     EntitySource
	aggs       AggregationSaver
	failures   FailureRecorder
	logger     *slog.Logger
}

// NewEnrichmentAgent creates an enrichment agent. failures may be nil.
func NewEnrichmentAgent(config EnrichmentConfig, enrichment *enrich.FieldEnrichment, source EntitySource, aggs AggregationSaver, failures FailureRecorder, logger *slog.Logger) *EnrichmentAgent {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SourceBehavior == nil {
		config.SourceBehavior = activity.OriginalRecordEntityBehavior{}
	}
	a := &EnrichmentAgent{
		config:     config,
		enrichment: enrichment,
		source:     source,
		aggs:       aggs,
		failures:   failures,
		logger:     logger,
	}
	a.Base = NewBase(a)
	return a
}

// NewEnrichmentAgentFromOptions builds the agent from dispatch options.
func NewEnrichmentAgentFromOptions(opts harvest.Options, defaultPolicy enrich.FailurePolicy, source EntitySource, aggs AggregationSaver, failures FailureRecorder, logger *slog.Logger) (*EnrichmentAgent, error) {
	if err := EnrichmentSchema().Validate(opts); err != nil {
		return nil, err
	}

	names := opts.Strings(OptTransforms)
	if len(names) == 0 {
		names = []string{DefaultTransform}
	}
	transform, err := enrich.LookupChain(names...)
	if err != nil {
		return nil, err
	}

	policy := defaultPolicy
	if name, ok := opts.String(OptPolicy); ok {
		if policy, err = enrich.ParsePolicy(name); err != nil {
			return nil, err
		}
	}
	if policy == "" {
		policy = enrich.PolicyKeep
	}

	config := EnrichmentConfig{SourceActivity: opts.StringOr(OptSourceActivity, "")}
	if name, ok := opts.String(OptSourceBehavior); ok {
		behavior, found := activity.BehaviorByName(name)
		if !found {
			return nil, fmt.Errorf("unknown entity behavior %q", name)
		}
		config.SourceBehavior = behavior
	}
	for _, chain := range opts.Strings(OptChains) {
		config.Chains = append(config.Chains, enrich.ParseChain(chain))
	}

	enrichment := &enrich.FieldEnrichment{Transform: transform, Policy: policy, Logger: logger}
	return NewEnrichmentAgent(config, enrichment, source, aggs, failures, logger), nil
}

// Run enriches each source entity as it is loaded. Entities that cannot be
// loaded or enriched are skipped and recorded as failures on the activity;
// only a failure to enumerate the source ends the run.
func (a *EnrichmentAgent) Run(ctx context.Context, activityID string) error {
	it, err := a.source.Entities(ctx, a.config.SourceActivity, a.config.SourceBehavior, activity.EntityOptions{})
	if err != nil {
		return fmt.Errorf("listing source entities: %w", err)
	}

	var saved int
	var skipped []activity.ItemFailure
	for it.Next() {
		id := it.Value().EntityID()
		entity, err := a.source.LoadEntity(ctx, a.config.SourceBehavior, id)
		if err != nil {
			a.logger.Warn("skipping unloadable entity", "id", id, "error", err)
			skipped = append(skipped, activity.ItemFailure{EntityID: id, Message: err.Error()})
			continue
		}
		agg, ok := a.derive(entity)
		if !ok {
			skipped = append(skipped, activity.ItemFailure{EntityID: id, Message: "entity has no record to enrich"})
			continue
		}

		enriched, report := a.enrichment.EnrichWithReport(agg.Record, a.config.Chains...)
		agg.Record = enriched
		agg.GeneratedBy = activityID
		for _, f := range report.Failures {
			skipped = append(skipped, activity.ItemFailure{EntityID: agg.ID, Field: f.Field, Value: f.Value, Message: f.Error})
		}

		if err := a.aggs.SaveAggregation(ctx, agg); err != nil {
			a.logger.Warn("skipping aggregation", "id", agg.ID, "error", err)
			skipped = append(skipped, activity.ItemFailure{EntityID: agg.ID, Message: err.Error()})
			continue
		}
		saved++
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("enriching entities: %w", err)
	}

	if activityID != "" && a.failures != nil && len(skipped) > 0 {
		if err := a.failures.RecordFailures(ctx, activityID, skipped); err != nil {
			a.logger.Error("recording skipped entities", "activity", activityID, "error", err)
		}
	}
	a.logger.Info("enrichment finished", "activity", activityID, "source", a.config.SourceActivity, "saved", saved, "skipped", len(skipped))
	if saved == 0 && len(skipped) > 0 {
		return fmt.Errorf("%w: %d entities failed", ErrNothingSaved, len(skipped))
	}
	return nil
}

func (a *EnrichmentAgent) derive(e record.Entity) (*record.Aggregation, bool) {
	switch src := e.(type) {
	case *record.OriginalRecord:
		if src.Record == nil {
			return nil, false
		}
		return &record.Aggregation{
			ID:          src.ID,
			Provider:    src.Provider,
			DerivedFrom: src.ID,
			Record:      src.Record,
		}, true
	case *record.Aggregation:
		if src.Record == nil {
			return nil, false
		}
		return &record.Aggregation{
			ID:          src.ID,
			Provider:    src.Provider,
			DerivedFrom: src.DerivedFrom,
			Record:      src.Record,
			CreatedAt:   src.CreatedAt,
		}, true
	default:
		return nil, false
	}
}
