package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/harvest"
)

// HarvestAgent streams records from a harvester into the store.
type HarvestAgent struct {
	Base
	harvester harvest.Harvester
	records   OriginalSaver
	failures  FailureRecorder
	logger    *slog.Logger
}

// NewHarvestAgent creates a harvest agent. failures may be nil.
func NewHarvestAgent(h harvest.Harvester, records OriginalSaver, failures FailureRecorder, logger *slog.Logger) *HarvestAgent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &HarvestAgent{
		harvester: h,
		records:   records,
		failures:  failures,
		logger:    logger,
	}
	a.Base = NewBase(a)
	a.Behavior = activity.OriginalRecordEntityBehavior{}
	return a
}

// Run saves every harvested record as it arrives. A record that fails to
// save is skipped; a harvest error fails the run.
func (a *HarvestAgent) Run(ctx context.Context, activityID string) error {
	it := a.harvester.Records(ctx, nil)
	defer it.Close()

	var saved int
	var skipped []activity.ItemFailure
	for it.Next() {
		rec := it.Value()
		rec.GeneratedBy = activityID
		if err := a.records.SaveOriginal(ctx, rec); err != nil {
			a.logger.Warn("skipping record", "id", rec.ID, "source_id", rec.SourceID, "error", err)
			skipped = append(skipped, activity.ItemFailure{EntityID: rec.ID, Message: err.Error()})
			continue
		}
		saved++
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("harvesting records: %w", err)
	}

	a.recordSkipped(ctx, activityID, skipped)
	a.logger.Info("harvest finished", "activity", activityID, "saved", saved, "skipped", len(skipped))
	if saved == 0 && len(skipped) > 0 {
		return fmt.Errorf("%w: %d records failed", ErrNothingSaved, len(skipped))
	}
	return nil
}

func (a *HarvestAgent) recordSkipped(ctx context.Context, activityID string, skipped []activity.ItemFailure) {
	if activityID == "" || a.failures == nil || len(skipped) == 0 {
		return
	}
	if err := a.failures.RecordFailures(ctx, activityID, skipped); err != nil {
		a.logger.Error("recording skipped records", "activity", activityID, "error", err)
	}
}
