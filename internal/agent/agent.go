// Package agent runs software agents: units of work that are dispatched
// through a queue, tracked by an Activity, and produce provenance-tagged
// entities.
package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
)

// Dispatch and run errors.
var (
	ErrUnknownAgent        = errors.New("unknown agent")
	ErrUnexpectedArguments = errors.New("unexpected arguments")
	ErrOptionsNotMapping   = errors.New("options must be a mapping")
	ErrNothingSaved        = errors.New("no entities saved")
)

// SoftwareAgent is a task the worker can run against an activity.
type SoftwareAgent interface {
	AgentName() string
	QueueName() string
	EntityBehavior() activity.EntityBehavior

	// Run does the agent's work. Entities it saves carry activityID as
	// their provenance; an empty activityID records none.
	Run(ctx context.Context, activityID string) error
}

// Base supplies the naming defaults shared by every agent.
type Base struct {
	Name     string
	Queue    string
	Behavior activity.EntityBehavior
}

// NewBase names an agent after the concrete type of self.
func NewBase(self any) Base {
	return Base{Name: TypeName(self)}
}

// AgentName implements SoftwareAgent.
func (b Base) AgentName() string {
	return b.Name
}

// QueueName returns the configured queue, or the lower-cased agent name.
func (b Base) QueueName() string {
	if b.Queue != "" {
		return b.Queue
	}
	return DefaultQueue(b.Name)
}

// EntityBehavior returns the configured behavior, or the aggregation
// behavior.
func (b Base) EntityBehavior() activity.EntityBehavior {
	if b.Behavior == nil {
		return activity.AggregationEntityBehavior{}
	}
	return b.Behavior
}

// TypeName returns the name of v's type, looking through pointers.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// DefaultQueue derives a queue name from an agent name.
func DefaultQueue(agentName string) string {
	return strings.ToLower(agentName)
}

// OriginalSaver persists harvested records.
type OriginalSaver interface {
	SaveOriginal(ctx context.Context, rec *record.OriginalRecord) error
}

// AggregationSaver persists enriched records.
type AggregationSaver interface {
	SaveAggregation(ctx context.Context, agg *record.Aggregation) error
}

// FailureRecorder attaches skipped items to an activity.
type FailureRecorder interface {
	RecordFailures(ctx context.Context, id string, failures []activity.ItemFailure) error
}
