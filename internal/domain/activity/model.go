package activity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the recorded outcome of an activity.
type Status string

const (
	StatusUnset     Status = ""
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Phase is the lifecycle position derived from an activity's timestamps and
// status.
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Activity is one run of a software agent, recorded for provenance.
type Activity struct {
	ID        string          `json:"id"`
	Agent     string          `json:"agent"`
	Opts      json.RawMessage `json:"opts"`
	Queue     string          `json:"queue,omitempty"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Status    Status          `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
	Failures  []ItemFailure   `json:"failures,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ItemFailure records an entity an agent skipped or could not fully process
// without failing the whole run.
type ItemFailure struct {
	EntityID string `json:"entity_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
	Message  string `json:"message"`
}

// Phase returns where the activity is in its lifecycle.
func (a *Activity) Phase() Phase {
	switch {
	case a.Status == StatusSucceeded:
		return PhaseSucceeded
	case a.Status == StatusFailed:
		return PhaseFailed
	case a.StartTime != nil:
		return PhaseRunning
	default:
		return PhaseCreated
	}
}

// Ended reports whether the activity has finished, successfully or not.
func (a *Activity) Ended() bool {
	return a.EndTime != nil
}

// Succeeded reports whether the activity finished successfully.
func (a *Activity) Succeeded() bool {
	return a.Status == StatusSucceeded
}

// Duration returns the run time of an ended activity.
func (a *Activity) Duration() time.Duration {
	if a.StartTime == nil || a.EndTime == nil {
		return 0
	}
	return a.EndTime.Sub(*a.StartTime)
}

// Options decodes the options the agent is instantiated with.
func (a *Activity) Options() (map[string]any, error) {
	opts := map[string]any{}
	if len(a.Opts) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(a.Opts, &opts); err != nil {
		return nil, fmt.Errorf("decoding activity options: %w", err)
	}
	return opts, nil
}

// ListOptions provides filtering options for listing activities.
type ListOptions struct {
	Agent  string
	Phase  Phase
	Limit  int
	Offset int
}
