package mcp

import (
	"encoding/json"
	"time"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
)

// EnqueueAgentInput is the input of enqueue_agent.
type EnqueueAgentInput struct {
	Agent   string         `json:"agent" jsonschema:"agent name or alias, see list_agents"`
	Queue   string         `json:"queue,omitempty" jsonschema:"queue to submit to; defaults to the agent's queue"`
	Options map[string]any `json:"options,omitempty" jsonschema:"agent options, validated against the agent's schema"`
}

// EnqueueAgentOutput is the output of enqueue_agent.
type EnqueueAgentOutput struct {
	ActivityID string `json:"activity_id"`
	Agent      string `json:"agent"`
	Queue      string `json:"queue"`
}

// GetActivityInput is the input of get_activity.
type GetActivityInput struct {
	ID string `json:"id" jsonschema:"activity identifier"`
}

// ListActivitiesInput is the input of list_activities.
type ListActivitiesInput struct {
	Agent  string `json:"agent,omitempty" jsonschema:"only activities of this agent"`
	Phase  string `json:"phase,omitempty" jsonschema:"created, running, succeeded or failed"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
	Offset int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

// ListActivitiesOutput is the output of list_activities.
type ListActivitiesOutput struct {
	Activities []ActivityView `json:"activities"`
	Total      int            `json:"total"`
}

// ListActivityEntitiesInput is the input of list_activity_entities.
type ListActivityEntitiesInput struct {
	ActivityID         string `json:"activity_id" jsonschema:"activity that generated the entities"`
	Behavior           string `json:"behavior,omitempty" jsonschema:"original_record or aggregation (default)"`
	IncludeInvalidated bool   `json:"include_invalidated,omitempty" jsonschema:"include entities a later activity invalidated"`
	IDsOnly            bool   `json:"ids_only,omitempty" jsonschema:"return identifiers without loading records"`
	Limit              int    `json:"limit,omitempty" jsonschema:"maximum number of entities (default 50)"`
}

// ListActivityEntitiesOutput is the output of list_activity_entities.
type ListActivityEntitiesOutput struct {
	Entities  []EntityView `json:"entities"`
	Truncated bool         `json:"truncated"`
}

// ListAgentsInput is the input of list_agents.
type ListAgentsInput struct{}

// ListAgentsOutput is the output of list_agents.
type ListAgentsOutput struct {
	Agents []AgentView `json:"agents"`
}

// HarvestPreviewInput is the input of harvest_preview.
type HarvestPreviewInput struct {
	URI            string   `json:"uri" jsonschema:"OAI-PMH base URL"`
	MetadataPrefix string   `json:"metadata_prefix" jsonschema:"metadata format to request"`
	Sets           []string `json:"sets,omitempty" jsonschema:"set specs, harvested in order"`
	From           string   `json:"from,omitempty" jsonschema:"lower datestamp bound"`
	Until          string   `json:"until,omitempty" jsonschema:"upper datestamp bound"`
	Limit          int      `json:"limit,omitempty" jsonschema:"number of identifiers to fetch (default 10)"`
}

// HarvestPreviewOutput is the output of harvest_preview.
type HarvestPreviewOutput struct {
	Identifiers []string `json:"identifiers"`
}

// ActivityView is the MCP rendering of an activity.
type ActivityView struct {
	ID        string                 `json:"id"`
	Agent     string                 `json:"agent"`
	Queue     string                 `json:"queue,omitempty"`
	Phase     string                 `json:"phase"`
	Options   map[string]any         `json:"options,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Failures  []activity.ItemFailure `json:"failures,omitempty"`
	CreatedAt string                 `json:"created_at"`
	StartTime string                 `json:"start_time,omitempty"`
	EndTime   string                 `json:"end_time,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
}

func newActivityView(a *activity.Activity) ActivityView {
	opts, _ := a.Options()
	view := ActivityView{
		ID:        a.ID,
		Agent:     a.Agent,
		Queue:     a.Queue,
		Phase:     string(a.Phase()),
		Options:   opts,
		Error:     a.Error,
		Failures:  a.Failures,
		CreatedAt: a.CreatedAt.Format(time.RFC3339Nano),
		StartTime: formatTime(a.StartTime),
		EndTime:   formatTime(a.EndTime),
	}
	if a.Ended() {
		view.Duration = a.Duration().String()
	}
	return view
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// EntityView is the MCP rendering of an original record or aggregation.
type EntityView struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Provider    string         `json:"provider,omitempty"`
	SourceID    string         `json:"source_id,omitempty"`
	DerivedFrom string         `json:"derived_from,omitempty"`
	GeneratedBy string         `json:"generated_by,omitempty"`
	Invalidated bool           `json:"invalidated,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
}

func newEntityView(e record.Entity) EntityView {
	switch v := e.(type) {
	case *record.OriginalRecord:
		return EntityView{
			ID:          v.ID,
			Kind:        "original_record",
			Provider:    v.Provider,
			SourceID:    v.SourceID,
			GeneratedBy: v.GeneratedBy,
			Invalidated: v.IsInvalidated(),
			Record:      recordFields(v.Record),
		}
	case *record.Aggregation:
		return EntityView{
			ID:          v.ID,
			Kind:        "aggregation",
			Provider:    v.Provider,
			DerivedFrom: v.DerivedFrom,
			GeneratedBy: v.GeneratedBy,
			Invalidated: v.InvalidatedAt != nil,
			Record:      recordFields(v.Record),
		}
	default:
		return EntityView{ID: e.EntityID(), GeneratedBy: e.GeneratedByActivity()}
	}
}

// recordFields renders a record as plain JSON fields.
func recordFields(r *record.Record) map[string]any {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}

// AgentView describes a dispatchable agent.
type AgentView struct {
	Name        string       `json:"name"`
	Aliases     []string     `json:"aliases,omitempty"`
	Queue       string       `json:"queue"`
	Description string       `json:"description,omitempty"`
	Options     []OptionView `json:"options"`
}

// OptionView describes one accepted option.
type OptionView struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Multiple    bool   `json:"multiple,omitempty"`
	Description string `json:"description,omitempty"`
}

func newAgentView(def agent.Definition) AgentView {
	view := AgentView{
		Name:        def.Name,
		Aliases:     def.Aliases,
		Queue:       def.QueueName(),
		Description: def.Description,
		Options:     []OptionView{},
	}
	for _, key := range def.Schema.Keys() {
		spec := def.Schema[key]
		view.Options = append(view.Options, OptionView{
			Name:        key,
			Type:        string(spec.Type),
			Required:    spec.Required,
			Multiple:    spec.Multiple,
			Description: spec.Description,
		})
	}
	return view
}
