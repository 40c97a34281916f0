package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/harvest/oai"
)

const (
	defaultEntityLimit  = 50
	maxEntityLimit      = 500
	defaultPreviewLimit = 10
	maxPreviewLimit     = 100
)

// registerTools registers all krikri MCP tools with the server.
func (s *Server) registerTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "enqueue_agent",
		Description: "Validate options, record an Activity and queue an agent run",
	}, s.handleEnqueueAgent)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "get_activity",
		Description: "Get an activity's lifecycle, options and recorded failures",
	}, s.handleGetActivity)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "list_activities",
		Description: "List activities, newest first, optionally filtered by agent and phase",
	}, s.handleListActivities)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "list_activity_entities",
		Description: "List the original records or aggregations an activity generated",
	}, s.handleListActivityEntities)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "list_agents",
		Description: "List dispatchable agents with their queues and accepted options",
	}, s.handleListAgents)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "harvest_preview",
		Description: "Fetch the first identifiers an OAI-PMH harvest would return, without storing anything",
	}, s.handleHarvestPreview)
}

func (s *Server) handleEnqueueAgent(ctx context.Context, _ *sdkmcp.CallToolRequest, in EnqueueAgentInput) (*sdkmcp.CallToolResult, EnqueueAgentOutput, error) {
	if in.Agent == "" {
		return nil, EnqueueAgentOutput{}, &APIError{Code: "INVALID_ARGUMENTS", Message: "agent is required", RecoveryHint: "Call list_agents"}
	}
	a, err := s.dispatcher.Dispatch(ctx, in.Agent, in.Queue, in.Options)
	if err != nil {
		return nil, EnqueueAgentOutput{}, toolError(err)
	}
	return nil, EnqueueAgentOutput{ActivityID: a.ID, Agent: a.Agent, Queue: a.Queue}, nil
}

func (s *Server) handleGetActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetActivityInput) (*sdkmcp.CallToolResult, ActivityView, error) {
	a, err := s.activities.Get(ctx, in.ID)
	if err != nil {
		return nil, ActivityView{}, toolError(err)
	}
	return nil, newActivityView(a), nil
}

func (s *Server) handleListActivities(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListActivitiesInput) (*sdkmcp.CallToolResult, ListActivitiesOutput, error) {
	phase := activity.Phase(in.Phase)
	switch phase {
	case "", activity.PhaseCreated, activity.PhaseRunning, activity.PhaseSucceeded, activity.PhaseFailed:
	default:
		return nil, ListActivitiesOutput{}, &APIError{Code: "INVALID_ARGUMENTS", Message: fmt.Sprintf("unknown phase %q", in.Phase)}
	}

	opts := activity.ListOptions{Agent: in.Agent, Phase: phase, Limit: in.Limit, Offset: in.Offset}
	list, err := s.activities.List(ctx, opts)
	if err != nil {
		return nil, ListActivitiesOutput{}, toolError(err)
	}
	total, err := s.activities.Count(ctx, activity.ListOptions{Agent: in.Agent, Phase: phase})
	if err != nil {
		return nil, ListActivitiesOutput{}, toolError(err)
	}

	out := ListActivitiesOutput{Activities: make([]ActivityView, 0, len(list)), Total: total}
	for i := range list {
		out.Activities = append(out.Activities, newActivityView(&list[i]))
	}
	return nil, out, nil
}

func (s *Server) handleListActivityEntities(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListActivityEntitiesInput) (*sdkmcp.CallToolResult, ListActivityEntitiesOutput, error) {
	behavior, ok := activity.BehaviorByName(in.Behavior)
	if !ok {
		return nil, ListActivityEntitiesOutput{}, &APIError{Code: "INVALID_ARGUMENTS", Message: fmt.Sprintf("unknown behavior %q", in.Behavior), RecoveryHint: "Use original_record or aggregation"}
	}
	limit := clamp(in.Limit, defaultEntityLimit, maxEntityLimit)

	it, err := s.activities.Entities(ctx, in.ActivityID, behavior, activity.EntityOptions{
		Load:               !in.IDsOnly,
		IncludeInvalidated: in.IncludeInvalidated,
	})
	if err != nil {
		return nil, ListActivityEntitiesOutput{}, toolError(err)
	}
	defer it.Close()

	entities, err := harvest.Take(it, limit+1)
	if err != nil {
		return nil, ListActivityEntitiesOutput{}, toolError(err)
	}

	out := ListActivityEntitiesOutput{Entities: make([]EntityView, 0, len(entities))}
	if len(entities) > limit {
		entities = entities[:limit]
		out.Truncated = true
	}
	for _, e := range entities {
		out.Entities = append(out.Entities, newEntityView(e))
	}
	return nil, out, nil
}

func (s *Server) handleListAgents(_ context.Context, _ *sdkmcp.CallToolRequest, _ ListAgentsInput) (*sdkmcp.CallToolResult, ListAgentsOutput, error) {
	defs := s.agents.Definitions()
	out := ListAgentsOutput{Agents: make([]AgentView, 0, len(defs))}
	for _, def := range defs {
		out.Agents = append(out.Agents, newAgentView(def))
	}
	return nil, out, nil
}

func (s *Server) handleHarvestPreview(ctx context.Context, _ *sdkmcp.CallToolRequest, in HarvestPreviewInput) (*sdkmcp.CallToolResult, HarvestPreviewOutput, error) {
	opts := harvest.Options{}
	if in.URI != "" {
		opts[harvest.OptURI] = in.URI
	}
	if in.MetadataPrefix != "" {
		opts[oai.OptMetadataPrefix] = in.MetadataPrefix
	}
	if len(in.Sets) > 0 {
		opts[oai.OptSet] = in.Sets
	}
	if in.From != "" {
		opts[oai.OptFrom] = in.From
	}
	if in.Until != "" {
		opts[oai.OptUntil] = in.Until
	}

	h, err := oai.NewHarvester(opts, s.harvest, s.logger)
	if err != nil {
		return nil, HarvestPreviewOutput{}, toolError(err)
	}
	it := h.RecordIDs(ctx, nil)
	defer it.Close()

	ids, err := harvest.Take(it, clamp(in.Limit, defaultPreviewLimit, maxPreviewLimit))
	if err != nil {
		return nil, HarvestPreviewOutput{}, toolError(err)
	}
	return nil, HarvestPreviewOutput{Identifiers: ids}, nil
}

func clamp(n, fallback, ceiling int) int {
	if n <= 0 {
		return fallback
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
