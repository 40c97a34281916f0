package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `krikri harvests metadata records, enriches them, and records the provenance of every run as an Activity.

Core concepts:
- Agent: a dispatchable unit of work (HarvestAgent, EnrichmentAgent). Each declares the options it accepts.
- Activity: one agent run. Phases: created -> running -> succeeded | failed.
- Original record: a harvested item with its verbatim payload, generated by a harvest activity.
- Aggregation: an enriched record derived from an original record, generated by an enrichment activity.

Default workflow:
1) list_agents to see agents, queues and options.
2) harvest_preview to check an OAI-PMH endpoint and set before harvesting.
3) enqueue_agent with agent "harvest" and options {uri, metadata_prefix, set}. Note the activity_id.
4) get_activity until the phase is succeeded or failed. A worker process must be running.
5) enqueue_agent with agent "enrich" and options {source_activity: <harvest activity_id>, chains, transforms}.
6) list_activity_entities to inspect what an activity generated.

Docs:
- krikri://docs/index
- krikri://docs/options
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "krikri://docs/index",
		Name:        "docs_index",
		Title:       "krikri docs index",
		Description: "Entry point: the pipeline, activity lifecycle, and which tool to use when.",
		Content: `# krikri

## Pipeline

1. ` + "`enqueue_agent`" + ` validates options against the agent's schema. Invalid options create nothing.
2. On success an Activity is recorded and its id is pushed to the agent's queue.
3. A worker (` + "`krikri work`" + `) pops the id, starts the Activity, runs the agent, and marks it succeeded or failed.
4. Every entity the agent saves carries the Activity id as ` + "`generated_by`" + `.

## Activities

- Phases: ` + "`created`" + `, ` + "`running`" + `, ` + "`succeeded`" + `, ` + "`failed`" + `.
- A failed activity carries an ` + "`error`" + `. Items skipped during a successful run are listed under ` + "`failures`" + `.
- Activities are never deleted by the pipeline.

## Entities

- ` + "`list_activity_entities`" + ` with behavior ` + "`original_record`" + ` lists what a harvest produced.
- The default behavior ` + "`aggregation`" + ` lists what an enrichment produced.
- Records a later harvest marked deleted are hidden unless ` + "`include_invalidated`" + ` is set.
- Results are capped by ` + "`limit`" + `; ` + "`truncated`" + ` reports that more exist.
`,
	},
	{
		URI:         "krikri://docs/options",
		Name:        "docs_options",
		Title:       "Agent options",
		Description: "Options accepted by the harvest and enrichment agents.",
		Content: `# Agent options

## HarvestAgent (alias: harvest)

- ` + "`uri`" + ` (required): OAI-PMH base URL.
- ` + "`name`" + `: provider name. Record ids are minted from the provider and the OAI identifier.
- ` + "`metadata_prefix`" + ` (required): e.g. ` + "`oai_dc`" + `.
- ` + "`set`" + `: one set spec or a list; lists are harvested one set at a time, in order.
- ` + "`from`" + ` / ` + "`until`" + `: datestamp bounds.

## EnrichmentAgent (alias: enrich)

- ` + "`source_activity`" + ` (required): the activity whose entities are enriched.
- ` + "`source_behavior`" + `: ` + "`original_record`" + ` (default) or ` + "`aggregation`" + `.
- ` + "`chains`" + `: dotted field paths such as ` + "`date`" + ` or ` + "`creator.name`" + `. Omit for every field.
- ` + "`transforms`" + `: applied in order. Available: ` + "`parse_date`" + ` (default), ` + "`strip_whitespace`" + `, ` + "`strip_punctuation`" + `, ` + "`split_semicolon`" + `.
- ` + "`policy`" + `: what happens when a transform fails on a value: ` + "`keep`" + `, ` + "`drop`" + `, or ` + "`record`" + `.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
