package testserver_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlicht/krikri/internal/testserver"
)

const listRecordsResponse = `<?xml version="1.0"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
<responseDate>2015-01-01T00:00:00Z</responseDate>
<ListRecords>
<record><header><identifier>oai:test:1</identifier><datestamp>2015-01-01</datestamp></header>
<metadata><oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>First</dc:title><dc:date>March 3 1975</dc:date></oai_dc:dc></metadata></record>
</ListRecords>
</OAI-PMH>`

func oaiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, listRecordsResponse)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type activityView struct {
	ID       string `json:"id"`
	Agent    string `json:"agent"`
	Phase    string `json:"phase"`
	Error    string `json:"error"`
	Duration string `json:"duration"`
}

type entitiesView struct {
	Entities []struct {
		ID          string         `json:"id"`
		Kind        string         `json:"kind"`
		SourceID    string         `json:"source_id"`
		DerivedFrom string         `json:"derived_from"`
		Record      map[string]any `json:"record"`
	} `json:"entities"`
	Truncated bool `json:"truncated"`
}

func TestFunctional_HarvestThenEnrich(t *testing.T) {
	ts := testserver.New(t)
	s := ts.Connect(t)
	oai := oaiServer(t)

	var harvest struct {
		ActivityID string `json:"activity_id"`
		Queue      string `json:"queue"`
	}
	s.CallTool(t, "enqueue_agent", map[string]any{
		"agent":   "harvest",
		"options": map[string]any{"uri": oai.URL, "metadata_prefix": "oai_dc"},
	}, &harvest)
	require.NotEmpty(t, harvest.ActivityID)
	assert.Equal(t, "harvestagent", harvest.Queue)

	var created activityView
	s.CallTool(t, "get_activity", map[string]any{"id": harvest.ActivityID}, &created)
	assert.Equal(t, "created", created.Phase)

	ts.RunNext(t)

	var done activityView
	s.CallTool(t, "get_activity", map[string]any{"id": harvest.ActivityID}, &done)
	require.Equal(t, "succeeded", done.Phase, done.Error)
	assert.NotEmpty(t, done.Duration)

	var originals entitiesView
	s.CallTool(t, "list_activity_entities", map[string]any{
		"activity_id": harvest.ActivityID,
		"behavior":    "original_record",
	}, &originals)
	require.Len(t, originals.Entities, 1)
	assert.Equal(t, "oai:test:1", originals.Entities[0].SourceID)
	assert.Contains(t, originals.Entities[0].Record, "date")

	var enrichment struct {
		ActivityID string `json:"activity_id"`
	}
	s.CallTool(t, "enqueue_agent", map[string]any{
		"agent":   "enrich",
		"options": map[string]any{"source_activity": harvest.ActivityID, "chains": []any{"date"}},
	}, &enrichment)
	ts.RunNext(t)

	var aggs entitiesView
	s.CallTool(t, "list_activity_entities", map[string]any{"activity_id": enrichment.ActivityID}, &aggs)
	require.Len(t, aggs.Entities, 1)
	assert.Equal(t, "aggregation", aggs.Entities[0].Kind)
	assert.Equal(t, originals.Entities[0].ID, aggs.Entities[0].DerivedFrom)

	var list struct {
		Activities []activityView `json:"activities"`
		Total      int            `json:"total"`
	}
	s.CallTool(t, "list_activities", map[string]any{"phase": "succeeded"}, &list)
	assert.Equal(t, 2, list.Total)
}

func TestFunctional_InvalidOptionsCreateNothing(t *testing.T) {
	ts := testserver.New(t)
	s := ts.Connect(t)

	msg := s.CallToolError(t, "enqueue_agent", map[string]any{
		"agent":   "harvest",
		"options": map[string]any{"uri": "http://example.org/oai"},
	})
	assert.Contains(t, msg, "INVALID_OPTIONS")

	var list struct {
		Total int `json:"total"`
	}
	s.CallTool(t, "list_activities", map[string]any{}, &list)
	assert.Zero(t, list.Total)
	assert.False(t, ts.Redis.Exists("krikri:queue:harvestagent"))
}

func TestFunctional_ListAgents(t *testing.T) {
	ts := testserver.New(t)
	s := ts.Connect(t)

	var out struct {
		Agents []struct {
			Name  string `json:"name"`
			Queue string `json:"queue"`
		} `json:"agents"`
	}
	s.CallTool(t, "list_agents", nil, &out)
	require.Len(t, out.Agents, 2)
	assert.Equal(t, "EnrichmentAgent", out.Agents[0].Name)
	assert.Equal(t, "harvestagent", out.Agents[1].Queue)
}

func TestFunctional_Health(t *testing.T) {
	ts := testserver.New(t)
	resp, err := http.Get(ts.Server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
