package agent_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/queue"
	"github.com/jlicht/krikri/internal/sqlite"
)

const listRecordsResponse = `<?xml version="1.0"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
<responseDate>2015-01-01T00:00:00Z</responseDate>
<ListRecords>
<record><header><identifier>oai:test:1</identifier><datestamp>2015-01-01</datestamp><setSpec>dag</setSpec></header>
<metadata><oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>First</dc:title><dc:date>March 3 1975</dc:date></oai_dc:dc></metadata></record>
<record><header><identifier>oai:test:2</identifier><datestamp>2015-01-01</datestamp><setSpec>dag</setSpec></header>
<metadata><oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Second</dc:title><dc:date>undated</dc:date></oai_dc:dc></metadata></record>
<resumptionToken/>
</ListRecords>
</OAI-PMH>`

// testEnv is the full pipeline over in-memory SQLite and miniredis.
type testEnv struct {
	db         *sqlite.DB
	entities   *sqlite.EntityRepository
	records    *record.Service
	activities *activity.Service
	queue      *queue.RedisQueue
	redis      *miniredis.Miniredis
	registry   *agent.Registry
	dispatcher *agent.Dispatcher
	job        *agent.Job
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	q, err := queue.NewRedisQueue(queue.RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	entities := sqlite.NewEntityRepository(db)
	env := &testEnv{
		db:         db,
		entities:   entities,
		records:    record.NewService(entities, nil),
		activities: activity.NewService(sqlite.NewActivityRepository(db), entities, nil),
		queue:      q,
		redis:      mr,
	}
	env.registry = agent.StandardRegistry(agent.Deps{Records: env.records, Activities: env.activities})
	env.dispatcher = agent.NewDispatcher(env.registry, env.activities, q, nil)
	env.job = agent.NewJob(env.activities, env.registry, nil)
	return env
}

func (e *testEnv) worker(queues ...string) *agent.Worker {
	return agent.NewWorker(e.queue, e.job, queues, time.Second, nil)
}

func (e *testEnv) activityCount(t *testing.T) int {
	t.Helper()
	n, err := e.activities.Count(context.Background(), activity.ListOptions{})
	require.NoError(t, err)
	return n
}

func (e *testEnv) queueSize(t *testing.T, name string) int64 {
	t.Helper()
	n, err := e.queue.Size(context.Background(), name)
	require.NoError(t, err)
	return n
}

func oaiServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, listRecordsResponse)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBase_Defaults(t *testing.T) {
	h := agent.NewHarvestAgent(nil, nil, nil, nil)
	assert.Equal(t, "HarvestAgent", h.AgentName())
	assert.Equal(t, "harvestagent", h.QueueName())
	assert.Equal(t, "original_record", h.EntityBehavior().Name())

	e := agent.NewEnrichmentAgent(agent.EnrichmentConfig{}, nil, nil, nil, nil, nil)
	assert.Equal(t, "EnrichmentAgent", e.AgentName())
	assert.Equal(t, "aggregation", e.EntityBehavior().Name())

	e.Queue = "priority"
	assert.Equal(t, "priority", e.QueueName())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "HarvestAgent", agent.TypeName((*agent.HarvestAgent)(nil)))
	assert.Equal(t, "Registry", agent.TypeName(agent.Registry{}))
	assert.Equal(t, "", agent.TypeName(nil))
}

func TestRegistry_LookupByAlias(t *testing.T) {
	r := agent.StandardRegistry(agent.Deps{})

	def, ok := r.Lookup("harvest")
	require.True(t, ok)
	assert.Equal(t, "HarvestAgent", def.Name)

	def, ok = r.Lookup("enrichmentagent")
	require.True(t, ok)
	assert.Equal(t, "EnrichmentAgent", def.Name)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)

	err := r.Register(agent.Definition{
		Name:    "Other",
		Aliases: []string{"HARVEST"},
		Factory: func(harvest.Options) (agent.SoftwareAgent, error) { return nil, nil },
	})
	require.Error(t, err)

	assert.Equal(t, []string{"enrichmentagent", "harvestagent"}, r.Queues())
}
