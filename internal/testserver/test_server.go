// Package testserver runs a complete krikri stack in-process for end to end
// tests: an in-memory store, a miniredis queue, the MCP server over HTTP and
// a worker that can be stepped one job at a time.
package testserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/enrich"
	"github.com/jlicht/krikri/internal/mcp"
	"github.com/jlicht/krikri/internal/queue"
	"github.com/jlicht/krikri/internal/sqlite"
)

type TestServer struct {
	Server     *httptest.Server
	DB         *sqlite.DB
	Redis      *miniredis.Miniredis
	Queue      *queue.RedisQueue
	Records    *record.Service
	Activities *activity.Service
	Registry   *agent.Registry
	Worker     *agent.Worker
}

func New(t *testing.T) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	mr := miniredis.RunT(t)
	q, err := queue.NewRedisQueue(queue.RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)

	entities := sqlite.NewEntityRepository(db)
	records := record.NewService(entities, nil)
	activities := activity.NewService(sqlite.NewActivityRepository(db), entities, nil)
	registry := agent.StandardRegistry(agent.Deps{
		Records:    records,
		Activities: activities,
		Policy:     enrich.PolicyKeep,
	})

	server := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Dispatcher: agent.NewDispatcher(registry, activities, q, nil),
			Agents:     registry,
			Activities: activities,
		},
		TransportMode: "http",
	})
	httpServer := httptest.NewServer(server.HTTPHandler())

	job := agent.NewJob(activities, registry, nil)
	ts := &TestServer{
		Server:     httpServer,
		DB:         db,
		Redis:      mr,
		Queue:      q,
		Records:    records,
		Activities: activities,
		Registry:   registry,
		Worker:     agent.NewWorker(q, job, registry.Queues(), time.Second, nil),
	}

	t.Cleanup(func() {
		httpServer.Close()
		_ = q.Close()
		_ = db.Close()
	})
	return ts
}

// RunNext has the worker run exactly one queued job.
func (ts *TestServer) RunNext(t *testing.T) {
	t.Helper()
	ran, err := ts.Worker.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, ran, "no job was queued")
}

// Connect opens an MCP client session against the HTTP endpoint.
func (ts *TestServer) Connect(t *testing.T) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: ts.Server.URL + "/mcp"}, nil)
	if err != nil {
		cancel()
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
	})
	return &Session{session: session}
}

// Session wraps an MCP client session.
type Session struct {
	session *sdkmcp.ClientSession
}

// CallTool calls a tool that must succeed and decodes its JSON output into
// out.
func (s *Session) CallTool(t *testing.T, name string, args map[string]any, out any) {
	t.Helper()
	text, isError := s.call(t, name, args)
	require.False(t, isError, "Tool %s returned error: %s", name, text)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(text), out))
	}
}

// CallToolError calls a tool that must fail and returns the error text.
func (s *Session) CallToolError(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	text, isError := s.call(t, name, args)
	require.True(t, isError, "Tool %s unexpectedly succeeded: %s", name, text)
	return text
}

func (s *Session) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content, "Tool %s returned no content", name)

	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			return textContent.Text, result.IsError
		}
	}
	t.Fatalf("Tool %s returned no text content", name)
	return "", false
}
