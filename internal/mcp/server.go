package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/harvest/oai"
)

// Dispatcher defines the dispatch operation needed by MCP.
type Dispatcher interface {
	Dispatch(ctx context.Context, agentName, queueName string, opts map[string]any) (*activity.Activity, error)
}

// AgentCatalog lists dispatchable agents.
type AgentCatalog interface {
	Definitions() []agent.Definition
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	Get(ctx context.Context, id string) (*activity.Activity, error)
	List(ctx context.Context, opts activity.ListOptions) ([]activity.Activity, error)
	Count(ctx context.Context, opts activity.ListOptions) (int, error)
	Entities(ctx context.Context, id string, behavior activity.EntityBehavior, opts activity.EntityOptions) (harvest.Iterator[record.Entity], error)
}

// Services contains all services needed by MCP.
type Services struct {
	Dispatcher Dispatcher
	Agents     AgentCatalog
	Activities ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Harvest       oai.ClientConfig
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// Server exposes krikri's dispatch and provenance operations as MCP tools.
type Server struct {
	server     *sdkmcp.Server
	dispatcher Dispatcher
	agents     AgentCatalog
	activities ActivityService
	harvest    oai.ClientConfig
	logger     *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "krikri",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(sessionMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	s := &Server{
		server:     server,
		dispatcher: cfg.Services.Dispatcher,
		agents:     cfg.Services.Agents,
		activities: cfg.Services.Activities,
		harvest:    cfg.Harvest,
		logger:     logger,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server for attaching a transport.
func (s *Server) MCP() *sdkmcp.Server {
	return s.server
}
