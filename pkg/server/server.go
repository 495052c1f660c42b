// Package server exposes the trip engine over MCP (stdio or HTTP+SSE) and a
// REST host API.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/tools"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
	"github.com/NERVsystems/tripcarbon/pkg/version"
)

// ServerName is the name advertised to MCP clients.
const ServerName = "tripcarbon"

// Server is the MCP server carrying the trip tools and prompts.
type Server struct {
	srv      *mcpserver.MCPServer
	engine   *trip.Engine
	health   *monitoring.HealthChecker
	logger   *slog.Logger
	sessions atomic.Int64
	stdio    atomic.Bool
}

// NewServer creates an MCP server with every trip tool and prompt
// registered. A nil engine serves the curated catalog without a provider;
// health may be nil.
func NewServer(engine *trip.Engine, health *monitoring.HealthChecker, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = trip.New(nil, trip.WithLogger(logger))
	}
	logger.Info("initializing trip MCP server",
		"name", ServerName,
		"version", version.BuildVersion,
		"locations", engine.Catalog().Len(),
		"provider", engine.Resolver().HasProvider())

	s := &Server{
		engine: engine,
		health: health,
		logger: logger,
	}

	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(context.Context, mcpserver.ClientSession) {
		s.trackSession(1)
	})
	hooks.AddOnUnregisterSession(func(context.Context, mcpserver.ClientSession) {
		s.trackSession(-1)
	})
	hooks.AddOnError(func(_ context.Context, _ any, method mcp.MCPMethod, _ any, err error) {
		logger.Debug("mcp request failed", "method", method, "error", err)
	})

	s.srv = mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithHooks(hooks),
	)

	tools.NewRegistry(logger, engine, health).RegisterAll(s.srv)

	return s, nil
}

func (s *Server) trackSession(delta int64) {
	n := int(s.sessions.Add(delta))
	monitoring.UpdateActiveConnections("http", "sse", n)
	if s.health != nil {
		s.health.SetActiveSessions(n)
	}
}

// ActiveSessions returns the number of registered SSE sessions.
func (s *Server) ActiveSessions() int {
	return int(s.sessions.Load())
}

// Engine returns the trip engine behind the tools.
func (s *Server) Engine() *trip.Engine {
	return s.engine
}

// ServeStdio speaks MCP over the process's stdin and stdout until ctx is
// done or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if !s.stdio.CompareAndSwap(false, true) {
		return errors.New("stdio transport already running")
	}
	defer s.stdio.Store(false)

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Debug("stdio transport listening")
	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// GetMCPServer returns the underlying MCP server for the HTTP transport.
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}
