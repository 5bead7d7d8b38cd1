// Package server assembles the Teams MCP server: the OAuth2 engine, the
// Graph client, their MCP tools and the transport the tools are served on.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"teamsmcp/internal/authtools"
	"teamsmcp/internal/config"
	"teamsmcp/internal/oauth2"
	"teamsmcp/internal/teams"
	"teamsmcp/pkg/logging"
)

const serverName = "teams-mcp"

// Server hosts the MCP tools over the configured transport.
type Server struct {
	cfg     config.Config
	version string

	provider oauth2.Provider
	store    *oauth2.MemoryPendingStore
	flow     *oauth2.Flow

	server               *mcpserver.MCPServer
	sseServer            *mcpserver.SSEServer
	streamableHTTPServer *mcpserver.StreamableHTTPServer
	stdioServer          *mcpserver.StdioServer

	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// New builds a server from the validated configuration.
func New(cfg config.Config, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := oauth2.NewMicrosoftProvider(oauth2.Config{
		ClientID:     cfg.Azure.ClientID,
		ClientSecret: cfg.Azure.ClientSecret,
		RedirectURI:  cfg.Azure.RedirectURI,
		Scopes:       cfg.Azure.Scopes,
	}, cfg.Azure.TenantID)

	store := oauth2.NewMemoryPendingStore()

	return &Server{
		cfg:      cfg,
		version:  version,
		provider: provider,
		store:    store,
		flow:     oauth2.NewFlow(provider, store),
	}, nil
}

// Flow exposes the OAuth2 flow, mainly for the login command.
func (s *Server) Flow() *oauth2.Flow {
	return s.flow
}

// Tools returns every tool the server registers.
func (s *Server) Tools() []mcpserver.ServerTool {
	tools := authtools.Tools(s.flow)
	tools = append(tools, teams.Tools(teams.NewClient())...)
	return tools
}

// Start registers the tools and serves them on the configured transport.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("server already started")
	}

	s.ctx, s.cancelFunc = context.WithCancel(ctx)

	mcpServer := mcpserver.NewMCPServer(
		serverName,
		s.version,
		mcpserver.WithToolCapabilities(true),
	)
	mcpServer.AddTools(s.Tools()...)
	s.server = mcpServer

	addr := s.cfg.Server.ListenAddr

	switch s.cfg.Server.Transport {
	case "sse":
		logging.Info("Server", "Starting MCP server with SSE transport on %s", addr)
		s.sseServer = mcpserver.NewSSEServer(
			s.server,
			mcpserver.WithBaseURL("http://"+addr),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
		)
		sseServer := s.sseServer
		go func() {
			if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Server", err, "SSE server error")
			}
		}()

	case "streamable-http":
		logging.Info("Server", "Starting MCP server with streamable-http transport on %s", addr)
		s.streamableHTTPServer = mcpserver.NewStreamableHTTPServer(s.server)
		streamableServer := s.streamableHTTPServer
		go func() {
			if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Server", err, "Streamable HTTP server error")
			}
		}()

	default:
		logging.Info("Server", "Starting MCP server with stdio transport")
		s.stdioServer = mcpserver.NewStdioServer(s.server)
		stdioServer := s.stdioServer
		serveCtx := s.ctx
		go func() {
			if err := stdioServer.Listen(serveCtx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Server", err, "Stdio server error")
			}
		}()
	}

	return nil
}

// Stop shuts down the transport and the pending-authorization store.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.server == nil {
		s.mu.Unlock()
		return fmt.Errorf("server not started")
	}

	logging.Info("Server", "Stopping MCP server")

	cancelFunc := s.cancelFunc
	sseServer := s.sseServer
	streamableServer := s.streamableHTTPServer
	s.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server", err, "Error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server", err, "Error shutting down streamable HTTP server")
		}
	}
	// Stdio server stops on context cancellation, no explicit shutdown needed.

	s.store.Stop()

	s.mu.Lock()
	s.server = nil
	s.sseServer = nil
	s.streamableHTTPServer = nil
	s.stdioServer = nil
	s.mu.Unlock()

	return nil
}
