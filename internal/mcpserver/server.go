package mcpserver

import (
	"context"
	"fmt"
	"net/http"

	"dbxmcp/internal/config"
	"dbxmcp/internal/metadata"
	"dbxmcp/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

const serverSubsystem = "MCPServer"

const (
	serverName    = "dbxmcp"
	serverVersion = "1.0.0"
)

// MetadataService is the operation surface the tools dispatch to.
// Satisfied by *metadata.Service.
type MetadataService interface {
	ListSchemas(ctx context.Context, catalog string) ([]metadata.SchemaInfo, error)
	SchemaMetadata(ctx context.Context, catalog, schema string) (*metadata.SchemaMetadata, error)
	TableSample(ctx context.Context, catalog, schema, table string) (*metadata.TableSample, error)
	ListJobRuns(ctx context.Context, limit int) ([]metadata.JobRun, error)
}

// Server exposes the workspace metadata tools over an MCP transport.
type Server struct {
	service   MetadataService
	transport config.TransportConfig
	mcpServer *server.MCPServer
}

// New creates the MCP server and registers all tools.
func New(service MetadataService, transport config.TransportConfig) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		service:   service,
		transport: transport,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// Start serves the configured transport. For stdio it blocks until the
// client closes the stream; for streamable-http until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	switch s.transport.Mode {
	case config.TransportStdio:
		logging.Info(serverSubsystem, "Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)

	case config.TransportStreamableHTTP:
		addr := fmt.Sprintf("%s:%d", s.transport.Host, s.transport.Port)
		logging.Info(serverSubsystem, "Starting MCP server with streamable-http transport on %s", addr)
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)

		errCh := make(chan error, 1)
		go func() {
			if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			logging.Info(serverSubsystem, "Shutting down MCP server")
			return httpServer.Shutdown(context.Background())
		case err := <-errCh:
			return fmt.Errorf("streamable-http server error: %w", err)
		}

	default:
		return fmt.Errorf("unknown transport mode %q", s.transport.Mode)
	}
}
