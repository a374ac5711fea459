package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"dbxmcp/pkg/logging"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools declares the metadata tools and their handlers.
func (s *Server) registerTools() {
	getSchemasTool := mcp.NewTool("get_schemas",
		mcp.WithDescription("List all schemas of a catalog together with their table names"),
		mcp.WithString("catalog",
			mcp.Required(),
			mcp.Description("Catalog name"),
		),
	)
	s.mcpServer.AddTool(getSchemasTool, s.handleGetSchemas)

	getSchemaMetadataTool := mcp.NewTool("get_schema_metadata",
		mcp.WithDescription("Describe a schema: its comment plus per-table comment, creation time, type and owner"),
		mcp.WithString("catalog",
			mcp.Required(),
			mcp.Description("Catalog name"),
		),
		mcp.WithString("schema_name",
			mcp.Required(),
			mcp.Description("Schema name"),
		),
	)
	s.mcpServer.AddTool(getSchemaMetadataTool, s.handleGetSchemaMetadata)

	getTableSampleTool := mcp.NewTool("get_table_sample",
		mcp.WithDescription("Return a small sample of table rows keyed by column name, plus the column types"),
		mcp.WithString("catalog",
			mcp.Required(),
			mcp.Description("Catalog name"),
		),
		mcp.WithString("schema_name",
			mcp.Required(),
			mcp.Description("Schema name"),
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name"),
		),
	)
	s.mcpServer.AddTool(getTableSampleTool, s.handleGetTableSample)

	listJobRunsTool := mcp.NewTool("list_job_runs",
		mcp.WithDescription("List recent job runs of the workspace with their result states"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default 25)"),
		),
	)
	s.mcpServer.AddTool(listJobRunsTool, s.handleListJobRuns)
}

func (s *Server) handleGetSchemas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, err := request.RequireString("catalog")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	requestID := newRequestID()
	logging.Info(serverSubsystem, "get_schemas request=%s catalog=%s", requestID, catalog)

	schemas, err := s.service.ListSchemas(ctx, catalog)
	if err != nil {
		return toolError(requestID, "get_schemas", err), nil
	}

	return toolResult(requestID, "get_schemas", schemas)
}

func (s *Server) handleGetSchemaMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, err := request.RequireString("catalog")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := request.RequireString("schema_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	requestID := newRequestID()
	logging.Info(serverSubsystem, "get_schema_metadata request=%s schema=%s.%s", requestID, catalog, schema)

	result, err := s.service.SchemaMetadata(ctx, catalog, schema)
	if err != nil {
		return toolError(requestID, "get_schema_metadata", err), nil
	}

	return toolResult(requestID, "get_schema_metadata", result)
}

func (s *Server) handleGetTableSample(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, err := request.RequireString("catalog")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := request.RequireString("schema_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	table, err := request.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	requestID := newRequestID()
	logging.Info(serverSubsystem, "get_table_sample request=%s table=%s.%s.%s", requestID, catalog, schema, table)

	sample, err := s.service.TableSample(ctx, catalog, schema, table)
	if err != nil {
		return toolError(requestID, "get_table_sample", err), nil
	}

	return toolResult(requestID, "get_table_sample", sample)
}

func (s *Server) handleListJobRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 0)

	requestID := newRequestID()
	logging.Info(serverSubsystem, "list_job_runs request=%s limit=%d", requestID, limit)

	runs, err := s.service.ListJobRuns(ctx, limit)
	if err != nil {
		return toolError(requestID, "list_job_runs", err), nil
	}

	return toolResult(requestID, "list_job_runs", runs)
}

// newRequestID tags one tool invocation for log correlation.
func newRequestID() string {
	return uuid.NewString()[:8]
}

// toolResult marshals a successful operation result to JSON text.
func toolResult(requestID, tool string, payload interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logging.Error(serverSubsystem, err, "%s request=%s failed to serialize result", tool, requestID)
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize %s result", tool)), nil
	}

	logging.Debug(serverSubsystem, "%s request=%s succeeded", tool, requestID)
	return mcp.NewToolResultText(string(data)), nil
}

// toolError converts an operation failure into a tool error result. The
// error chain carries profile and operation context but never the token
// value, so the message is safe to return to the client.
func toolError(requestID, tool string, err error) *mcp.CallToolResult {
	logging.Error(serverSubsystem, err, "%s request=%s failed", tool, requestID)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}
