// Package mcpserver maps MCP tool calls onto the metadata service. It
// is a dispatch shim: argument validation, JSON shaping and error
// conversion live here, all workspace logic lives below it.
package mcpserver
