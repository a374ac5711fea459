// Package metadata implements the workspace metadata operations behind
// the MCP tools: schema and table listings via the catalog's
// information_schema, table samples via the SQL warehouse, and job run
// results via the Jobs API.
package metadata
