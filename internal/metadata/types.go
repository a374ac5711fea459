package metadata

import "time"

// SchemaInfo lists the tables of one schema.
type SchemaInfo struct {
	Catalog string   `json:"catalog"`
	Schema  string   `json:"schema"`
	Tables  []string `json:"tables"`
}

// TableSummary is the per-table slice of a schema's metadata.
type TableSummary struct {
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	TableType string `json:"table_type,omitempty"`
	Owner     string `json:"owner,omitempty"`
}

// SchemaMetadata describes one schema and its tables.
type SchemaMetadata struct {
	Catalog string                  `json:"catalog"`
	Schema  string                  `json:"schema"`
	Comment string                  `json:"schema_comment,omitempty"`
	Tables  map[string]TableSummary `json:"tables"`
}

// Column is one column of a statement result.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// TableSample is a small slice of table data keyed by column name.
type TableSample struct {
	Catalog  string              `json:"catalog"`
	Schema   string              `json:"schema"`
	Table    string              `json:"table"`
	Columns  []Column            `json:"columns"`
	Rows     []map[string]string `json:"rows"`
	RowCount int                 `json:"row_count"`
}

// JobRun is one recent job run result.
type JobRun struct {
	JobID          int64  `json:"job_id"`
	RunID          int64  `json:"run_id"`
	RunName        string `json:"run_name,omitempty"`
	LifeCycleState string `json:"life_cycle_state,omitempty"`
	ResultState    string `json:"result_state,omitempty"`
	StateMessage   string `json:"state_message,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
	EndTime        string `json:"end_time,omitempty"`
	RunPageURL     string `json:"run_page_url,omitempty"`
}

// Warehouse identifies a SQL warehouse available in the workspace.
type Warehouse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// UserInfo is the authenticated principal, used for status reporting and
// the startup connection check.
type UserInfo struct {
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name,omitempty"`
	Active      bool   `json:"active"`
}

// formatMillis renders a Databricks epoch-millisecond timestamp, leaving
// zero values empty.
func formatMillis(millis int64) string {
	if millis == 0 {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}
