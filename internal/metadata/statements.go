package metadata

import (
	"context"
	"fmt"
	"regexp"

	"dbxmcp/pkg/logging"

	"github.com/databricks/databricks-sdk-go/service/sql"
)

// statementWaitTimeout is the server-side wait for statement results.
// The statement execution API caps this at 50s.
const statementWaitTimeout = "30s"

// identifierPattern is the set of identifiers accepted into generated
// SQL. Anything else is rejected before a statement is built, so raw
// tool arguments can never smuggle SQL into the warehouse.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateIdentifier(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	if !identifierPattern.MatchString(value) {
		return fmt.Errorf("invalid %s name %q", field, value)
	}
	return nil
}

func quoteIdentifier(value string) string {
	return "`" + value + "`"
}

// executeStatement runs one SQL statement on the configured warehouse
// and returns the normalized columns and rows. Non-successful terminal
// states surface the service error message.
func (s *Service) executeStatement(ctx context.Context, stmt string) ([]Column, [][]string, error) {
	handle, err := s.clients.GetClient(ctx, s.profile)
	if err != nil {
		return nil, nil, err
	}

	logging.Debug(metadataSubsystem, "Executing statement on warehouse=%s: %s", s.warehouseID, stmt)

	resp, err := handle.Workspace.StatementExecution.ExecuteStatement(ctx, sql.ExecuteStatementRequest{
		WarehouseId:   s.warehouseID,
		Statement:     stmt,
		WaitTimeout:   statementWaitTimeout,
		OnWaitTimeout: sql.ExecuteStatementRequestOnWaitTimeoutCancel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("statement execution failed: %w", err)
	}

	if resp.Status == nil {
		return nil, nil, fmt.Errorf("statement %s returned no status", resp.StatementId)
	}
	if resp.Status.State != sql.StatementStateSucceeded {
		msg := string(resp.Status.State)
		if resp.Status.Error != nil && resp.Status.Error.Message != "" {
			msg = resp.Status.Error.Message
		}
		return nil, nil, fmt.Errorf("statement %s did not succeed: %s", resp.StatementId, msg)
	}

	var columns []Column
	if resp.Manifest != nil && resp.Manifest.Schema != nil {
		columns = make([]Column, 0, len(resp.Manifest.Schema.Columns))
		for _, col := range resp.Manifest.Schema.Columns {
			columns = append(columns, Column{Name: col.Name, Type: col.TypeText})
		}
	}

	var rows [][]string
	if resp.Result != nil {
		rows = resp.Result.DataArray
	}

	return columns, rows, nil
}

// rowsToMaps keys each row by column name. Rows shorter than the column
// list are padded with empty strings rather than dropped.
func rowsToMaps(columns []Column, rows [][]string) []map[string]string {
	result := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		entry := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(row) {
				entry[col.Name] = row[i]
			} else {
				entry[col.Name] = ""
			}
		}
		result = append(result, entry)
	}
	return result
}

// groupTablesBySchema folds information_schema rows (catalog, schema,
// table) into per-schema table lists, preserving the query's ordering.
func groupTablesBySchema(columns []Column, rows [][]string) ([]SchemaInfo, error) {
	if len(columns) < 3 {
		return nil, fmt.Errorf("expected 3 columns (catalog, schema, table), got %d", len(columns))
	}

	var schemas []SchemaInfo
	index := make(map[string]int)

	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		catalogName, schemaName, tableName := row[0], row[1], row[2]
		key := catalogName + "." + schemaName

		i, ok := index[key]
		if !ok {
			i = len(schemas)
			index[key] = i
			schemas = append(schemas, SchemaInfo{Catalog: catalogName, Schema: schemaName})
		}
		schemas[i].Tables = append(schemas[i].Tables, tableName)
	}

	return schemas, nil
}
