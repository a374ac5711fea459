package metadata

import (
	"context"
	"fmt"
	"sort"

	"dbxmcp/internal/workspace"
	"dbxmcp/pkg/logging"

	"github.com/databricks/databricks-sdk-go/service/catalog"
	"github.com/databricks/databricks-sdk-go/service/jobs"
	"github.com/databricks/databricks-sdk-go/service/sql"
)

const metadataSubsystem = "Metadata"

// defaultJobRunLimit bounds list_job_runs when the caller does not pass
// an explicit limit.
const defaultJobRunLimit = 25

// ClientProvider abstracts the client manager. Satisfied by
// *workspace.Manager.
type ClientProvider interface {
	GetClient(ctx context.Context, profile string) (*workspace.Handle, error)
}

// Service implements the workspace metadata operations exposed as MCP
// tools. It holds no credential state of its own; every call obtains a
// ready client from the provider.
type Service struct {
	clients     ClientProvider
	profile     string
	warehouseID string
	sampleSize  int
}

// NewService creates a metadata service bound to one profile and SQL
// warehouse.
func NewService(clients ClientProvider, profile, warehouseID string, sampleSize int) *Service {
	return &Service{
		clients:     clients,
		profile:     profile,
		warehouseID: warehouseID,
		sampleSize:  sampleSize,
	}
}

// ListSchemas returns every schema of the catalog together with its
// table names, grouped from the catalog's information_schema.
func (s *Service) ListSchemas(ctx context.Context, catalogName string) ([]SchemaInfo, error) {
	if err := validateIdentifier("catalog", catalogName); err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf(
		"SELECT table_catalog, table_schema, table_name FROM %s.information_schema.tables ORDER BY table_schema, table_name",
		quoteIdentifier(catalogName),
	)

	columns, rows, err := s.executeStatement(ctx, stmt)
	if err != nil {
		return nil, err
	}

	schemas, err := groupTablesBySchema(columns, rows)
	if err != nil {
		return nil, err
	}

	logging.Info(metadataSubsystem, "Found %d schemas in catalog=%s", len(schemas), catalogName)
	return schemas, nil
}

// SchemaMetadata returns the schema comment plus a per-table summary,
// read from the Unity Catalog APIs.
func (s *Service) SchemaMetadata(ctx context.Context, catalogName, schemaName string) (*SchemaMetadata, error) {
	if err := validateIdentifier("catalog", catalogName); err != nil {
		return nil, err
	}
	if err := validateIdentifier("schema", schemaName); err != nil {
		return nil, err
	}

	handle, err := s.clients.GetClient(ctx, s.profile)
	if err != nil {
		return nil, err
	}

	schema, err := handle.Workspace.Schemas.Get(ctx, catalog.GetSchemaRequest{
		FullName: catalogName + "." + schemaName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s.%s: %w", catalogName, schemaName, err)
	}

	tables, err := handle.Workspace.Tables.ListAll(ctx, catalog.ListTablesRequest{
		CatalogName: catalogName,
		SchemaName:  schemaName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s.%s: %w", catalogName, schemaName, err)
	}

	result := &SchemaMetadata{
		Catalog: catalogName,
		Schema:  schemaName,
		Comment: schema.Comment,
		Tables:  make(map[string]TableSummary, len(tables)),
	}
	for _, table := range tables {
		result.Tables[table.Name] = TableSummary{
			Comment:   table.Comment,
			CreatedAt: formatMillis(table.CreatedAt),
			TableType: string(table.TableType),
			Owner:     table.Owner,
		}
	}

	logging.Info(metadataSubsystem, "Collected metadata for %d tables in %s.%s", len(result.Tables), catalogName, schemaName)
	return result, nil
}

// TableSample returns up to sampleSize rows of the table, keyed by
// column name.
func (s *Service) TableSample(ctx context.Context, catalogName, schemaName, tableName string) (*TableSample, error) {
	for field, value := range map[string]string{
		"catalog": catalogName,
		"schema":  schemaName,
		"table":   tableName,
	} {
		if err := validateIdentifier(field, value); err != nil {
			return nil, err
		}
	}

	stmt := fmt.Sprintf("SELECT * FROM %s.%s.%s LIMIT %d",
		quoteIdentifier(catalogName), quoteIdentifier(schemaName), quoteIdentifier(tableName), s.sampleSize)

	columns, rows, err := s.executeStatement(ctx, stmt)
	if err != nil {
		return nil, err
	}

	sample := &TableSample{
		Catalog:  catalogName,
		Schema:   schemaName,
		Table:    tableName,
		Columns:  columns,
		Rows:     rowsToMaps(columns, rows),
		RowCount: len(rows),
	}

	logging.Info(metadataSubsystem, "Sampled %d rows from %s.%s.%s", sample.RowCount, catalogName, schemaName, tableName)
	return sample, nil
}

// ListJobRuns returns the most recent job runs of the workspace.
func (s *Service) ListJobRuns(ctx context.Context, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = defaultJobRunLimit
	}

	handle, err := s.clients.GetClient(ctx, s.profile)
	if err != nil {
		return nil, err
	}

	runs, err := handle.Workspace.Jobs.ListRunsAll(ctx, jobs.ListRunsRequest{
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}

	result := make([]JobRun, 0, len(runs))
	for _, run := range runs {
		jobRun := JobRun{
			JobID:      run.JobId,
			RunID:      run.RunId,
			RunName:    run.RunName,
			StartTime:  formatMillis(run.StartTime),
			EndTime:    formatMillis(run.EndTime),
			RunPageURL: run.RunPageUrl,
		}
		if run.State != nil {
			jobRun.LifeCycleState = string(run.State.LifeCycleState)
			jobRun.ResultState = string(run.State.ResultState)
			jobRun.StateMessage = run.State.StateMessage
		}
		result = append(result, jobRun)
		if len(result) >= limit {
			break
		}
	}

	logging.Info(metadataSubsystem, "Listed %d job runs", len(result))
	return result, nil
}

// ListWarehouses returns the SQL warehouses of the workspace, sorted by
// name. Used by the init command's warehouse picker.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	handle, err := s.clients.GetClient(ctx, s.profile)
	if err != nil {
		return nil, err
	}

	endpoints, err := handle.Workspace.Warehouses.ListAll(ctx, sql.ListWarehousesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list SQL warehouses: %w", err)
	}

	warehouses := make([]Warehouse, 0, len(endpoints))
	for _, endpoint := range endpoints {
		warehouses = append(warehouses, Warehouse{
			ID:    endpoint.Id,
			Name:  endpoint.Name,
			State: string(endpoint.State),
		})
	}
	sort.Slice(warehouses, func(i, j int) bool { return warehouses[i].Name < warehouses[j].Name })

	return warehouses, nil
}

// Whoami returns the authenticated principal. Doubles as the cheapest
// possible connection smoke test.
func (s *Service) Whoami(ctx context.Context) (*UserInfo, error) {
	handle, err := s.clients.GetClient(ctx, s.profile)
	if err != nil {
		return nil, err
	}

	user, err := handle.Workspace.CurrentUser.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	return &UserInfo{
		UserName:    user.UserName,
		DisplayName: user.DisplayName,
		Active:      user.Active,
	}, nil
}
