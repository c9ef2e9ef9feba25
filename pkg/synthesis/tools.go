package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
	sqlutil "github.com/queryglass/queryglass/pkg/sql"
)

// TenantResolver resolves a tenant display name to its stored identity.
// Exact match only; implemented by the introspector against the target
// database.
type TenantResolver interface {
	ResolveTenantName(ctx context.Context, name string) (int64, string, error)
}

// toolExecutor serves the retrieval variant's callable lookups. Each
// tool answers one "what exists" question so the model never needs the
// whole schema in its prompt.
type toolExecutor struct {
	schema    SchemaSource
	documents DocumentSearcher
	resolver  TenantResolver
	logger    *zap.Logger
}

var _ llm.ToolExecutor = (*toolExecutor)(nil)

// toolDefinitions describes the lookup tools offered to the model.
func toolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition("search_documentation",
			"Search schema descriptions, business rules and worked query templates for passages relevant to a sub-question.",
			map[string]llm.ParameterProperty{
				"query": {Type: "string", Description: "What to search for"},
				"limit": {Type: "integer", Description: "Maximum results, default 5"},
			},
			[]string{"query"}),
		llm.NewToolDefinition("resolve_tenant_name",
			"Resolve a diocese display name to its stored id and canonical name. Exact match only; fails if no diocese has exactly that name.",
			map[string]llm.ParameterProperty{
				"name": {Type: "string", Description: "The display name to resolve"},
			},
			[]string{"name"}),
		llm.NewToolDefinition("list_tables",
			"List every table with its columns, types and tenant-scoping requirements.",
			map[string]llm.ParameterProperty{},
			nil),
		llm.NewToolDefinition("list_columns",
			"List the columns of one table.",
			map[string]llm.ParameterProperty{
				"table": {Type: "string", Description: "Table name"},
			},
			[]string{"table"}),
		llm.NewToolDefinition("get_execution_plan",
			"Get the database execution plan for a candidate statement without running it.",
			map[string]llm.ParameterProperty{
				"sql": {Type: "string", Description: "The statement to plan"},
			},
			[]string{"sql"}),
		llm.NewToolDefinition("get_index_stats",
			"Get index usage counts and table sizes from the database statistics collector.",
			map[string]llm.ParameterProperty{},
			nil),
	}
}

func (t *toolExecutor) ExecuteTool(ctx context.Context, name, arguments string) (string, error) {
	t.logger.Debug("Tool call", zap.String("tool", name))

	switch name {
	case "search_documentation":
		return t.searchDocumentation(ctx, arguments)
	case "resolve_tenant_name":
		return t.resolveTenantName(ctx, arguments)
	case "list_tables":
		return t.listTables(ctx)
	case "list_columns":
		return t.listColumns(ctx, arguments)
	case "get_execution_plan":
		return t.executionPlan(ctx, arguments)
	case "get_index_stats":
		return t.indexStats(ctx)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (t *toolExecutor) searchDocumentation(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse search_documentation arguments: %w", err)
	}
	if args.Limit <= 0 {
		args.Limit = 5
	}

	entries, err := t.documents.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No relevant documentation found.", nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[%s] %s\n%s\n\n", e.Type, e.Title, e.Content)
	}
	return sb.String(), nil
}

func (t *toolExecutor) resolveTenantName(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse resolve_tenant_name arguments: %w", err)
	}

	// The name came from model output over user text; screen it before
	// it goes anywhere near a parameterized query.
	if check := sqlutil.CheckParameterForInjection("name", args.Name); check != nil {
		t.logger.Warn("Rejected tool argument with injection pattern",
			zap.String("fingerprint", check.Fingerprint))
		return "", fmt.Errorf("name %q rejected: contains a SQL injection pattern", args.Name)
	}

	id, canonical, err := t.resolver.ResolveTenantName(ctx, args.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("diocese_id = %d, canonical name = %q", id, canonical), nil
}

func (t *toolExecutor) listTables(ctx context.Context) (string, error) {
	tables, err := t.schema.ListTables(ctx)
	if err != nil {
		return "", err
	}
	fks, err := t.schema.ListForeignKeys(ctx)
	if err != nil {
		return "", err
	}
	return describeSchema(tables, fks), nil
}

func (t *toolExecutor) listColumns(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Table string `json:"table"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse list_columns arguments: %w", err)
	}

	tables, err := t.schema.ListTables(ctx)
	if err != nil {
		return "", err
	}
	for _, table := range tables {
		if strings.EqualFold(table.TableName, args.Table) {
			return describeSchema([]models.SchemaTable{table}, nil), nil
		}
	}
	return "", fmt.Errorf("table %q does not exist", args.Table)
}

func (t *toolExecutor) executionPlan(ctx context.Context, arguments string) (string, error) {
	var args struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("parse get_execution_plan arguments: %w", err)
	}
	return t.schema.Explain(ctx, args.SQL)
}

func (t *toolExecutor) indexStats(ctx context.Context) (string, error) {
	usage, err := t.schema.IndexUsage(ctx)
	if err != nil {
		return "", err
	}
	sizes, err := t.schema.TableSizes(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Index usage:\n")
	for _, u := range usage {
		fmt.Fprintf(&sb, "- %s on %s: %d scans\n", u.IndexName, u.TableName, u.Scans)
	}
	sb.WriteString("Table sizes:\n")
	for _, s := range sizes {
		fmt.Fprintf(&sb, "- %s: ~%d rows, %d bytes\n", s.TableName, s.RowCount, s.TotalBytes)
	}
	return sb.String(), nil
}
