// Package synthesis turns natural-language questions into candidate SQL
// statements. One Orchestrator contract, three modes: a single model
// call over retrieved schema, a multi-agent critique pipeline, and a
// retrieval-augmented tool-calling variant.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
)

// Synthesis modes selected by configuration.
const (
	ModeSinglePass = "single_pass"
	ModeMultiAgent = "multi_agent"
	ModeRetrieval  = "retrieval"
)

const defaultTemperature = 0.2

// SchemaSource provides live catalog facts. Implemented by the
// introspector against the target database.
type SchemaSource interface {
	ListTables(ctx context.Context) ([]models.SchemaTable, error)
	ListForeignKeys(ctx context.Context) ([]models.ForeignKeyConstraint, error)
	Explain(ctx context.Context, sqlText string) (string, error)
	IndexUsage(ctx context.Context) ([]models.IndexUsageStat, error)
	TableSizes(ctx context.Context) ([]models.TableSizeStat, error)
}

// DocumentSearcher is the semantic-store lookup the retrieval variants
// depend on.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SchemaVectorEntry, error)
}

// Orchestrator is the single synthesis contract every mode implements.
type Orchestrator interface {
	Synthesize(ctx context.Context, question string, caller models.CallerContext) (models.CandidateQuery, error)
}

// Deps carries the collaborators a synthesis mode may need. Modes use
// the subset relevant to them.
type Deps struct {
	Client    llm.Client
	Schema    SchemaSource
	Documents DocumentSearcher
	Resolver  TenantResolver
	Pool      *llm.WorkerPool
	Logger    *zap.Logger
}

// NewOrchestrator builds the orchestrator for the configured mode.
func NewOrchestrator(mode string, deps Deps) (Orchestrator, error) {
	switch mode {
	case ModeSinglePass, "":
		return NewSinglePass(deps), nil
	case ModeMultiAgent:
		return NewMultiAgent(deps), nil
	case ModeRetrieval:
		return NewRetrievalAugmented(deps), nil
	default:
		return nil, fmt.Errorf("unknown synthesis mode %q", mode)
	}
}

// describeSchema renders the schema tables into the textual form the
// prompts embed. Tenant-protected tables note their scoping path so the
// model applies the right filter.
func describeSchema(tables []models.SchemaTable, fks []models.ForeignKeyConstraint) string {
	var sb strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&sb, "## %s.%s\n", table.SchemaName, table.TableName)
		for _, col := range table.Columns {
			nullability := "not null"
			if col.IsNullable {
				nullability = "nullable"
			}
			fmt.Fprintf(&sb, "- %s (%s, %s)\n", col.Name, col.DataType, nullability)
		}
		if table.Access != nil && table.Access.RequiresTenantFilter {
			fmt.Fprintf(&sb, "Tenant-scoped via %s\n", table.Access.JoinPathToTenant)
		}
		sb.WriteString("\n")
	}
	if len(fks) > 0 {
		sb.WriteString("## Relationships\n")
		for _, fk := range fks {
			fmt.Fprintf(&sb, "- %s.%s -> %s.%s\n",
				fk.TableName, fk.ColumnName, fk.ForeignTableName, fk.ForeignColumnName)
		}
	}
	return sb.String()
}

// tableColumnIndex builds the lookup used by post-hoc schema checks.
func tableColumnIndex(tables []models.SchemaTable) map[string]map[string]bool {
	idx := make(map[string]map[string]bool, len(tables))
	for _, table := range tables {
		cols := make(map[string]bool, len(table.Columns))
		for _, col := range table.Columns {
			cols[strings.ToLower(col.Name)] = true
		}
		idx[strings.ToLower(table.TableName)] = cols
	}
	return idx
}
