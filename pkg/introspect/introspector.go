// Package introspect queries the target database catalog to produce a
// normalized description of tables, columns, foreign keys and statistics.
// The live catalog is authoritative; returned snapshots are advisory.
package introspect

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/logging"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/policy"
)

// Introspector inspects the target database catalog. Every call opens a
// dedicated connection and closes it on both success and failure paths.
type Introspector struct {
	connString string
	policy     *policy.Engine
	logger     *zap.Logger
}

// New creates an Introspector for the given target connection string.
func New(connString string, policyEngine *policy.Engine, logger *zap.Logger) *Introspector {
	return &Introspector{
		connString: connString,
		policy:     policyEngine,
		logger:     logger.Named("introspect"),
	}
}

func (in *Introspector) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, in.connString)
	if err != nil {
		return nil, fmt.Errorf("connect to target database: %s", logging.SanitizeError(err))
	}
	return conn, nil
}

// ListTables returns every user table with its columns, annotated with an
// AccessDescriptor describing its tenant scoping.
func (in *Introspector) ListTables(ctx context.Context) ([]models.SchemaTable, error) {
	conn, err := in.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(ctx) }()

	const query = `
		SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND c.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY c.table_schema, c.table_name, c.ordinal_position
	`

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var tables []models.SchemaTable
	byName := map[string]int{}

	for rows.Next() {
		var schemaName, tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		key := schemaName + "." + tableName
		idx, ok := byName[key]
		if !ok {
			tables = append(tables, models.SchemaTable{
				SchemaName: schemaName,
				TableName:  tableName,
			})
			idx = len(tables) - 1
			byName[key] = idx
		}

		tables[idx].Columns = append(tables[idx].Columns, models.Column{
			Name:       columnName,
			DataType:   dataType,
			IsNullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	for i := range tables {
		tables[i].Access = in.describeAccess(&tables[i])
	}

	in.logger.Debug("Introspected tables", zap.Int("count", len(tables)))
	return tables, nil
}

// ListForeignKeys returns every foreign key constraint on user tables.
func (in *Introspector) ListForeignKeys(ctx context.Context) ([]models.ForeignKeyConstraint, error) {
	conn, err := in.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(ctx) }()

	const query = `
		SELECT
			tc.constraint_name,
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY tc.table_name, tc.constraint_name
	`

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []models.ForeignKeyConstraint
	for rows.Next() {
		var fk models.ForeignKeyConstraint
		if err := rows.Scan(&fk.ConstraintName, &fk.TableName, &fk.ColumnName,
			&fk.ForeignTableName, &fk.ForeignColumnName); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

var explainPrefixPattern = regexp.MustCompile(`(?is)^\s*EXPLAIN(\s+ANALYZE)?\s+`)

// StripExplainPrefix removes a leading EXPLAIN or EXPLAIN ANALYZE so
// callers can pass either a plain statement or one already wrapped.
func StripExplainPrefix(sqlText string) string {
	return explainPrefixPattern.ReplaceAllString(sqlText, "")
}

// Explain returns the plan-only execution plan for a statement as text.
func (in *Introspector) Explain(ctx context.Context, sqlText string) (string, error) {
	conn, err := in.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close(ctx) }()

	wrapped := "EXPLAIN " + StripExplainPrefix(sqlText)

	rows, err := conn.Query(ctx, wrapped)
	if err != nil {
		return "", fmt.Errorf("explain query: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("scan plan line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate plan rows: %w", err)
	}

	return strings.Join(lines, "\n"), nil
}

// IndexUsage returns scan counts per index from the statistics collector.
func (in *Introspector) IndexUsage(ctx context.Context) ([]models.IndexUsageStat, error) {
	conn, err := in.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(ctx) }()

	const query = `
		SELECT relname, indexrelname, idx_scan
		FROM pg_stat_user_indexes
		ORDER BY idx_scan DESC
	`

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query index usage: %w", err)
	}
	defer rows.Close()

	var stats []models.IndexUsageStat
	for rows.Next() {
		var s models.IndexUsageStat
		if err := rows.Scan(&s.TableName, &s.IndexName, &s.Scans); err != nil {
			return nil, fmt.Errorf("scan index usage row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// TableSizes returns approximate row counts and total on-disk size per
// user table.
func (in *Introspector) TableSizes(ctx context.Context) ([]models.TableSizeStat, error) {
	conn, err := in.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(ctx) }()

	const query = `
		SELECT c.relname,
		       COALESCE(c.reltuples::bigint, 0),
		       pg_total_relation_size(c.oid)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY pg_total_relation_size(c.oid) DESC
	`

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query table sizes: %w", err)
	}
	defer rows.Close()

	var stats []models.TableSizeStat
	for rows.Next() {
		var s models.TableSizeStat
		if err := rows.Scan(&s.TableName, &s.RowCount, &s.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan table size row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ResolveTenantName resolves a tenant display name to its stored id and
// canonical name. Exact match only (case-insensitive): identity filters
// must never be built from partial or fuzzy matches.
func (in *Introspector) ResolveTenantName(ctx context.Context, name string) (int64, string, error) {
	conn, err := in.connect(ctx)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = conn.Close(ctx) }()

	const query = `SELECT id, name FROM dioceses WHERE lower(name) = lower($1)`

	var id int64
	var canonical string
	err = conn.QueryRow(ctx, query, name).Scan(&id, &canonical)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: no diocese named %q", apperrors.ErrNotFound, name)
	}
	if err != nil {
		return 0, "", fmt.Errorf("resolve tenant name: %w", err)
	}
	return id, canonical, nil
}

// describeAccess derives the AccessDescriptor for a table from the
// policy engine's protected-table allow-list and the table's columns.
func (in *Introspector) describeAccess(table *models.SchemaTable) *models.AccessDescriptor {
	joinPath, protected := in.policy.TenantProtected(table.TableName)

	direct := false
	for _, col := range table.Columns {
		if strings.EqualFold(col.Name, policy.TenantColumn) {
			direct = true
			break
		}
	}

	return &models.AccessDescriptor{
		RequiresTenantFilter:  protected,
		JoinPathToTenant:      joinPath,
		HasDirectTenantColumn: direct,
	}
}
