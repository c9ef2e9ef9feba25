package models

// Column describes a single column of an introspected table.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// AccessDescriptor captures how a table relates to tenant scoping.
// It is derived during introspection and treated as advisory: the
// policy engine re-checks SQL text on every execution regardless.
type AccessDescriptor struct {
	RequiresTenantFilter  bool   `json:"requires_tenant_filter"`
	JoinPathToTenant      string `json:"join_path_to_tenant"`
	HasDirectTenantColumn bool   `json:"has_direct_tenant_column"`
}

// SchemaTable describes an introspected table and its columns.
// Rebuilt on demand from the live catalog; never the source of truth.
type SchemaTable struct {
	SchemaName string            `json:"schema_name"`
	TableName  string            `json:"table_name"`
	Columns    []Column          `json:"columns"`
	Access     *AccessDescriptor `json:"access,omitempty"`
}

// ForeignKeyConstraint describes a single FK relationship.
type ForeignKeyConstraint struct {
	ConstraintName    string `json:"constraint_name"`
	TableName         string `json:"table_name"`
	ColumnName        string `json:"column_name"`
	ForeignTableName  string `json:"foreign_table_name"`
	ForeignColumnName string `json:"foreign_column_name"`
}

// IndexUsageStat reports catalog statistics for one index.
type IndexUsageStat struct {
	TableName string `json:"table_name"`
	IndexName string `json:"index_name"`
	Scans     int64  `json:"scans"`
}

// TableSizeStat reports approximate row count and on-disk size.
type TableSizeStat struct {
	TableName  string `json:"table_name"`
	RowCount   int64  `json:"row_count"`
	TotalBytes int64  `json:"total_bytes"`
}
