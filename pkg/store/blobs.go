package store

import (
	"fmt"
	"strings"

	"github.com/queryglass/queryglass/pkg/models"
)

// buildEntries converts every table, column, relation and documentation
// item into one embeddable text blob per item. The blob concatenates the
// human-readable labels retrieval should be able to match on: names,
// types, nullability, join-path hints and keyword lists.
func buildEntries(
	tables []models.SchemaTable,
	fks []models.ForeignKeyConstraint,
	docs []models.DocumentationEntry,
) []models.SchemaVectorEntry {
	var entries []models.SchemaVectorEntry

	for _, table := range tables {
		entries = append(entries, tableEntry(table))
		for _, col := range table.Columns {
			entries = append(entries, columnEntry(table, col))
		}
	}

	for _, fk := range fks {
		entries = append(entries, relationEntry(fk))
	}

	for _, doc := range docs {
		entries = append(entries, documentationEntry(doc))
	}

	return entries
}

func tableEntry(table models.SchemaTable) models.SchemaVectorEntry {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Table %s.%s with columns:", table.SchemaName, table.TableName)
	for _, col := range table.Columns {
		nullability := "not null"
		if col.IsNullable {
			nullability = "nullable"
		}
		fmt.Fprintf(&sb, " %s (%s, %s);", col.Name, col.DataType, nullability)
	}
	if table.Access != nil && table.Access.RequiresTenantFilter {
		fmt.Fprintf(&sb, " Tenant-protected, scoped via %s.", table.Access.JoinPathToTenant)
	}

	return models.SchemaVectorEntry{
		ID:        "table_" + table.TableName,
		Content:   sb.String(),
		Type:      models.EntryTypeTable,
		TableName: table.TableName,
		Title:     "Table " + table.TableName,
	}
}

func columnEntry(table models.SchemaTable, col models.Column) models.SchemaVectorEntry {
	nullability := "not null"
	if col.IsNullable {
		nullability = "nullable"
	}
	content := fmt.Sprintf("Column %s of table %s: type %s, %s.",
		col.Name, table.TableName, col.DataType, nullability)

	return models.SchemaVectorEntry{
		ID:         fmt.Sprintf("column_%s_%s", table.TableName, col.Name),
		Content:    content,
		Type:       models.EntryTypeColumn,
		TableName:  table.TableName,
		ColumnName: col.Name,
		Title:      fmt.Sprintf("%s.%s", table.TableName, col.Name),
	}
}

func relationEntry(fk models.ForeignKeyConstraint) models.SchemaVectorEntry {
	content := fmt.Sprintf("Relationship %s: %s.%s references %s.%s. Join %s to %s on %s.%s = %s.%s.",
		fk.ConstraintName,
		fk.TableName, fk.ColumnName,
		fk.ForeignTableName, fk.ForeignColumnName,
		fk.TableName, fk.ForeignTableName,
		fk.TableName, fk.ColumnName,
		fk.ForeignTableName, fk.ForeignColumnName)

	return models.SchemaVectorEntry{
		ID:        "relation_" + fk.ConstraintName,
		Content:   content,
		Type:      models.EntryTypeRelation,
		TableName: fk.TableName,
		Title:     fk.ConstraintName,
	}
}

func documentationEntry(doc models.DocumentationEntry) models.SchemaVectorEntry {
	entryType := models.EntryTypeDocumentation
	if strings.HasPrefix(doc.ID, models.RuleIDPrefix) {
		entryType = models.EntryTypeRule
	}

	var sb strings.Builder
	sb.WriteString(doc.Title)
	sb.WriteString("\n")
	sb.WriteString(doc.Content)

	meta := doc.Metadata
	if meta.QuestionTemplate != "" {
		fmt.Fprintf(&sb, "\nQuestion: %s", meta.QuestionTemplate)
	}
	if len(meta.QuestionVariants) > 0 {
		fmt.Fprintf(&sb, "\nVariants: %s", strings.Join(meta.QuestionVariants, "; "))
	}
	if len(meta.CommonPhrasings) > 0 {
		fmt.Fprintf(&sb, "\nPhrasings: %s", strings.Join(meta.CommonPhrasings, "; "))
	}
	if len(meta.Keywords) > 0 {
		fmt.Fprintf(&sb, "\nKeywords: %s", strings.Join(meta.Keywords, ", "))
	}
	if len(meta.Tables) > 0 {
		fmt.Fprintf(&sb, "\nTables: %s", strings.Join(meta.Tables, ", "))
	}

	metadata := map[string]string{}
	if meta.Category != "" {
		metadata["category"] = meta.Category
	}
	if len(meta.Tags) > 0 {
		metadata["tags"] = strings.Join(meta.Tags, ",")
	}

	tableName := ""
	if len(meta.Tables) > 0 {
		tableName = meta.Tables[0]
	}

	return models.SchemaVectorEntry{
		ID:        doc.ID,
		Content:   sb.String(),
		Type:      entryType,
		TableName: tableName,
		Title:     doc.Title,
		Metadata:  metadata,
	}
}
