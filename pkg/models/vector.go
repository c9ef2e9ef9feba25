package models

import "strings"

// EntryType classifies what a vector entry was built from.
type EntryType string

const (
	EntryTypeTable         EntryType = "table"
	EntryTypeColumn        EntryType = "column"
	EntryTypeRelation      EntryType = "relation"
	EntryTypeRule          EntryType = "rule"
	EntryTypeDocumentation EntryType = "documentation"
)

// SchemaVectorEntry is one persisted row of the semantic store: the text
// that was embedded plus its vector and provenance metadata. Entries are
// replaced wholesale on rebuild; uniqueness is enforced by upsert on id.
type SchemaVectorEntry struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Type       EntryType         `json:"type"`
	Embedding  []float32         `json:"-"`
	TableName  string            `json:"table_name,omitempty"`
	ColumnName string            `json:"column_name,omitempty"`
	Title      string            `json:"title,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsTemplate reports whether the entry came from a worked-query template,
// identified by its ID prefix.
func (e SchemaVectorEntry) IsTemplate() bool {
	return strings.HasPrefix(e.ID, TemplateIDPrefix)
}
