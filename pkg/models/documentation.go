package models

import "strings"

// ID prefixes for documentation corpus entries. Template entries carry a
// distinct prefix so retrieval can boost them in ranking.
const (
	TemplateIDPrefix = "template_"
	RuleIDPrefix     = "rule_"
)

// DocumentationMetadata carries the structured metadata attached to a
// documentation entry. All fields are optional.
type DocumentationMetadata struct {
	Category         string   `yaml:"category" json:"category"`
	Tables           []string `yaml:"tables" json:"tables"`
	Columns          []string `yaml:"columns" json:"columns"`
	Keywords         []string `yaml:"keywords" json:"keywords"`
	QuestionTemplate string   `yaml:"question_template" json:"question_template,omitempty"`
	QuestionVariants []string `yaml:"question_variants" json:"question_variants,omitempty"`
	CommonPhrasings  []string `yaml:"common_phrasings" json:"common_phrasings,omitempty"`
	Tags             []string `yaml:"tags" json:"tags,omitempty"`
}

// DocumentationEntry is one unit of the semantic corpus: either a rule
// entry (plain textual constraint) or a template entry (a question paired
// with a complete worked SQL answer embedded in Content).
type DocumentationEntry struct {
	ID       string                `yaml:"id" json:"id"`
	Title    string                `yaml:"title" json:"title"`
	Content  string                `yaml:"content" json:"content"`
	Metadata DocumentationMetadata `yaml:"metadata" json:"metadata"`
}

// IsTemplate reports whether the entry pairs a question with a worked SQL
// answer, identified by its ID prefix.
func (e *DocumentationEntry) IsTemplate() bool {
	return strings.HasPrefix(e.ID, TemplateIDPrefix)
}
