package models

// QueryAnnotations carries structured findings attached to a candidate
// during synthesis validation.
type QueryAnnotations struct {
	RuleViolations []string `json:"rule_violations,omitempty"`
	SchemaIssues   []string `json:"schema_issues,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// CandidateQuery is an in-progress SQL statement produced by synthesis.
// Ephemeral: produced and consumed within one synthesis/validation cycle.
type CandidateQuery struct {
	SQL              string            `json:"sql"`
	IsValid          bool              `json:"is_valid"`
	Feedback         string            `json:"feedback,omitempty"`
	ConstructedQuery string            `json:"constructed_query,omitempty"`
	PlanExplanation  string            `json:"plan_explanation,omitempty"`
	Annotations      *QueryAnnotations `json:"annotations,omitempty"`
}
