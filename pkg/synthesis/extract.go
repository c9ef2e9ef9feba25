package synthesis

import (
	"regexp"
	"strings"

	"github.com/queryglass/queryglass/pkg/apperrors"
)

// sqlBlockPattern matches one fenced sql code block. Extraction and
// injection must agree on this exact delimiter format or corrected SQL
// fails to round-trip through the streamed response.
var sqlBlockPattern = regexp.MustCompile("(?s)```sql\\s*\n(.*?)```")

// ExtractSQLBlock pulls the first fenced sql block out of a model
// response. Returns apperrors.ErrNoSQLBlock when the response has none.
func ExtractSQLBlock(response string) (string, error) {
	match := sqlBlockPattern.FindStringSubmatch(response)
	if match == nil {
		return "", apperrors.ErrNoSQLBlock
	}
	sql := strings.TrimSpace(match[1])
	if sql == "" {
		return "", apperrors.ErrNoSQLBlock
	}
	return sql, nil
}

// InjectSQLBlock wraps a statement in the fenced-block format
// ExtractSQLBlock recognizes.
func InjectSQLBlock(sql string) string {
	return "```sql\n" + strings.TrimSpace(sql) + "\n```"
}

// ExplanationAfterSQL returns any prose following the first SQL block,
// used as the plan explanation in merge responses.
func ExplanationAfterSQL(response string) string {
	loc := sqlBlockPattern.FindStringIndex(response)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(response[loc[1]:])
}
