package synthesis

import (
	"fmt"
	"strings"

	"github.com/queryglass/queryglass/pkg/models"
)

// annotate runs the post-hoc rule checks every mode applies to its final
// candidate: denominator guards and schema existence. Findings attach as
// annotations; they inform the caller without invalidating a statement
// the database may still accept.
func annotate(candidate *models.CandidateQuery, schemaIndex map[string]map[string]bool) {
	if candidate.SQL == "" {
		return
	}

	ann := &models.QueryAnnotations{}

	if violation := checkDenominatorGuard(candidate.SQL); violation != "" {
		ann.RuleViolations = append(ann.RuleViolations, violation)
	}
	ann.SchemaIssues, ann.Suggestions = checkSchemaExistence(candidate.SQL, schemaIndex)

	if len(ann.RuleViolations) > 0 || len(ann.SchemaIssues) > 0 || len(ann.Suggestions) > 0 {
		candidate.Annotations = ann
	}
}

// checkDenominatorGuard flags divisions that lack a NULLIF guard on the
// denominator. Textual heuristic: any "/" in a statement that never
// mentions NULLIF is suspect.
func checkDenominatorGuard(sql string) string {
	lower := strings.ToLower(sql)
	if !strings.Contains(lower, "/") {
		return ""
	}
	if strings.Contains(lower, "nullif") {
		return ""
	}
	return "division without NULLIF guard on the denominator"
}

// checkSchemaExistence verifies every table referenced after FROM/JOIN
// exists in the schema index, suggesting the closest real name for any
// that does not.
func checkSchemaExistence(sql string, schemaIndex map[string]map[string]bool) (issues, suggestions []string) {
	if len(schemaIndex) == 0 {
		return nil, nil
	}

	for _, table := range referencedTables(sql) {
		if _, ok := schemaIndex[table]; ok {
			continue
		}
		issues = append(issues, fmt.Sprintf("table %q does not exist", table))
		if closest := nearestName(table, schemaIndex); closest != "" {
			suggestions = append(suggestions, fmt.Sprintf("did you mean %q instead of %q", closest, table))
		}
	}
	return issues, suggestions
}

// referencedTables extracts the identifiers following FROM and JOIN
// keywords. Subquery parentheses and aliases are skipped rather than
// parsed.
func referencedTables(sql string) []string {
	fields := strings.Fields(strings.ToLower(sql))
	var tables []string
	seen := make(map[string]bool)
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] != "from" && fields[i] != "join" {
			continue
		}
		name := strings.Trim(fields[i+1], "(),;")
		if name == "" || name == "select" {
			continue
		}
		// Strip any schema qualifier.
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			name = name[dot+1:]
		}
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	return tables
}

func nearestName(name string, schemaIndex map[string]map[string]bool) string {
	best := ""
	bestDist := len(name)/2 + 1 // only suggest reasonably close names
	for candidate := range schemaIndex {
		if d := editDistance(name, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
