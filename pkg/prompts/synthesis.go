// Package prompts builds every language-model prompt the synthesis
// pipeline uses: the shared system prompt with the reporting-domain
// rules, the per-agent critique prompts, the merge step, and the
// error-correction prompt used by the repair loop.
package prompts

import (
	"fmt"
	"strings"
)

// SystemPrompt is the fixed instruction set shared by every synthesis
// mode. It encodes the domain rules the critique agents later verify.
const SystemPrompt = `You are an expert PostgreSQL analyst for a diocese testing and reporting database.

Respond with exactly one SQL statement inside a fenced code block:

` + "```sql\nSELECT ...\n```" + `

Rules that apply to every query you write:

1. NULL handling: guard every division with NULLIF on the denominator, e.g. SUM(correct)::numeric / NULLIF(SUM(attempted), 0). A ratio over an empty group must yield NULL, never a division error.
2. Identifiers over names: group, join, filter and aggregate on id columns only. Display names (diocese name, testing center name, student name) may appear in the SELECT list for readability but never in GROUP BY, JOIN ON or WHERE identity filters.
3. Role ids: users.role_id 1 = administrator, 2 = teacher, 3 = student. Filter on the numeric role id, never on a role label string.
4. Score calculation: a test score is SUM(points_earned)::numeric / NULLIF(SUM(points_possible), 0) * 100, computed per score row, never averaged from pre-rounded percentages.
5. Relative periods: express "last year" or "previous period" as current_period_id - 1 relative to the latest period in the data, never as a hardcoded year literal.
6. Tenant scoping: every query touching users, students, testing_centers, scores, classes or answers must carry the diocese_id filter for the caller, joining through students or testing_centers where the table has no direct diocese_id column.
7. Single statement only: no semicolons separating multiple statements, no DDL, no data modification.`

// RetrievalSystemPrompt extends the base rules for the tool-calling
// variant, where the model looks schema facts up instead of receiving
// them inline.
const RetrievalSystemPrompt = SystemPrompt + `

You have tools for looking up documentation, schema structure, execution plans and statistics. Before writing SQL, search the documentation for the question's key phrases and list the tables you intend to use. When a filter needs a display name resolved to its stored form, use the resolve tool and require an exact match; never guess or partially match an identity value.`

// BuildQuestionPrompt assembles the user-facing prompt for single-pass
// synthesis: the question plus the schema description retrieved for it.
func BuildQuestionPrompt(question, schemaDescription string) string {
	var prompt strings.Builder

	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n# Available Schema\n\n")
	prompt.WriteString(schemaDescription)
	prompt.WriteString("\n\nWrite one SQL statement that answers the question.")

	return prompt.String()
}

// CritiqueAgent names one specialist reviewer in the multi-agent
// pipeline and the single concern it re-derives the query for.
type CritiqueAgent struct {
	Name  string
	Focus string
}

// CritiqueAgents is the fixed reviewer roster. Each runs concurrently
// against the constructor's candidate.
var CritiqueAgents = []CritiqueAgent{
	{
		Name: "null_handling",
		Focus: "NULL safety: every division must guard its denominator with NULLIF, " +
			"every aggregate over a possibly-empty group must tolerate NULL. " +
			"Rewrite the query so no input data can cause a division-by-zero error.",
	},
	{
		Name: "primary_table",
		Focus: "Primary table choice: verify the query reads from the table that actually " +
			"answers the question rather than a related one (counts of students come from " +
			"students or role-filtered users, not from scores). Rewrite if the wrong table anchors the query.",
	},
	{
		Name: "score_calculation",
		Focus: "Score arithmetic: scores are SUM(points_earned)::numeric / NULLIF(SUM(points_possible), 0) * 100 " +
			"per score row. Averages of averages and pre-rounded percentages are wrong. " +
			"Rewrite any score computation that deviates from this formula.",
	},
	{
		Name: "join_structure",
		Focus: "Joins and grouping: all joins and GROUP BY clauses must use id columns, " +
			"tenant scoping must join through students or testing_centers where needed, " +
			"and display names may only appear in the SELECT list. Rewrite violations.",
	},
	{
		Name: "schema_existence",
		Focus: "Schema existence: every table and column the query references must exist " +
			"in the schema description provided. Flag anything that does not, suggest the " +
			"closest real name, and rewrite the query to use only real identifiers.",
	},
}

// BuildCritiquePrompt creates one specialist agent's review prompt over
// the constructor's candidate SQL.
func BuildCritiquePrompt(agent CritiqueAgent, question, candidateSQL, schemaDescription string) string {
	var prompt strings.Builder

	prompt.WriteString("# Review Task\n\n")
	prompt.WriteString(agent.Focus)
	prompt.WriteString("\n\n# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n# Candidate SQL\n\n```sql\n")
	prompt.WriteString(candidateSQL)
	prompt.WriteString("\n```\n\n# Available Schema\n\n")
	prompt.WriteString(schemaDescription)
	prompt.WriteString("\n\nRespond with a short feedback paragraph describing any problem you found (or stating the candidate is correct for your concern), followed by your improved version of the full query in one fenced sql block.")

	return prompt.String()
}

// BuildMergePrompt creates the final generation step's prompt: it folds
// every agent's feedback into one statement.
func BuildMergePrompt(question, candidateSQL string, feedback []string) string {
	var prompt strings.Builder

	prompt.WriteString("# Final Query Generation\n\n")
	prompt.WriteString("Specialist reviewers examined a candidate query. Produce one final SQL statement that incorporates every reviewer's fix simultaneously.\n\n")
	prompt.WriteString("# Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n# Candidate SQL\n\n```sql\n")
	prompt.WriteString(candidateSQL)
	prompt.WriteString("\n```\n\n# Reviewer Feedback\n\n")
	for i, fb := range feedback {
		prompt.WriteString(fmt.Sprintf("%d. %s\n", i+1, fb))
	}
	prompt.WriteString("\nRespond with the final query in one fenced sql block, followed by a short explanation of how the query executes (tables read, joins, filters, aggregation).")

	return prompt.String()
}

// BuildCorrectionPrompt creates the repair-loop prompt that fixes a
// failing statement using only the database's error text.
func BuildCorrectionPrompt(failedSQL, dbError string) string {
	var prompt strings.Builder

	prompt.WriteString("The following SQL statement failed to execute.\n\n```sql\n")
	prompt.WriteString(failedSQL)
	prompt.WriteString("\n```\n\nDatabase error:\n\n")
	prompt.WriteString(dbError)
	prompt.WriteString("\n\nFix only what the error describes. Do not restructure the query beyond the fix. Respond with the corrected statement in one fenced sql block and nothing else.")

	return prompt.String()
}
