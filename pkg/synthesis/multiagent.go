package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/prompts"
)

// MultiAgent runs the heavier critique pipeline: a constructor step
// produces an initial candidate, five specialist reviewers critique it
// concurrently, and a final generation step merges every reviewer's fix
// into one statement.
type MultiAgent struct {
	deps Deps
}

func NewMultiAgent(deps Deps) *MultiAgent {
	deps.Logger = deps.Logger.Named("synthesis.multi")
	if deps.Pool == nil {
		deps.Pool = llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: len(prompts.CritiqueAgents)}, deps.Logger)
	}
	return &MultiAgent{deps: deps}
}

var _ Orchestrator = (*MultiAgent)(nil)

// critiqueResult is one reviewer's contribution: feedback prose plus an
// optional improved statement.
type critiqueResult struct {
	agent    string
	feedback string
	sql      string
}

func (m *MultiAgent) Synthesize(ctx context.Context, question string, caller models.CallerContext) (models.CandidateQuery, error) {
	tables, err := m.deps.Schema.ListTables(ctx)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("listing tables: %w", err)
	}
	fks, err := m.deps.Schema.ListForeignKeys(ctx)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("listing foreign keys: %w", err)
	}
	schemaDescription := describeSchema(tables, fks)
	scoped := scopedQuestion(question, caller)

	// Constructor step: the initial candidate the reviewers examine.
	constructed, err := m.construct(ctx, scoped, schemaDescription)
	if err != nil {
		return models.CandidateQuery{}, err
	}

	// Five reviewers, concurrent, joined before the merge. A failed
	// reviewer degrades to fallback feedback instead of aborting the
	// batch.
	items := make([]llm.WorkItem[critiqueResult], len(prompts.CritiqueAgents))
	for i, agent := range prompts.CritiqueAgents {
		agent := agent
		items[i] = llm.WorkItem[critiqueResult]{
			ID: agent.Name,
			Execute: func(ctx context.Context) (critiqueResult, error) {
				return m.critique(ctx, agent, scoped, constructed, schemaDescription)
			},
		}
	}
	results := llm.Process(ctx, m.deps.Pool, items)

	feedback := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			m.deps.Logger.Warn("Critique agent degraded",
				zap.String("agent", r.ID),
				zap.Error(r.Err))
			feedback = append(feedback, fmt.Sprintf("[%s] reviewer unavailable (%v); apply its rules from the system instructions directly", r.ID, r.Err))
			continue
		}
		feedback = append(feedback, fmt.Sprintf("[%s] %s", r.ID, r.Result.feedback))
	}

	// Merge step: one statement carrying every reviewer's fix.
	mergePrompt := prompts.BuildMergePrompt(scoped, constructed, feedback)
	response, err := m.deps.Client.GenerateResponse(ctx, mergePrompt, prompts.SystemPrompt, defaultTemperature)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("merge model call: %w", err)
	}

	sql, err := ExtractSQLBlock(response)
	if errors.Is(err, apperrors.ErrNoSQLBlock) {
		return models.CandidateQuery{
			IsValid:          false,
			ConstructedQuery: constructed,
			Feedback:         "The merge response did not contain a fenced sql block; nothing to execute.",
		}, nil
	}
	if err != nil {
		return models.CandidateQuery{}, err
	}

	candidate := models.CandidateQuery{
		SQL:              sql,
		IsValid:          true,
		ConstructedQuery: constructed,
		Feedback:         strings.Join(feedback, "\n"),
		PlanExplanation:  ExplanationAfterSQL(response),
	}
	annotate(&candidate, tableColumnIndex(tables))
	return candidate, nil
}

func (m *MultiAgent) construct(ctx context.Context, question, schemaDescription string) (string, error) {
	prompt := prompts.BuildQuestionPrompt(question, schemaDescription)
	response, err := m.deps.Client.GenerateResponse(ctx, prompt, prompts.SystemPrompt, defaultTemperature)
	if err != nil {
		return "", fmt.Errorf("constructor model call: %w", err)
	}
	sql, err := ExtractSQLBlock(response)
	if err != nil {
		return "", fmt.Errorf("constructor response: %w", err)
	}
	return sql, nil
}

func (m *MultiAgent) critique(ctx context.Context, agent prompts.CritiqueAgent, question, candidateSQL, schemaDescription string) (critiqueResult, error) {
	prompt := prompts.BuildCritiquePrompt(agent, question, candidateSQL, schemaDescription)
	response, err := m.deps.Client.GenerateResponse(ctx, prompt, prompts.SystemPrompt, defaultTemperature)
	if err != nil {
		return critiqueResult{}, err
	}

	result := critiqueResult{agent: agent.Name, feedback: response}
	if sql, err := ExtractSQLBlock(response); err == nil {
		result.sql = sql
		// Keep the prose part as feedback; the improved SQL feeds
		// the merge via the feedback text itself.
		if before := strings.SplitN(response, "```sql", 2); len(before) == 2 {
			prose := strings.TrimSpace(before[0])
			if prose != "" {
				result.feedback = prose + "\nProposed rewrite:\n" + InjectSQLBlock(sql)
			}
		}
	}
	return result, nil
}
