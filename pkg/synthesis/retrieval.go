package synthesis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/prompts"
)

// RetrievalAugmented synthesizes through a bounded tool-calling loop:
// instead of receiving the whole schema inline, the model looks up
// documentation, schema structure, name resolutions and statistics on
// demand. Falls back to single-pass synthesis when the document store's
// embedding backend is down.
type RetrievalAugmented struct {
	deps     Deps
	fallback *SinglePass
}

func NewRetrievalAugmented(deps Deps) *RetrievalAugmented {
	logger := deps.Logger
	deps.Logger = logger.Named("synthesis.retrieval")
	fallbackDeps := deps
	fallbackDeps.Logger = logger
	return &RetrievalAugmented{
		deps:     deps,
		fallback: NewSinglePass(fallbackDeps),
	}
}

var _ Orchestrator = (*RetrievalAugmented)(nil)

func (r *RetrievalAugmented) Synthesize(ctx context.Context, question string, caller models.CallerContext) (models.CandidateQuery, error) {
	toolClient, ok := r.deps.Client.(llm.ToolCaller)
	if !ok {
		return models.CandidateQuery{}, fmt.Errorf("%w: %s", apperrors.ErrToolsNotSupported, r.deps.Client.GetModel())
	}

	// Probe the document store before handing the model its tools.
	// Tool failures inside the loop surface to the model as adjustable
	// errors, so a dead embedding or store backend must be caught here
	// to trigger the schema-inline fallback instead.
	if _, err := r.deps.Documents.Search(ctx, question, 1); errors.Is(err, apperrors.ErrEmbeddingFailure) ||
		errors.Is(err, apperrors.ErrStoreFailure) {
		r.deps.Logger.Warn("Document retrieval unavailable, falling back to single-pass synthesis",
			zap.Error(err))
		return r.fallback.Synthesize(ctx, question, caller)
	}

	executor := &toolExecutor{
		schema:    r.deps.Schema,
		documents: r.deps.Documents,
		resolver:  r.deps.Resolver,
		logger:    r.deps.Logger,
	}

	req := &llm.ToolRequest{
		SystemPrompt: prompts.RetrievalSystemPrompt,
		Prompt:       scopedQuestion(question, caller),
		Tools:        toolDefinitions(),
		Temperature:  defaultTemperature,
	}

	response, err := toolClient.GenerateWithTools(ctx, req, executor)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("tool-calling synthesis: %w", err)
	}

	sql, err := ExtractSQLBlock(response)
	if errors.Is(err, apperrors.ErrNoSQLBlock) {
		return models.CandidateQuery{
			IsValid:  false,
			Feedback: "The model response did not contain a fenced sql block; nothing to execute.",
		}, nil
	}
	if err != nil {
		return models.CandidateQuery{}, err
	}

	candidate := models.CandidateQuery{SQL: sql, IsValid: true}
	if tables, terr := r.deps.Schema.ListTables(ctx); terr == nil {
		annotate(&candidate, tableColumnIndex(tables))
	}
	return candidate, nil
}
