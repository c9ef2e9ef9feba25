package synthesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/prompts"
)

// SinglePass synthesizes with one model call over the live schema
// description.
type SinglePass struct {
	deps Deps
}

func NewSinglePass(deps Deps) *SinglePass {
	deps.Logger = deps.Logger.Named("synthesis.single")
	return &SinglePass{deps: deps}
}

var _ Orchestrator = (*SinglePass)(nil)

func (s *SinglePass) Synthesize(ctx context.Context, question string, caller models.CallerContext) (models.CandidateQuery, error) {
	tables, err := s.deps.Schema.ListTables(ctx)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("listing tables: %w", err)
	}
	fks, err := s.deps.Schema.ListForeignKeys(ctx)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("listing foreign keys: %w", err)
	}

	prompt := prompts.BuildQuestionPrompt(scopedQuestion(question, caller), describeSchema(tables, fks))
	response, err := s.deps.Client.GenerateResponse(ctx, prompt, prompts.SystemPrompt, defaultTemperature)
	if err != nil {
		return models.CandidateQuery{}, fmt.Errorf("synthesis model call: %w", err)
	}

	sql, err := ExtractSQLBlock(response)
	if errors.Is(err, apperrors.ErrNoSQLBlock) {
		s.deps.Logger.Warn("Model response contained no SQL block")
		return models.CandidateQuery{
			IsValid:  false,
			Feedback: "The model response did not contain a fenced sql block; nothing to execute.",
		}, nil
	}
	if err != nil {
		return models.CandidateQuery{}, err
	}

	candidate := models.CandidateQuery{SQL: sql, IsValid: true}
	annotate(&candidate, tableColumnIndex(tables))
	return candidate, nil
}

// scopedQuestion appends the caller's scope so the model writes the
// tenant filter the gateway will demand.
func scopedQuestion(question string, caller models.CallerContext) string {
	if caller.Unrestricted() {
		return question
	}
	scope := fmt.Sprintf("%s\n\nThe caller is restricted to diocese_id = %d", question, caller.TenantID)
	if caller.TenantName != "" {
		scope += fmt.Sprintf(" (%s)", caller.TenantName)
	}
	scope += "."
	if caller.Role == models.RoleSubTenant && caller.SubTenantID != nil {
		scope += fmt.Sprintf(" Results must also be limited to testing_center_id = %d.", *caller.SubTenantID)
	}
	return scope
}
