package synthesis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
)

func TestSinglePassSynthesizesScopedCount(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)

	var seenPrompt, seenSystem string
	mock.GenerateResponseFunc = func(_ context.Context, prompt, system string, _ float64) (string, error) {
		seenPrompt = prompt
		seenSystem = system
		return "```sql\nSELECT COUNT(*) FROM users WHERE role_id = 3 AND diocese_id = 43\n```", nil
	}

	orch := NewSinglePass(deps)
	candidate, err := orch.Synthesize(context.Background(),
		"How many students are there?",
		models.CallerContext{TenantID: 43, Role: models.RoleTenant})
	require.NoError(t, err)

	assert.True(t, candidate.IsValid)
	assert.Contains(t, candidate.SQL, "FROM users")
	assert.Contains(t, candidate.SQL, "diocese_id = 43")

	// The prompt carries the caller's scope and the schema description.
	assert.Contains(t, seenPrompt, "How many students are there?")
	assert.Contains(t, seenPrompt, "diocese_id = 43")
	assert.Contains(t, seenPrompt, "public.users")
	assert.Contains(t, seenSystem, "NULLIF")
}

func TestSinglePassMissingSQLBlock(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "I am unable to write that query.", nil
	}

	orch := NewSinglePass(deps)
	candidate, err := orch.Synthesize(context.Background(), "anything", models.Unrestricted())
	require.NoError(t, err)

	assert.False(t, candidate.IsValid)
	assert.Empty(t, candidate.SQL)
	assert.Contains(t, strings.ToLower(candidate.Feedback), "sql block")
}

func TestSinglePassAnnotatesSchemaIssues(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "```sql\nSELECT COUNT(*) FROM userss\n```", nil
	}

	orch := NewSinglePass(deps)
	candidate, err := orch.Synthesize(context.Background(), "count users", models.Unrestricted())
	require.NoError(t, err)

	require.NotNil(t, candidate.Annotations)
	require.NotEmpty(t, candidate.Annotations.SchemaIssues)
	assert.Contains(t, candidate.Annotations.Suggestions[0], `"users"`)
}
