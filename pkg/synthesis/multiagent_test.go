package synthesis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/prompts"
)

// scriptedMulti dispatches mock responses by prompt shape: constructor,
// critique, or merge.
func scriptedMulti(mock *llm.MockClient, critiqueErr map[string]error) (*int32, *int32, *int32) {
	var constructorCalls, critiqueCalls, mergeCalls int32

	mock.GenerateResponseFunc = func(_ context.Context, prompt, _ string, _ float64) (string, error) {
		switch {
		case strings.Contains(prompt, "# Review Task"):
			atomic.AddInt32(&critiqueCalls, 1)
			for name, err := range critiqueErr {
				agent := agentByName(name)
				if agent != nil && strings.Contains(prompt, agent.Focus[:40]) {
					return "", err
				}
			}
			return "Looks correct for my concern.\n```sql\nSELECT COUNT(*) FROM users WHERE role_id = 3 AND diocese_id = 43\n```", nil
		case strings.Contains(prompt, "# Final Query Generation"):
			atomic.AddInt32(&mergeCalls, 1)
			return "```sql\nSELECT COUNT(*) FROM users WHERE role_id = 3 AND diocese_id = 43\n```\nCounts student users scoped to the caller's diocese.", nil
		default:
			atomic.AddInt32(&constructorCalls, 1)
			return "```sql\nSELECT COUNT(*) FROM users WHERE role_id = 3\n```", nil
		}
	}

	return &constructorCalls, &critiqueCalls, &mergeCalls
}

func agentByName(name string) *prompts.CritiqueAgent {
	for i := range prompts.CritiqueAgents {
		if prompts.CritiqueAgents[i].Name == name {
			return &prompts.CritiqueAgents[i]
		}
	}
	return nil
}

func TestMultiAgentPipeline(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)
	constructorCalls, critiqueCalls, mergeCalls := scriptedMulti(mock, nil)

	orch := NewMultiAgent(deps)
	candidate, err := orch.Synthesize(context.Background(),
		"How many students are there?",
		models.CallerContext{TenantID: 43, Role: models.RoleTenant})
	require.NoError(t, err)

	assert.True(t, candidate.IsValid)
	assert.Contains(t, candidate.SQL, "diocese_id = 43")
	assert.NotEmpty(t, candidate.ConstructedQuery)
	assert.NotEqual(t, candidate.SQL, candidate.ConstructedQuery)
	assert.Contains(t, candidate.PlanExplanation, "Counts student users")

	assert.Equal(t, int32(1), atomic.LoadInt32(constructorCalls))
	assert.Equal(t, int32(len(prompts.CritiqueAgents)), atomic.LoadInt32(critiqueCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(mergeCalls))

	// Every reviewer's feedback reaches the candidate.
	for _, agent := range prompts.CritiqueAgents {
		assert.Contains(t, candidate.Feedback, "["+agent.Name+"]")
	}
}

func TestMultiAgentDegradedReviewerStillMerges(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)
	_, critiqueCalls, mergeCalls := scriptedMulti(mock, map[string]error{
		"null_handling": errors.New("model timeout"),
	})

	orch := NewMultiAgent(deps)
	candidate, err := orch.Synthesize(context.Background(),
		"How many students are there?", models.Unrestricted())
	require.NoError(t, err)

	assert.True(t, candidate.IsValid)
	assert.Equal(t, int32(len(prompts.CritiqueAgents)), atomic.LoadInt32(critiqueCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(mergeCalls), "merge waits for all reviewers, degraded or not")
	assert.Contains(t, candidate.Feedback, "reviewer unavailable")
}

func TestMultiAgentConstructorFailureAborts(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "", errors.New("model unavailable")
	}

	orch := NewMultiAgent(deps)
	_, err := orch.Synthesize(context.Background(), "anything", models.Unrestricted())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constructor")
}

func TestMultiAgentMergeWithoutSQLBlock(t *testing.T) {
	deps := testDeps(nil)
	mock := deps.Client.(*llm.MockClient)
	mock.GenerateResponseFunc = func(_ context.Context, prompt, _ string, _ float64) (string, error) {
		if strings.Contains(prompt, "# Final Query Generation") {
			return "The reviewers disagree and I cannot produce a final query.", nil
		}
		return "```sql\nSELECT 1\n```", nil
	}

	orch := NewMultiAgent(deps)
	candidate, err := orch.Synthesize(context.Background(), "anything", models.Unrestricted())
	require.NoError(t, err)

	assert.False(t, candidate.IsValid)
	assert.Equal(t, "SELECT 1", candidate.ConstructedQuery)
}
