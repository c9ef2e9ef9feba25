package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryglass/queryglass/pkg/apperrors"
)

func TestExtractSQLBlock(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  error
	}{
		{
			name:     "plain block",
			response: "Here is the query:\n```sql\nSELECT 1\n```\nDone.",
			want:     "SELECT 1",
		},
		{
			name:     "multiline statement",
			response: "```sql\nSELECT COUNT(*)\nFROM users\nWHERE diocese_id = 43\n```",
			want:     "SELECT COUNT(*)\nFROM users\nWHERE diocese_id = 43",
		},
		{
			name:     "first of two blocks wins",
			response: "```sql\nSELECT 1\n```\n```sql\nSELECT 2\n```",
			want:     "SELECT 1",
		},
		{
			name:     "no block",
			response: "I cannot answer that question.",
			wantErr:  apperrors.ErrNoSQLBlock,
		},
		{
			name:     "empty block",
			response: "```sql\n```",
			wantErr:  apperrors.ErrNoSQLBlock,
		},
		{
			name:     "plain code fence is not a sql block",
			response: "```\nSELECT 1\n```",
			wantErr:  apperrors.ErrNoSQLBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSQLBlock(tt.response)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInjectSQLBlockRoundTrip(t *testing.T) {
	sql := "SELECT COUNT(*) FROM students WHERE diocese_id = 7"
	injected := InjectSQLBlock(sql)

	extracted, err := ExtractSQLBlock("Corrected query below.\n" + injected + "\nCaveat: the original had a typo.")
	require.NoError(t, err)
	assert.Equal(t, sql, extracted)
}

func TestExplanationAfterSQL(t *testing.T) {
	response := "```sql\nSELECT 1\n```\nThe query reads nothing and returns a constant."
	assert.Equal(t, "The query reads nothing and returns a constant.", ExplanationAfterSQL(response))

	assert.Empty(t, ExplanationAfterSQL("no block here"))
}
