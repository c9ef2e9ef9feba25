package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndNormalize(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    string
		wantErr bool
	}{
		{
			name: "plain select",
			sql:  "SELECT * FROM students",
			want: "SELECT * FROM students",
		},
		{
			name: "trailing semicolon stripped",
			sql:  "SELECT * FROM students;",
			want: "SELECT * FROM students",
		},
		{
			name: "trailing semicolon with whitespace",
			sql:  "SELECT * FROM students ;  \n",
			want: "SELECT * FROM students",
		},
		{
			name:    "two statements rejected",
			sql:     "SELECT 1; SELECT 2",
			wantErr: true,
		},
		{
			name: "semicolon inside string literal allowed",
			sql:  "SELECT * FROM notes WHERE body = 'a; b'",
			want: "SELECT * FROM notes WHERE body = 'a; b'",
		},
		{
			name: "semicolon inside quoted identifier allowed",
			sql:  `SELECT "odd;name" FROM t`,
			want: `SELECT "odd;name" FROM t`,
		},
		{
			name: "doubled quote escape",
			sql:  "SELECT * FROM t WHERE name = 'O''Brien; Jr'",
			want: "SELECT * FROM t WHERE name = 'O''Brien; Jr'",
		},
		{
			name: "empty input",
			sql:  "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.sql)
			if tt.wantErr {
				require.ErrorIs(t, result.Error, ErrMultipleStatements)
				return
			}
			require.NoError(t, result.Error)
			assert.Equal(t, tt.want, result.NormalizedSQL)
		})
	}
}

func TestCheckParameterForInjection(t *testing.T) {
	assert.Nil(t, CheckParameterForInjection("tenant", "Archdiocese of Boston"))
	assert.Nil(t, CheckParameterForInjection("limit", 100))

	result := CheckParameterForInjection("name", "'; DROP TABLE users--")
	require.NotNil(t, result)
	assert.True(t, result.IsSQLi)
	assert.Equal(t, "name", result.ParamName)
	assert.NotEmpty(t, result.Fingerprint)
}
