package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBasicTokens(t *testing.T) {
	tokens := Scan("SELECT id FROM users WHERE diocese_id = 7")

	var idents []string
	for _, tok := range tokens {
		if tok.Kind == TokenIdent {
			idents = append(idents, tok.Text)
		}
	}
	assert.Equal(t, []string{"select", "id", "from", "users", "where", "diocese_id"}, idents)
}

func TestScanSkipsComments(t *testing.T) {
	tokens := Scan("SELECT 1 -- drop table users\n/* delete everything */ FROM t")
	for _, tok := range tokens {
		assert.NotEqual(t, "drop", tok.Text)
		assert.NotEqual(t, "delete", tok.Text)
	}
}

func TestScanStringLiterals(t *testing.T) {
	tokens := Scan("SELECT * FROM d WHERE name = 'O''Brien'")

	var strs []string
	for _, tok := range tokens {
		if tok.Kind == TokenString {
			strs = append(strs, tok.Text)
		}
	}
	require.Equal(t, []string{"O'Brien"}, strs)
}

func TestScanQuotedIdentifier(t *testing.T) {
	tokens := Scan(`SELECT "Weird Name" FROM t`)
	assert.True(t, hasIdentToken(tokens, "weird name"))
}

func TestScanKeywordInsideIdentifierDoesNotMatch(t *testing.T) {
	tokens := Scan("SELECT truncated_at, dropped_count FROM audit")
	assert.False(t, hasIdentToken(tokens, "truncate"))
	assert.False(t, hasIdentToken(tokens, "drop"))
	assert.True(t, hasIdentToken(tokens, "truncated_at"))
}

func TestScanKeywordInsideStringDoesNotMatch(t *testing.T) {
	tokens := Scan("SELECT * FROM log WHERE action = 'drop table users'")
	assert.False(t, hasIdentToken(tokens, "drop"))
}

func TestHasEqualityFilterForms(t *testing.T) {
	// Every textual form the original heuristic accepted must pass.
	forms := []string{
		"SELECT * FROM users WHERE diocese_id = 7",
		"SELECT * FROM users WHERE diocese_id=7",
		"SELECT * FROM users u WHERE u.diocese_id = 7",
		"SELECT * FROM users u WHERE u.diocese_id=7",
		"select * from users where DIOCESE_ID = 7",
	}
	for _, form := range forms {
		assert.True(t, hasEqualityFilter(Scan(form), "diocese_id", "7"), form)
	}

	assert.False(t, hasEqualityFilter(Scan("SELECT * FROM users WHERE diocese_id = 8"), "diocese_id", "7"))
	assert.False(t, hasEqualityFilter(Scan("SELECT * FROM users"), "diocese_id", "7"))
}

func TestHasNameEquality(t *testing.T) {
	tokens := Scan("SELECT * FROM users u JOIN dioceses d ON u.diocese_id = d.id WHERE d.name = 'Archdiocese of Boston'")
	assert.True(t, hasNameEquality(tokens, "Archdiocese of Boston"))
	assert.True(t, hasNameEquality(tokens, "archdiocese of boston"))
	assert.False(t, hasNameEquality(tokens, "Diocese of Springfield"))
	assert.False(t, hasNameEquality(tokens, ""))
}
