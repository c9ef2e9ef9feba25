// Package policy decides which row-level filters a SQL statement must
// carry and which statement classes are forbidden outright. It is a
// textual backstop layered under synthesis-level validation, not a full
// SQL parser.
package policy

import (
	"strings"
	"unicode"
)

// TokenKind classifies a scanned token.
type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenOp
)

// Token is one lexical unit of a SQL statement. Identifier text is
// lowercased; string tokens carry the literal contents with quoting
// removed.
type Token struct {
	Kind TokenKind
	Text string
}

// Scan tokenizes a SQL statement, skipping comments and treating string
// literals and quoted identifiers as single tokens. Keyword matching on
// the resulting tokens avoids false positives from keywords appearing
// inside literals or inside longer identifiers such as "truncated_at".
func Scan(sqlText string) []Token {
	var tokens []Token
	runes := []rune(sqlText)
	i := 0
	n := len(runes)

	for i < n {
		ch := runes[i]

		switch {
		case unicode.IsSpace(ch):
			i++

		// -- line comment
		case ch == '-' && i+1 < n && runes[i+1] == '-':
			for i < n && runes[i] != '\n' {
				i++
			}

		// /* block comment */
		case ch == '/' && i+1 < n && runes[i+1] == '*':
			i += 2
			for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i += 2

		// 'string literal' with '' escape
		case ch == '\'':
			i++
			var sb strings.Builder
			for i < n {
				if runes[i] == '\'' {
					if i+1 < n && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			tokens = append(tokens, Token{Kind: TokenString, Text: sb.String()})

		// "quoted identifier"
		case ch == '"':
			i++
			var sb strings.Builder
			for i < n && runes[i] != '"' {
				sb.WriteRune(runes[i])
				i++
			}
			i++ // closing quote
			tokens = append(tokens, Token{Kind: TokenIdent, Text: strings.ToLower(sb.String())})

		// identifier or keyword
		case ch == '_' || unicode.IsLetter(ch):
			start := i
			for i < n && (runes[i] == '_' || runes[i] == '$' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: strings.ToLower(string(runes[start:i]))})

		// numeric literal
		case unicode.IsDigit(ch):
			start := i
			for i < n && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: string(runes[start:i])})

		default:
			tokens = append(tokens, Token{Kind: TokenOp, Text: string(ch)})
			i++
		}
	}

	return tokens
}

// hasIdentToken reports whether any identifier token equals name.
func hasIdentToken(tokens []Token, name string) bool {
	for _, tok := range tokens {
		if tok.Kind == TokenIdent && tok.Text == name {
			return true
		}
	}
	return false
}

// hasEqualityFilter reports whether the token stream contains
// `column = value` (with value a numeric literal), in any of the textual
// forms the original heuristic accepted: spaced or unspaced equals,
// qualified or unqualified column. Qualification collapses naturally
// because the scanner splits "alias.column" into separate tokens.
func hasEqualityFilter(tokens []Token, column, value string) bool {
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i].Kind == TokenIdent && tokens[i].Text == column &&
			tokens[i+1].Kind == TokenOp && tokens[i+1].Text == "=" &&
			tokens[i+2].Kind == TokenNumber && tokens[i+2].Text == value {
			return true
		}
	}
	return false
}

// hasNameEquality reports whether any string literal equal to name
// (case-insensitive) sits adjacent to an equals operator. This is the
// "resolved tenant display name in quotes" filter form.
func hasNameEquality(tokens []Token, name string) bool {
	if name == "" {
		return false
	}
	for i, tok := range tokens {
		if tok.Kind != TokenString || !strings.EqualFold(tok.Text, name) {
			continue
		}
		if i > 0 && tokens[i-1].Kind == TokenOp && tokens[i-1].Text == "=" {
			return true
		}
		if i+1 < len(tokens) && tokens[i+1].Kind == TokenOp && tokens[i+1].Text == "=" {
			return true
		}
	}
	return false
}
