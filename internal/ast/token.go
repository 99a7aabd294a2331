package ast

import "strings"

type TokenKind int

const (
	// TokenText covers whitespace, punctuation and operators.
	TokenText TokenKind = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenComment
)

type Token struct {
	Kind TokenKind
	Text string
}

func joinTokens(tokens []Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteString(tok.Text)
	}
	return b.String()
}

// renameTokens rewrites identifier tokens equal to from. Literals and
// comments are left alone.
func renameTokens(tokens []Token, from, to string) int {
	n := 0
	for i := range tokens {
		if tokens[i].Kind == TokenIdent && tokens[i].Text == from {
			tokens[i].Text = to
			n++
		}
	}
	return n
}

func countTokens(tokens []Token, name string) int {
	n := 0
	for _, tok := range tokens {
		if tok.Kind == TokenIdent && tok.Text == name {
			n++
		}
	}
	return n
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// Tokenize splits one line of C-like pseudocode. It only needs to be
// precise about identifiers, literals and comments; everything else is
// passed through as TokenText.
func Tokenize(line string) []Token {
	var out []Token
	text := func(s string) {
		if s == "" {
			return
		}
		if n := len(out); n > 0 && out[n-1].Kind == TokenText {
			out[n-1].Text += s
			return
		}
		out = append(out, Token{Kind: TokenText, Text: s})
	}
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case isIdentStart(c):
			j := i + 1
			for j < len(line) && isIdentByte(line[j]) {
				j++
			}
			word := line[i:j]
			kind := TokenIdent
			if IsKeyword(word) {
				kind = TokenKeyword
			}
			out = append(out, Token{Kind: kind, Text: word})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(line) && (isIdentByte(line[j]) || line[j] == '.') {
				j++
			}
			out = append(out, Token{Kind: TokenNumber, Text: line[i:j]})
			i = j
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(line) && line[j] != c {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(line) {
				j++
			} else {
				j = len(line)
			}
			out = append(out, Token{Kind: TokenString, Text: line[i:j]})
			i = j
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			out = append(out, Token{Kind: TokenComment, Text: line[i:]})
			i = len(line)
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			end := strings.Index(line[i+2:], "*/")
			j := len(line)
			if end >= 0 {
				j = i + 2 + end + 2
			}
			out = append(out, Token{Kind: TokenComment, Text: line[i:j]})
			i = j
		default:
			text(line[i : i+1])
			i++
		}
	}
	return out
}
