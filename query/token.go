package query

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenWord
	tokenColon
	tokenLParen
	tokenRParen
	tokenGT
	tokenLT
	tokenRange
	tokenAnd
	tokenOr
	tokenNot
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "EOF"
	case tokenWord:
		return "word"
	case tokenColon:
		return ":"
	case tokenLParen:
		return "("
	case tokenRParen:
		return ")"
	case tokenGT:
		return ">"
	case tokenLT:
		return "<"
	case tokenRange:
		return ".."
	case tokenAnd:
		return "AND"
	case tokenOr:
		return "OR"
	case tokenNot:
		return "NOT"
	default:
		return "unknown"
	}
}

type token struct {
	kind   tokenKind
	text   string
	pos    int
	quoted bool
}

// lexer splits a query string into tokens. Boolean keywords are only
// recognized in upper case so that free text like "rock and roll" is
// not silently restructured.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() token {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}
	}

	start := l.pos
	switch c := l.input[l.pos]; c {
	case ':':
		l.pos++
		return token{kind: tokenColon, text: ":", pos: start}
	case '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}
	case ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}
	case '>':
		l.pos++
		return token{kind: tokenGT, text: ">", pos: start}
	case '<':
		l.pos++
		return token{kind: tokenLT, text: "<", pos: start}
	case '"':
		return l.quoted()
	case '.':
		if strings.HasPrefix(l.input[l.pos:], "..") {
			l.pos += 2
			return token{kind: tokenRange, text: "..", pos: start}
		}
	}
	return l.word()
}

func (l *lexer) quoted() token {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		b.WriteByte(l.input[l.pos])
		l.pos++
	}
	if l.pos < len(l.input) {
		l.pos++ // closing quote
	}
	return token{kind: tokenWord, text: b.String(), pos: start, quoted: true}
}

func (l *lexer) word() token {
	start := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == ':' || c == '(' || c == ')' || c == '>' || c == '<' || c == '"' || unicode.IsSpace(rune(c)) {
			break
		}
		// A bare dot stays inside the word (trials.condition); a double
		// dot terminates it so ranges like 2010..2020 split cleanly.
		if c == '.' && strings.HasPrefix(l.input[l.pos:], "..") {
			break
		}
		l.pos++
	}
	text := l.input[start:l.pos]
	switch text {
	case "AND":
		return token{kind: tokenAnd, text: text, pos: start}
	case "OR":
		return token{kind: tokenOr, text: text, pos: start}
	case "NOT":
		return token{kind: tokenNot, text: text, pos: start}
	}
	return token{kind: tokenWord, text: text, pos: start}
}

// tokens consumes the whole input.
func (l *lexer) tokens() []token {
	var out []token
	for {
		t := l.next()
		out = append(out, t)
		if t.kind == tokenEOF {
			return out
		}
	}
}
