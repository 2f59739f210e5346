package query

import (
	"fmt"
	"strings"

	"github.com/tastyGranola/bioquery/errors"
)

// Result is a parsed query: the tree plus any non-fatal warnings
// collected while parsing. Warnings never abort a parse; terms the
// parser cannot resolve degrade to free text instead.
type Result struct {
	Root     Node
	Warnings []string
}

// Parser turns unified query strings into trees, resolving field names
// through a registry. Precedence is NOT over AND over OR, and adjacent
// terms without an operator are joined with an implicit AND.
type Parser struct {
	reg *FieldRegistry
}

func NewParser(reg *FieldRegistry) *Parser {
	if reg == nil {
		reg = NewFieldRegistry()
	}
	return &Parser{reg: reg}
}

func (p *Parser) Parse(input string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.WrapPermanent(errors.ErrEmptyQuery, "Parser", "Parse", "empty query")
	}
	s := &parseState{
		tokens: newLexer(input).tokens(),
		reg:    p.reg,
	}
	root := s.parseOr()
	if tok := s.peek(); tok.kind != tokenEOF {
		s.warnf("unexpected %q at offset %d, ignoring rest of query", tok.text, tok.pos)
	}
	if root == nil {
		return nil, errors.WrapPermanent(errors.ErrEmptyQuery, "Parser", "Parse", "empty query")
	}
	return &Result{Root: root, Warnings: s.warnings}, nil
}

type parseState struct {
	tokens   []token
	pos      int
	reg      *FieldRegistry
	warnings []string
}

func (s *parseState) peek() token {
	return s.tokens[s.pos]
}

func (s *parseState) next() token {
	t := s.tokens[s.pos]
	if t.kind != tokenEOF {
		s.pos++
	}
	return t
}

func (s *parseState) warnf(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *parseState) parseOr() Node {
	left := s.parseAnd()
	for left != nil && s.peek().kind == tokenOr {
		s.next()
		right := s.parseAnd()
		if right == nil {
			s.warnf("dangling OR with no right-hand term")
			return left
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
	return left
}

func (s *parseState) parseAnd() Node {
	left := s.parseUnary()
	for left != nil {
		switch tok := s.peek(); {
		case tok.kind == tokenAnd:
			s.next()
		case startsTerm(tok):
			// implicit AND between adjacent terms
		default:
			return left
		}
		right := s.parseUnary()
		if right == nil {
			s.warnf("dangling AND with no right-hand term")
			return left
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left
}

func (s *parseState) parseUnary() Node {
	if s.peek().kind == tokenNot {
		s.next()
		expr := s.parseUnary()
		if expr == nil {
			s.warnf("NOT with no term to negate")
			return nil
		}
		return &Not{Expr: expr}
	}
	return s.parsePrimary()
}

func (s *parseState) parsePrimary() Node {
	switch tok := s.peek(); tok.kind {
	case tokenLParen:
		s.next()
		inner := s.parseOr()
		if s.peek().kind == tokenRParen {
			s.next()
		} else {
			s.warnf("missing closing parenthesis")
		}
		return inner
	case tokenWord:
		return s.parseTerm()
	case tokenEOF:
		return nil
	default:
		s.warnf("unexpected %q at offset %d", tok.text, tok.pos)
		s.next()
		return s.parsePrimary()
	}
}

// parseTerm reads either a field constraint (word ":" value) or a bare
// free-text word.
func (s *parseState) parseTerm() Node {
	word := s.next()
	if word.quoted || s.peek().kind != tokenColon {
		return &Leaf{FreeText: true, Value: word.text}
	}
	s.next() // colon

	leaf := &Leaf{Field: word.text}
	switch tok := s.peek(); tok.kind {
	case tokenGT:
		s.next()
		leaf.Comp = CompGT
		leaf.Value = s.termValue(word.text)
	case tokenLT:
		s.next()
		leaf.Comp = CompLT
		leaf.Value = s.termValue(word.text)
	case tokenWord:
		s.next()
		leaf.Value = tok.text
		if s.peek().kind == tokenRange {
			s.next()
			leaf.Comp = CompRange
			leaf.High = s.termValue(word.text)
		}
	default:
		s.warnf("field %q has no value, treating as free text", word.text)
		return &Leaf{FreeText: true, Value: word.text}
	}

	return s.resolveLeaf(leaf)
}

// termValue reads the value token after a comparator, degrading to an
// empty string with a warning if it is missing.
func (s *parseState) termValue(field string) string {
	if s.peek().kind == tokenWord {
		return s.next().text
	}
	s.warnf("field %q comparator has no value", field)
	return ""
}

// resolveLeaf looks the field up in the registry and type-checks the
// value. Unknown fields and type mismatches degrade the whole term to
// free text, reported as a warning, never as a hard error.
func (s *parseState) resolveLeaf(leaf *Leaf) Node {
	spec, ok := s.reg.Resolve(leaf.Field)
	if !ok {
		s.warnf("unknown field %q, treating term as free text", leaf.Field)
		return &Leaf{FreeText: true, Value: leaf.String()}
	}
	if err := spec.checkValue(leaf.Value); err != nil {
		s.warnf("field %q: %v, treating term as free text", leaf.Field, err)
		return &Leaf{FreeText: true, Value: leaf.String()}
	}
	if leaf.Comp == CompRange {
		if err := spec.checkValue(leaf.High); err != nil {
			s.warnf("field %q: %v, treating term as free text", leaf.Field, err)
			return &Leaf{FreeText: true, Value: leaf.String()}
		}
	}
	leaf.Key = spec.Key
	leaf.Domains = append([]string(nil), spec.Domains...)
	return leaf
}

func startsTerm(tok token) bool {
	return tok.kind == tokenWord || tok.kind == tokenNot || tok.kind == tokenLParen
}
