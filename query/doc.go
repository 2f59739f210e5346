// Package query parses the unified query syntax into an immutable
// tree of field constraints and boolean operators.
//
// The grammar, informally:
//
//	query := or
//	or    := and ("OR" and)*
//	and   := unary (["AND"] unary)*
//	unary := ["NOT"] primary
//	primary := "(" or ")" | field ":" value | word
//	value := [">"|"<"] word | word ".." word
//
// Field names resolve through a FieldRegistry populated by the domain
// adapters. A term the parser cannot resolve is not an error: it
// degrades to a free-text constraint and surfaces as a parse warning,
// since partial understanding beats total rejection for hand-typed
// input.
package query
