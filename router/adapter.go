package router

import (
	"context"

	"github.com/tastyGranola/bioquery/query"
)

// Record is the normalized result shape all adapters produce. The
// router never interprets Attrs beyond the enrichment key lookups it
// is configured with.
type Record struct {
	ID      string            `json:"id"`
	Domain  string            `json:"domain"`
	Title   string            `json:"title,omitempty"`
	URL     string            `json:"url,omitempty"`
	Summary string            `json:"summary,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Constraint is one resolved leaf constraint handed to an adapter. Key
// is the adapter-side key from the field registry, not the name the
// user typed. A free-text constraint has an empty Key.
type Constraint struct {
	Key     string           `json:"key,omitempty"`
	Comp    query.Comparator `json:"comp"`
	Value   string           `json:"value"`
	High    string           `json:"high,omitempty"`
	Negated bool             `json:"negated,omitempty"`
}

// FreeText reports whether the constraint is an unfielded full-text
// term.
func (c Constraint) FreeText() bool { return c.Key == "" }

// SubQuery is the per-domain slice of a parsed query: the constraints
// that are meaningful to one domain, implicitly conjoined.
type SubQuery struct {
	Domain      string       `json:"domain"`
	Constraints []Constraint `json:"constraints"`
}

// Constraint returns the first constraint for key, if any.
func (s SubQuery) Constraint(key string) (Constraint, bool) {
	for _, c := range s.Constraints {
		if c.Key == key {
			return c, true
		}
	}
	return Constraint{}, false
}

// DomainAdapter translates sub-queries into endpoint-specific calls
// and parses payloads into Records. Implementations own their endpoint
// keys and field-name mapping; the router stays payload-agnostic.
type DomainAdapter interface {
	// Domain returns the adapter's domain name, unique per router.
	Domain() string

	// Fields lists the query fields this adapter understands, keyed by
	// the name users write. Registered into the parser's field registry
	// during wiring.
	Fields() map[string]query.FieldSpec

	// Search runs one sub-query and returns records in upstream order.
	Search(ctx context.Context, sub SubQuery) ([]Record, error)

	// Get fetches a single record by its domain-native identifier.
	Get(ctx context.Context, id string) (Record, error)
}
