// Package adapters holds the production domain adapters: articles
// (literature search), variants (clinical variant lookup), and trials
// (trial registry search). Each adapter translates a routed sub-query
// into an endpoint-specific request through the gateway and parses the
// payload into the normalized record shape.
package adapters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/gateway"
	"github.com/tastyGranola/bioquery/query"
	"github.com/tastyGranola/bioquery/router"
)

// Caller is the slice of the gateway the adapters consume.
type Caller interface {
	Execute(ctx context.Context, endpointKey string, req gateway.Request) (*gateway.Response, error)
}

// SharedFields are the domain-agnostic query fields every adapter
// understands. Registered once at wiring time, alongside each
// adapter's own scoped fields.
func SharedFields() map[string]query.FieldSpec {
	domains := []string{DomainArticles, DomainVariants, DomainTrials}
	return map[string]query.FieldSpec{
		"gene":    {Key: "gene", Domains: domains},
		"variant": {Key: "variant", Domains: []string{DomainArticles, DomainVariants}},
		"disease": {Key: "disease", Domains: domains},
	}
}

func decode(resp *gateway.Response, component string, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return errors.WrapPermanent(err, component, "decode", "payload parse")
	}
	return nil
}

// terms flattens a sub-query into upstream full-text syntax: values
// joined by AND, negated constraints prefixed with NOT. Keyed
// constraints the caller already mapped to dedicated params are
// skipped by listing their keys in used.
func terms(sub router.SubQuery, used ...string) string {
	skip := make(map[string]bool, len(used))
	for _, k := range used {
		skip[k] = true
	}
	var parts []string
	for _, c := range sub.Constraints {
		if !c.FreeText() && skip[c.Key] {
			continue
		}
		term := c.Value
		if c.Negated {
			term = "NOT " + term
		}
		parts = append(parts, term)
	}
	return strings.Join(parts, " AND ")
}
