package router

import (
	"sort"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/query"
)

// Mode says how a plan executes.
type Mode string

const (
	ModeSingleDomain Mode = "single-domain"
	ModeFanOut       Mode = "fan-out"
)

// Plan is the set of per-domain sub-queries derived from one parsed
// query tree. Queries are ordered by domain name so execution and
// aggregation are deterministic.
type Plan struct {
	Mode    Mode
	Queries []SubQuery
}

// Domains lists the domains in the plan, in order.
func (p *Plan) Domains() []string {
	out := make([]string, len(p.Queries))
	for i, q := range p.Queries {
		out[i] = q.Domain
	}
	return out
}

// BuildPlan walks a parsed tree and derives one sub-query per domain.
// A field constraint routes to the domains its field resolves to; a
// free-text constraint routes to every eligible domain. Each domain
// receives only the constraints meaningful to it.
func BuildPlan(root query.Node, eligible []string) (*Plan, error) {
	if root == nil {
		return nil, errors.WrapPermanent(errors.ErrEmptyPlan, "Router", "BuildPlan", "no routable domain")
	}

	byDomain := make(map[string][]Constraint)
	collect(root, false, eligible, byDomain)
	if len(byDomain) == 0 {
		return nil, errors.WrapPermanent(errors.ErrEmptyPlan, "Router", "BuildPlan", "no routable domain")
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	plan := &Plan{Mode: ModeSingleDomain}
	if len(domains) > 1 {
		plan.Mode = ModeFanOut
	}
	for _, d := range domains {
		plan.Queries = append(plan.Queries, SubQuery{Domain: d, Constraints: byDomain[d]})
	}
	return plan, nil
}

func collect(n query.Node, negated bool, eligible []string, out map[string][]Constraint) {
	switch v := n.(type) {
	case *query.Leaf:
		c := Constraint{
			Comp:    v.Comp,
			Value:   v.Value,
			High:    v.High,
			Negated: negated,
		}
		targets := v.Domains
		if v.FreeText {
			targets = eligible
		} else {
			c.Key = v.Key
		}
		for _, d := range targets {
			out[d] = append(out[d], c)
		}
	case *query.Not:
		collect(v.Expr, !negated, eligible, out)
	case *query.Binary:
		collect(v.Left, negated, eligible, out)
		collect(v.Right, negated, eligible, out)
	}
}
