package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/metric"
	"github.com/tastyGranola/bioquery/query"
)

const defaultDeadline = 30 * time.Second

// DomainResult is one domain's contribution to an aggregate: its
// records in upstream order, or an error when the domain failed.
// A failed domain carries an empty record list, never a nil aggregate.
type DomainResult struct {
	Domain     string   `json:"domain"`
	Records    []Record `json:"records"`
	Error      string   `json:"error,omitempty"`
	ErrorClass string   `json:"error_class,omitempty"`
	Elapsed    int64    `json:"elapsed_ms"`
}

// Aggregate is the envelope returned to the caller. Results appear in
// plan order; records are never interleaved or re-ranked across
// domains.
type Aggregate struct {
	RequestID string         `json:"request_id"`
	Mode      Mode           `json:"mode"`
	Results   []DomainResult `json:"results"`
	Warnings  []string       `json:"parse_warnings,omitempty"`
	Total     int            `json:"total"`
	Elapsed   int64          `json:"elapsed_ms"`
}

// Enrichment is an additive same-key join: records in the To domain
// that share attribute Key with a record in the From domain get that
// record's summary attached under Attr. Primary results are never
// replaced or re-ordered.
type Enrichment struct {
	From string
	To   string
	Key  string
	Attr string
}

// Router parses queries, builds routing plans, and executes them with
// one concurrent task per domain under a shared deadline.
type Router struct {
	parser      *query.Parser
	registry    *query.FieldRegistry
	adapters    map[string]DomainAdapter
	shared      map[string]query.FieldSpec
	deadline    time.Duration
	enrichments []Enrichment
	logger      *slog.Logger
	metrics     *metric.Metrics
}

type Option func(*Router)

func WithDeadline(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.deadline = d
		}
	}
}

func WithEnrichment(e Enrichment) Option {
	return func(r *Router) { r.enrichments = append(r.enrichments, e) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithSharedFields registers domain-agnostic fields that span several
// adapters, like gene or disease. Adapter-owned fields are registered
// separately from each adapter's Fields map.
func WithSharedFields(fields map[string]query.FieldSpec) Option {
	return func(r *Router) { r.shared = fields }
}

// New builds a router over the given adapters. Each adapter's fields
// are registered into a shared field registry; a duplicate field name
// across adapters is a wiring error.
func New(adapters []DomainAdapter, opts ...Option) (*Router, error) {
	r := &Router{
		registry: query.NewFieldRegistry(),
		adapters: make(map[string]DomainAdapter, len(adapters)),
		deadline: defaultDeadline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for name, spec := range r.shared {
		if err := r.registry.Register(name, spec); err != nil {
			return nil, fmt.Errorf("router.new: %w", err)
		}
	}
	for _, a := range adapters {
		domain := a.Domain()
		if domain == "" {
			return nil, fmt.Errorf("router.new: adapter with empty domain")
		}
		if _, dup := r.adapters[domain]; dup {
			return nil, fmt.Errorf("router.new: duplicate adapter for domain %q", domain)
		}
		r.adapters[domain] = a
		for name, spec := range a.Fields() {
			if err := r.registry.Register(name, spec); err != nil {
				return nil, fmt.Errorf("router.new: %w", err)
			}
		}
	}
	r.parser = query.NewParser(r.registry)
	return r, nil
}

// Registry exposes the shared field registry, mainly for callers that
// want to list queryable fields.
func (r *Router) Registry() *query.FieldRegistry { return r.registry }

// Search is the full pipeline: parse, plan, execute. Parse warnings
// ride along in the aggregate.
func (r *Router) Search(ctx context.Context, input string) (*Aggregate, error) {
	parsed, err := r.parser.Parse(input)
	if err != nil {
		return nil, err
	}
	plan, err := r.Plan(parsed.Root)
	if err != nil {
		return nil, err
	}
	agg, err := r.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	agg.Warnings = parsed.Warnings
	return agg, nil
}

// Plan derives a routing plan from a parsed tree. Domains with no
// registered adapter are dropped from the plan.
func (r *Router) Plan(root query.Node) (*Plan, error) {
	eligible := make([]string, 0, len(r.adapters))
	for d := range r.adapters {
		eligible = append(eligible, d)
	}
	plan, err := BuildPlan(root, eligible)
	if err != nil {
		return nil, err
	}
	kept := plan.Queries[:0]
	for _, sub := range plan.Queries {
		if _, ok := r.adapters[sub.Domain]; ok {
			kept = append(kept, sub)
		} else {
			r.logger.Warn("no adapter for routed domain, dropping",
				"domain", sub.Domain)
		}
	}
	plan.Queries = kept
	if len(plan.Queries) == 0 {
		return nil, errors.WrapPermanent(errors.ErrEmptyPlan, "Router", "Plan", "no adapter for any routed domain")
	}
	if len(plan.Queries) == 1 {
		plan.Mode = ModeSingleDomain
	}
	return plan, nil
}

// Execute dispatches one task per sub-query and gathers when all have
// settled. One domain's failure degrades that domain's entry; it never
// fails the whole call. The aggregate is assembled only after every
// task has resolved.
func (r *Router) Execute(ctx context.Context, plan *Plan) (*Aggregate, error) {
	if plan == nil || len(plan.Queries) == 0 {
		return nil, errors.WrapPermanent(errors.ErrEmptyPlan, "Router", "Execute", "empty plan")
	}

	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	start := time.Now()
	requestID := uuid.NewString()
	results := make([]DomainResult, len(plan.Queries))

	var wg sync.WaitGroup
	for i, sub := range plan.Queries {
		wg.Add(1)
		go func(i int, sub SubQuery) {
			defer wg.Done()
			results[i] = r.runDomain(ctx, sub)
		}(i, sub)
	}
	wg.Wait()

	agg := &Aggregate{
		RequestID: requestID,
		Mode:      plan.Mode,
		Results:   results,
		Elapsed:   time.Since(start).Milliseconds(),
	}
	for _, res := range results {
		agg.Total += len(res.Records)
	}
	r.applyEnrichments(agg)

	if r.metrics != nil {
		r.metrics.FanoutDomains.WithLabelValues(string(plan.Mode)).Observe(float64(len(plan.Queries)))
	}
	r.logger.Info("federated query complete",
		"request_id", requestID,
		"mode", plan.Mode,
		"domains", len(plan.Queries),
		"total", agg.Total,
		"elapsed_ms", agg.Elapsed)
	return agg, nil
}

func (r *Router) runDomain(ctx context.Context, sub SubQuery) DomainResult {
	start := time.Now()
	res := DomainResult{Domain: sub.Domain, Records: []Record{}}

	adapter := r.adapters[sub.Domain]
	records, err := adapter.Search(ctx, sub)
	res.Elapsed = time.Since(start).Milliseconds()
	if err != nil {
		class := errors.ClassOf(err)
		res.Error = err.Error()
		res.ErrorClass = class.String()
		if r.metrics != nil {
			r.metrics.ErrorsTotal.WithLabelValues("router", class.String()).Inc()
		}
		r.logger.Warn("domain search failed",
			"domain", sub.Domain,
			"class", class.String(),
			"error", err)
		return res
	}
	if records != nil {
		res.Records = records
	}
	return res
}

// applyEnrichments performs the configured same-key joins. Joins only
// add attributes; they never replace a record's own value for Attr.
func (r *Router) applyEnrichments(agg *Aggregate) {
	for _, e := range r.enrichments {
		var from, to *DomainResult
		for i := range agg.Results {
			switch agg.Results[i].Domain {
			case e.From:
				from = &agg.Results[i]
			case e.To:
				to = &agg.Results[i]
			}
		}
		if from == nil || to == nil {
			continue
		}

		summaries := make(map[string]string)
		for _, rec := range from.Records {
			key := rec.Attrs[e.Key]
			if key == "" || rec.Summary == "" {
				continue
			}
			if _, seen := summaries[key]; !seen {
				summaries[key] = rec.Summary
			}
		}
		for i := range to.Records {
			rec := &to.Records[i]
			key := rec.Attrs[e.Key]
			if key == "" {
				continue
			}
			summary, ok := summaries[key]
			if !ok {
				continue
			}
			if rec.Attrs == nil {
				rec.Attrs = make(map[string]string)
			}
			if _, taken := rec.Attrs[e.Attr]; !taken {
				rec.Attrs[e.Attr] = summary
			}
		}
	}
}
