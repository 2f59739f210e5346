package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/gateway"
	"github.com/tastyGranola/bioquery/query"
	"github.com/tastyGranola/bioquery/router"
)

const DomainTrials = "trials"

// Trials searches a clinical-trial registry endpoint.
//
// NCT identifiers get special routing. An nct constraint on its own is
// a direct lookup by ID. An nct constraint combined with any other
// constraint runs the full search and then intersects the result set
// with the given ID, so the other constraints still apply. A negated
// nct constraint excludes that ID from search results instead.
type Trials struct {
	gw     Caller
	logger *slog.Logger
}

func NewTrials(gw Caller, logger *slog.Logger) *Trials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trials{gw: gw, logger: logger}
}

func (t *Trials) Domain() string { return DomainTrials }

func (t *Trials) Fields() map[string]query.FieldSpec {
	return map[string]query.FieldSpec{
		"nct":              {Key: "nct", Domains: []string{DomainTrials}, Type: query.TypeID},
		"trials.condition": {Key: "condition", Domains: []string{DomainTrials}},
		"trials.status":    {Key: "status", Domains: []string{DomainTrials}},
		"trials.phase":     {Key: "phase", Domains: []string{DomainTrials}, Type: query.TypeNumber},
	}
}

type trialsPayload struct {
	Studies []struct {
		NCTID      string   `json:"nctId"`
		Title      string   `json:"title"`
		Status     string   `json:"status"`
		Phase      string   `json:"phase"`
		Conditions []string `json:"conditions"`
	} `json:"studies"`
	TotalCount int `json:"totalCount"`
}

func (t *Trials) Search(ctx context.Context, sub router.SubQuery) ([]router.Record, error) {
	nct, hasNCT := sub.Constraint("nct")

	if hasNCT && !nct.Negated && len(sub.Constraints) == 1 {
		rec, err := t.Get(ctx, nct.Value)
		if err != nil {
			return nil, err
		}
		return []router.Record{rec}, nil
	}

	records, err := t.search(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !hasNCT {
		return records, nil
	}

	// Intersection: the ID filter narrows the search result set rather
	// than replacing the search.
	want := normalizeNCT(nct.Value)
	filtered := records[:0]
	for _, rec := range records {
		match := normalizeNCT(rec.ID) == want
		if match != nct.Negated {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func (t *Trials) search(ctx context.Context, sub router.SubQuery) ([]router.Record, error) {
	params := map[string]string{
		"query": terms(sub, "nct", "condition", "status", "phase"),
	}
	if c, ok := sub.Constraint("condition"); ok && !c.Negated {
		params["condition"] = c.Value
	}
	if c, ok := sub.Constraint("status"); ok && !c.Negated {
		params["status"] = strings.ToUpper(c.Value)
	}
	if c, ok := sub.Constraint("phase"); ok && !c.Negated {
		params["phase"] = c.Value
	}

	resp, err := t.gw.Execute(ctx, DomainTrials, gateway.Request{
		Path:   "/studies",
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	var payload trialsPayload
	if err := decode(resp, "trials", &payload); err != nil {
		return nil, err
	}

	records := make([]router.Record, 0, len(payload.Studies))
	for _, study := range payload.Studies {
		records = append(records, t.record(study.NCTID, study.Title, study.Status, study.Phase, study.Conditions))
	}
	t.logger.Debug("trials search complete",
		"hits", len(records), "upstream_count", payload.TotalCount)
	return records, nil
}

func (t *Trials) Get(ctx context.Context, id string) (router.Record, error) {
	id = normalizeNCT(id)
	resp, err := t.gw.Execute(ctx, DomainTrials, gateway.Request{
		Path:   "/studies/" + id,
		Params: map[string]string{},
	})
	if err != nil {
		return router.Record{}, err
	}

	var payload trialsPayload
	if err := decode(resp, "trials", &payload); err != nil {
		return router.Record{}, err
	}
	if len(payload.Studies) == 0 {
		return router.Record{}, errors.WrapPermanent(
			fmt.Errorf("trial %q not found", id), "Trials", "Get", "lookup")
	}
	s := payload.Studies[0]
	return t.record(s.NCTID, s.Title, s.Status, s.Phase, s.Conditions), nil
}

func (t *Trials) record(nctID, title, status, phase string, conditions []string) router.Record {
	rec := router.Record{
		ID:     normalizeNCT(nctID),
		Domain: DomainTrials,
		Title:  title,
		URL:    "https://clinicaltrials.gov/study/" + normalizeNCT(nctID),
		Attrs:  map[string]string{},
	}
	if status != "" {
		rec.Attrs["status"] = status
	}
	if phase != "" {
		rec.Attrs["phase"] = phase
	}
	if len(conditions) > 0 {
		rec.Attrs["condition"] = conditions[0]
	}
	return rec
}

func normalizeNCT(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
