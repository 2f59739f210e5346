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

const DomainVariants = "variants"

// Variants queries a ClinVar-style variant endpoint. Each record's
// summary combines clinical significance with the primary condition,
// which is what the gene-key enrichment join attaches onto article
// results.
type Variants struct {
	gw     Caller
	logger *slog.Logger
}

func NewVariants(gw Caller, logger *slog.Logger) *Variants {
	if logger == nil {
		logger = slog.Default()
	}
	return &Variants{gw: gw, logger: logger}
}

func (v *Variants) Domain() string { return DomainVariants }

func (v *Variants) Fields() map[string]query.FieldSpec {
	return map[string]query.FieldSpec{
		"variants.significance": {Key: "significance", Domains: []string{DomainVariants}},
		"variants.review":       {Key: "review", Domains: []string{DomainVariants}},
	}
}

type variantsPayload struct {
	Variants []struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Gene         string   `json:"gene"`
		Significance string   `json:"significance"`
		Conditions   []string `json:"conditions"`
	} `json:"variants"`
}

func (v *Variants) Search(ctx context.Context, sub router.SubQuery) ([]router.Record, error) {
	params := map[string]string{
		"term": terms(sub, "significance", "review"),
	}
	if c, ok := sub.Constraint("significance"); ok && !c.Negated {
		params["significance"] = c.Value
	}
	if c, ok := sub.Constraint("review"); ok && !c.Negated {
		params["review_status"] = c.Value
	}

	resp, err := v.gw.Execute(ctx, DomainVariants, gateway.Request{
		Path:   "/variants",
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	var payload variantsPayload
	if err := decode(resp, "variants", &payload); err != nil {
		return nil, err
	}

	records := make([]router.Record, 0, len(payload.Variants))
	for _, hit := range payload.Variants {
		rec := router.Record{
			ID:     hit.ID,
			Domain: DomainVariants,
			Title:  hit.Name,
			Attrs:  map[string]string{},
		}
		if hit.Gene != "" {
			rec.Attrs["gene"] = hit.Gene
		}
		if hit.Significance != "" {
			rec.Attrs["significance"] = hit.Significance
		}
		rec.Summary = variantSummary(hit.Significance, hit.Conditions)
		records = append(records, rec)
	}
	v.logger.Debug("variants search complete", "hits", len(records))
	return records, nil
}

func (v *Variants) Get(ctx context.Context, id string) (router.Record, error) {
	resp, err := v.gw.Execute(ctx, DomainVariants, gateway.Request{
		Path:   "/variants/" + id,
		Params: map[string]string{},
	})
	if err != nil {
		return router.Record{}, err
	}

	var payload variantsPayload
	if err := decode(resp, "variants", &payload); err != nil {
		return router.Record{}, err
	}
	if len(payload.Variants) == 0 {
		return router.Record{}, errors.WrapPermanent(
			fmt.Errorf("variant %q not found", id), "Variants", "Get", "lookup")
	}
	hit := payload.Variants[0]
	return router.Record{
		ID:      hit.ID,
		Domain:  DomainVariants,
		Title:   hit.Name,
		Summary: variantSummary(hit.Significance, hit.Conditions),
		Attrs:   map[string]string{"gene": hit.Gene, "significance": hit.Significance},
	}, nil
}

func variantSummary(significance string, conditions []string) string {
	switch {
	case significance == "" && len(conditions) == 0:
		return ""
	case len(conditions) == 0:
		return significance
	case significance == "":
		return strings.Join(conditions, "; ")
	default:
		return significance + " (" + strings.Join(conditions, "; ") + ")"
	}
}
