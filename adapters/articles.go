package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/gateway"
	"github.com/tastyGranola/bioquery/query"
	"github.com/tastyGranola/bioquery/router"
)

const DomainArticles = "articles"

// Articles searches a PubTator-style literature endpoint. Results are
// PMID-keyed and carry the matched gene as an attribute so the router
// can run enrichment joins against variant records.
type Articles struct {
	gw     Caller
	logger *slog.Logger
}

func NewArticles(gw Caller, logger *slog.Logger) *Articles {
	if logger == nil {
		logger = slog.Default()
	}
	return &Articles{gw: gw, logger: logger}
}

func (a *Articles) Domain() string { return DomainArticles }

func (a *Articles) Fields() map[string]query.FieldSpec {
	return map[string]query.FieldSpec{
		"articles.author":  {Key: "author", Domains: []string{DomainArticles}},
		"articles.journal": {Key: "journal", Domains: []string{DomainArticles}},
		"articles.year":    {Key: "year", Domains: []string{DomainArticles}, Type: query.TypeNumber},
	}
}

type articlesPayload struct {
	Results []struct {
		PMID    int64    `json:"pmid"`
		Title   string   `json:"title"`
		Journal string   `json:"journal"`
		Year    int      `json:"year"`
		Genes   []string `json:"genes"`
	} `json:"results"`
	Count int `json:"count"`
}

func (a *Articles) Search(ctx context.Context, sub router.SubQuery) ([]router.Record, error) {
	params := map[string]string{
		"text": terms(sub, "author", "journal", "year"),
	}
	if c, ok := sub.Constraint("author"); ok && !c.Negated {
		params["author"] = c.Value
	}
	if c, ok := sub.Constraint("journal"); ok && !c.Negated {
		params["journal"] = c.Value
	}
	if c, ok := sub.Constraint("year"); ok && !c.Negated {
		switch c.Comp {
		case query.CompGT:
			params["min_year"] = c.Value
		case query.CompLT:
			params["max_year"] = c.Value
		case query.CompRange:
			params["min_year"] = c.Value
			params["max_year"] = c.High
		default:
			params["year"] = c.Value
		}
	}

	resp, err := a.gw.Execute(ctx, DomainArticles, gateway.Request{
		Path:   "/search",
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	var payload articlesPayload
	if err := decode(resp, "articles", &payload); err != nil {
		return nil, err
	}

	records := make([]router.Record, 0, len(payload.Results))
	for _, hit := range payload.Results {
		rec := router.Record{
			ID:     "PMID:" + strconv.FormatInt(hit.PMID, 10),
			Domain: DomainArticles,
			Title:  hit.Title,
			URL:    fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%d/", hit.PMID),
			Attrs:  map[string]string{},
		}
		if hit.Journal != "" {
			rec.Attrs["journal"] = hit.Journal
		}
		if hit.Year != 0 {
			rec.Attrs["year"] = strconv.Itoa(hit.Year)
		}
		if len(hit.Genes) > 0 {
			rec.Attrs["gene"] = hit.Genes[0]
		}
		records = append(records, rec)
	}
	a.logger.Debug("articles search complete",
		"hits", len(records), "upstream_count", payload.Count)
	return records, nil
}

func (a *Articles) Get(ctx context.Context, id string) (router.Record, error) {
	resp, err := a.gw.Execute(ctx, DomainArticles, gateway.Request{
		Path:   "/articles/" + id,
		Params: map[string]string{},
	})
	if err != nil {
		return router.Record{}, err
	}

	var payload struct {
		PMID    int64  `json:"pmid"`
		Title   string `json:"title"`
		Journal string `json:"journal"`
	}
	if err := decode(resp, "articles", &payload); err != nil {
		return router.Record{}, err
	}
	if payload.PMID == 0 {
		return router.Record{}, errors.WrapPermanent(
			fmt.Errorf("article %q not found", id), "Articles", "Get", "lookup")
	}
	return router.Record{
		ID:     "PMID:" + strconv.FormatInt(payload.PMID, 10),
		Domain: DomainArticles,
		Title:  payload.Title,
		URL:    fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%d/", payload.PMID),
		Attrs:  map[string]string{"journal": payload.Journal},
	}, nil
}
