package adapters

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/gateway"
	"github.com/tastyGranola/bioquery/query"
	"github.com/tastyGranola/bioquery/router"
)

// fakeCaller records the requests it sees and replays canned bodies,
// one per call.
type fakeCaller struct {
	requests []gateway.Request
	keys     []string
	bodies   []string
	err      error
}

func (f *fakeCaller) Execute(_ context.Context, key string, req gateway.Request) (*gateway.Response, error) {
	f.keys = append(f.keys, key)
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	body := f.bodies[0]
	if len(f.bodies) > 1 {
		f.bodies = f.bodies[1:]
	}
	return &gateway.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func sub(domain string, constraints ...router.Constraint) router.SubQuery {
	return router.SubQuery{Domain: domain, Constraints: constraints}
}

func TestArticles_Search(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{
		"results": [
			{"pmid": 12345, "title": "BRAF V600E in melanoma", "journal": "Nature", "year": 2019, "genes": ["BRAF"]},
			{"pmid": 67890, "title": "Resistance mechanisms", "year": 2021}
		],
		"count": 2
	}`}}
	a := NewArticles(gw, nil)

	records, err := a.Search(context.Background(), sub(DomainArticles,
		router.Constraint{Key: "gene", Value: "BRAF"},
		router.Constraint{Key: "year", Comp: query.CompGT, Value: "2015"},
	))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "PMID:12345", records[0].ID)
	assert.Equal(t, DomainArticles, records[0].Domain)
	assert.Equal(t, "BRAF", records[0].Attrs["gene"])
	assert.Equal(t, "Nature", records[0].Attrs["journal"])
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345/", records[0].URL)

	require.Len(t, gw.requests, 1)
	assert.Equal(t, []string{DomainArticles}, gw.keys)
	assert.Equal(t, "BRAF", gw.requests[0].Params["text"])
	assert.Equal(t, "2015", gw.requests[0].Params["min_year"])
}

func TestArticles_YearRange(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{"results": [], "count": 0}`}}
	a := NewArticles(gw, nil)

	_, err := a.Search(context.Background(), sub(DomainArticles,
		router.Constraint{Key: "year", Comp: query.CompRange, Value: "2010", High: "2020"},
	))
	require.NoError(t, err)
	assert.Equal(t, "2010", gw.requests[0].Params["min_year"])
	assert.Equal(t, "2020", gw.requests[0].Params["max_year"])
}

func TestArticles_GatewayErrorPropagates(t *testing.T) {
	gw := &fakeCaller{err: errors.CircuitOpenError("articles")}
	a := NewArticles(gw, nil)

	_, err := a.Search(context.Background(), sub(DomainArticles,
		router.Constraint{Value: "melanoma"},
	))
	require.Error(t, err)
	assert.Equal(t, errors.ClassCircuitOpen, errors.ClassOf(err))
}

func TestArticles_MalformedPayload(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`not json`}}
	a := NewArticles(gw, nil)

	_, err := a.Search(context.Background(), sub(DomainArticles,
		router.Constraint{Value: "melanoma"},
	))
	require.Error(t, err)
	assert.Equal(t, errors.ClassPermanent, errors.ClassOf(err))
}

func TestVariants_SearchBuildsSummary(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{
		"variants": [
			{"id": "VCV000013961", "name": "BRAF p.Val600Glu", "gene": "BRAF",
			 "significance": "Pathogenic", "conditions": ["Melanoma", "Colorectal cancer"]}
		]
	}`}}
	v := NewVariants(gw, nil)

	records, err := v.Search(context.Background(), sub(DomainVariants,
		router.Constraint{Key: "gene", Value: "BRAF"},
		router.Constraint{Key: "significance", Value: "Pathogenic"},
	))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "VCV000013961", records[0].ID)
	assert.Equal(t, "BRAF", records[0].Attrs["gene"])
	assert.Equal(t, "Pathogenic (Melanoma; Colorectal cancer)", records[0].Summary)

	assert.Equal(t, "Pathogenic", gw.requests[0].Params["significance"])
	assert.Equal(t, "BRAF", gw.requests[0].Params["term"])
}

func TestVariants_GetNotFound(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{"variants": []}`}}
	v := NewVariants(gw, nil)

	_, err := v.Get(context.Background(), "VCV000000001")
	require.Error(t, err)
	assert.Equal(t, errors.ClassPermanent, errors.ClassOf(err))
}

func TestTrials_PlainSearch(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{
		"studies": [
			{"nctId": "NCT01234567", "title": "Vemurafenib in melanoma", "status": "RECRUITING",
			 "phase": "2", "conditions": ["Melanoma"]}
		],
		"totalCount": 1
	}`}}
	tr := NewTrials(gw, nil)

	records, err := tr.Search(context.Background(), sub(DomainTrials,
		router.Constraint{Key: "condition", Value: "melanoma"},
	))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NCT01234567", records[0].ID)
	assert.Equal(t, "RECRUITING", records[0].Attrs["status"])
	assert.Equal(t, "https://clinicaltrials.gov/study/NCT01234567", records[0].URL)

	assert.Equal(t, "/studies", gw.requests[0].Path)
	assert.Equal(t, "melanoma", gw.requests[0].Params["condition"])
}

func TestTrials_LoneNCTIsDirectLookup(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{
		"studies": [{"nctId": "NCT01234567", "title": "Direct hit", "status": "COMPLETED"}]
	}`}}
	tr := NewTrials(gw, nil)

	records, err := tr.Search(context.Background(), sub(DomainTrials,
		router.Constraint{Key: "nct", Value: "nct01234567"},
	))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NCT01234567", records[0].ID)

	require.Len(t, gw.requests, 1)
	assert.Equal(t, "/studies/NCT01234567", gw.requests[0].Path, "lone id goes straight to the study resource")
}

func TestTrials_NCTWithOtherConstraintsIntersects(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{
		"studies": [
			{"nctId": "NCT01234567", "title": "Wanted", "status": "RECRUITING"},
			{"nctId": "NCT07654321", "title": "Other", "status": "RECRUITING"}
		],
		"totalCount": 2
	}`}}
	tr := NewTrials(gw, nil)

	records, err := tr.Search(context.Background(), sub(DomainTrials,
		router.Constraint{Key: "nct", Value: "NCT01234567"},
		router.Constraint{Key: "condition", Value: "melanoma"},
	))
	require.NoError(t, err)

	require.Len(t, gw.requests, 1)
	assert.Equal(t, "/studies", gw.requests[0].Path, "combined id runs the search, then filters")
	require.Len(t, records, 1)
	assert.Equal(t, "NCT01234567", records[0].ID)
}

func TestTrials_NegatedNCTExcludes(t *testing.T) {
	gw := &fakeCaller{bodies: []string{`{
		"studies": [
			{"nctId": "NCT01234567", "title": "Excluded"},
			{"nctId": "NCT07654321", "title": "Kept"}
		]
	}`}}
	tr := NewTrials(gw, nil)

	records, err := tr.Search(context.Background(), sub(DomainTrials,
		router.Constraint{Key: "nct", Value: "NCT01234567", Negated: true},
		router.Constraint{Key: "condition", Value: "melanoma"},
	))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NCT07654321", records[0].ID)
}

func TestSharedFields_CoverAllDomains(t *testing.T) {
	fields := SharedFields()
	require.Contains(t, fields, "gene")
	assert.ElementsMatch(t,
		[]string{DomainArticles, DomainVariants, DomainTrials},
		fields["gene"].Domains)
}

func TestAdapters_SatisfyRouterInterface(t *testing.T) {
	var _ router.DomainAdapter = (*Articles)(nil)
	var _ router.DomainAdapter = (*Variants)(nil)
	var _ router.DomainAdapter = (*Trials)(nil)
}
