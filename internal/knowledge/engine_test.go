package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/core"
)

type memCatalog struct {
	products  map[string]core.Product
	searchErr error
}

func (m *memCatalog) SearchProducts(_ context.Context, term string, limit int) ([]core.Product, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []core.Product
	for _, p := range m.products {
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memCatalog) GetProduct(_ context.Context, code string) (*core.Product, error) {
	p, ok := m.products[code]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) TopSelling(_ context.Context, limit int) ([]core.Product, error) {
	return m.SearchProducts(context.Background(), "", limit)
}

type memKnowledge struct {
	terms    []core.KnowledgeTerm
	outcomes map[int64]*core.SearchOutcome
	nextID   int64
	rates    map[string]float64
}

func newMemKnowledge() *memKnowledge {
	return &memKnowledge{
		outcomes: make(map[int64]*core.SearchOutcome),
		rates:    make(map[string]float64),
	}
}

func (m *memKnowledge) AllTerms(context.Context) ([]core.KnowledgeTerm, error) {
	return m.terms, nil
}

func (m *memKnowledge) SaveTerm(_ context.Context, t core.KnowledgeTerm) error {
	m.terms = append(m.terms, t)
	return nil
}

func (m *memKnowledge) RecordOutcome(_ context.Context, o core.SearchOutcome) (int64, error) {
	m.nextID++
	o.ID = m.nextID
	m.outcomes[o.ID] = &o
	return o.ID, nil
}

func (m *memKnowledge) ResolveOutcome(_ context.Context, id int64, fb core.Feedback) error {
	o, ok := m.outcomes[id]
	if !ok {
		return core.ErrNotFound
	}
	o.Feedback = fb
	return nil
}

func (m *memKnowledge) AcceptanceRates(context.Context) (map[string]float64, error) {
	return m.rates, nil
}

func beerCatalog() *memCatalog {
	price := func(s string) decimal.Decimal {
		d, _ := decimal.NewFromString(s)
		return d
	}
	return &memCatalog{products: map[string]core.Product{
		"P001": {Code: "P001", Description: "Cerveja Brahma Lata 350ml", RetailPrice: price("4.50")},
		"P002": {Code: "P002", Description: "Cerveja Skol Lata 350ml", RetailPrice: price("4.20")},
		"P003": {Code: "P003", Description: "Cerveja Heineken Long Neck 330ml", RetailPrice: price("7.90")},
	}}
}

func seededEngine(t *testing.T) (*Engine, *memKnowledge) {
	t.Helper()
	catalog := beerCatalog()
	repo := newMemKnowledge()
	for code, p := range catalog.products {
		repo.terms = append(repo.terms, core.KnowledgeTerm{
			Term: Normalize(p.Description), ProductCode: code, Canonical: p.Description, Source: "seed",
		})
		repo.terms = append(repo.terms, core.KnowledgeTerm{
			Term: "cerveja", ProductCode: code, Canonical: p.Description, Source: "seed",
		})
	}

	e, err := NewEngine(context.Background(), catalog, repo, Config{
		MinSimilarity:        0.5,
		CatalogMinSimilarity: 0.4,
		MaxMatches:           3,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, repo
}

func TestEngine_ExactMatch(t *testing.T) {
	e, _ := seededEngine(t)

	res, err := e.Search(context.Background(), "cerveja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Quality != QualityExcellent {
		t.Errorf("quality = %v, want excellent", res.Quality)
	}
	if res.Source != core.SourceKnowledgeBase {
		t.Errorf("source = %v, want knowledge-base", res.Source)
	}
	if len(res.Matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(res.Matches))
	}
	if res.OutcomeID == 0 {
		t.Error("search must record an outcome")
	}
}

// A one-letter typo must still find the products with "good" quality.
func TestEngine_TypoFindsProducts(t *testing.T) {
	e, _ := seededEngine(t)

	res, err := e.Search(context.Background(), "ceveja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Matches) == 0 {
		t.Fatal("typo search found nothing")
	}
	if res.Source != core.SourceFuzzy {
		t.Errorf("source = %v, want fuzzy", res.Source)
	}
	if res.Quality != QualityGood && res.Quality != QualityExcellent {
		t.Errorf("quality = %v, want at least good", res.Quality)
	}
}

// With equal similarity and no feedback history, ranking falls back to the
// canonical description so results are deterministic.
func TestEngine_StableRanking(t *testing.T) {
	e, _ := seededEngine(t)

	res, err := e.Search(context.Background(), "cerveja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := res.Matches[0].Product.Code; got != "P001" {
		t.Errorf("top match = %s, want P001 (Brahma sorts first)", got)
	}

	again, err := e.Search(context.Background(), "cerveja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := range res.Matches {
		if res.Matches[i].Product.Code != again.Matches[i].Product.Code {
			t.Fatalf("ranking not stable at %d: %s vs %s",
				i, res.Matches[i].Product.Code, again.Matches[i].Product.Code)
		}
	}
}

func TestEngine_AcceptanceBiasesRanking(t *testing.T) {
	e, repo := seededEngine(t)

	res, err := e.Search(context.Background(), "cerveja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Users consistently accept Skol for this kind of search.
	repo.rates = map[string]float64{"P002": 0.9, "P001": 0.1}
	if err := e.Feedback(context.Background(), res.OutcomeID, core.FeedbackAccepted); err != nil {
		t.Fatalf("Feedback: %v", err)
	}

	res, err = e.Search(context.Background(), "cerveja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := res.Matches[0].Product.Code; got != "P002" {
		t.Errorf("top match = %s, want P002 after positive feedback", got)
	}
}

func TestEngine_NoResults(t *testing.T) {
	e, repo := seededEngine(t)

	res, err := e.Search(context.Background(), "parafusadeira")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("matches = %d, want 0", len(res.Matches))
	}
	if res.Source != core.SourceNoResults {
		t.Errorf("source = %v, want no-results", res.Source)
	}
	if len(res.Suggestions) == 0 {
		t.Error("no-results search should carry suggestions")
	}
	if o := repo.outcomes[res.OutcomeID]; o == nil || o.Source != core.SourceNoResults {
		t.Error("no-results outcome not recorded")
	}
}

// A catalog failure propagates, but the search still leaves exactly one
// outcome row behind.
func TestEngine_CatalogErrorRecordsOutcome(t *testing.T) {
	e, repo := seededEngine(t)
	e.catalog.(*memCatalog).searchErr = errors.New("catalog down")

	_, err := e.Search(context.Background(), "parafusadeira")
	if err == nil {
		t.Fatal("Search must propagate the catalog error")
	}
	if len(repo.outcomes) != 1 {
		t.Fatalf("outcome rows = %d, want exactly 1", len(repo.outcomes))
	}
	for _, o := range repo.outcomes {
		if o.Source != core.SourceNoResults {
			t.Errorf("outcome source = %v, want no-results", o.Source)
		}
	}
}

func TestEngine_Learn(t *testing.T) {
	e, repo := seededEngine(t)
	brahma, _ := beerCatalog().GetProduct(context.Background(), "P001")

	if err := e.Learn(context.Background(), "breja", *brahma); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	res, err := e.Search(context.Background(), "breja")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Matches) == 0 || res.Matches[0].Product.Code != "P001" {
		t.Fatalf("learned term did not resolve: %#v", res.Matches)
	}
	if res.Quality != QualityExcellent {
		t.Errorf("learned exact term quality = %v, want excellent", res.Quality)
	}

	found := false
	for _, kt := range repo.terms {
		if kt.Term == "breja" && kt.Source == "learned" {
			found = true
		}
	}
	if !found {
		t.Error("learned term was not persisted")
	}
}

func TestEngine_Bootstrap(t *testing.T) {
	catalog := beerCatalog()
	repo := newMemKnowledge()
	e, err := NewEngine(context.Background(), catalog, repo, Config{MinSimilarity: 0.5, CatalogMinSimilarity: 0.4, MaxMatches: 3})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var products []core.Product
	for _, p := range catalog.products {
		products = append(products, p)
	}
	if err := e.Bootstrap(context.Background(), products); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	for _, term := range []string{"brahma", "skol", "heineken", "cerveja brahma lata 350ml"} {
		res, err := e.Search(context.Background(), term)
		if err != nil {
			t.Fatalf("Search(%q): %v", term, err)
		}
		if len(res.Matches) == 0 {
			t.Errorf("Search(%q) found nothing after bootstrap", term)
		}
	}
}
