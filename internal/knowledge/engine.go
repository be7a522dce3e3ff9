package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/pkg/log"
)

// Quality grades how trustworthy a search result is. The reply layer words
// its answer differently per grade.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityNone      Quality = "no-results"
)

func gradeQuality(sim float64) Quality {
	switch {
	case sim >= 0.9:
		return QualityExcellent
	case sim >= 0.7:
		return QualityGood
	case sim >= 0.5:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Match is one candidate product with the score that put it there.
type Match struct {
	Product     core.Product
	Similarity  float64
	MatchedTerm string
}

// Result is everything one Search call produced, including the outcome id the
// pipeline later resolves with user feedback.
type Result struct {
	Matches     []Match
	Quality     Quality
	Source      core.SearchSource
	Suggestions []string
	OutcomeID   int64
}

type entry struct {
	code      string
	canonical string
}

// Engine answers free-text product lookups. The term index lives in memory
// under a read lock; learning takes the write lock and also persists.
type Engine struct {
	mu    sync.RWMutex
	index map[string][]entry
	rates map[string]float64

	catalog core.CatalogRepository
	repo    core.KnowledgeRepository

	minSimilarity     float64
	catalogMinSim     float64
	maxMatches        int
	suggestionMatches int
}

type Config struct {
	MinSimilarity        float64
	CatalogMinSimilarity float64
	MaxMatches           int
}

func NewEngine(ctx context.Context, catalog core.CatalogRepository, repo core.KnowledgeRepository, cfg Config) (*Engine, error) {
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = 3
	}
	e := &Engine{
		index:             make(map[string][]entry),
		rates:             make(map[string]float64),
		catalog:           catalog,
		repo:              repo,
		minSimilarity:     cfg.MinSimilarity,
		catalogMinSim:     cfg.CatalogMinSimilarity,
		maxMatches:        cfg.MaxMatches,
		suggestionMatches: 3,
	}

	terms, err := repo.AllTerms(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		e.addIndexed(t)
	}
	rates, err := repo.AcceptanceRates(ctx)
	if err != nil {
		return nil, err
	}
	e.rates = rates
	log.FromCtx(ctx).Info().Int("terms", len(terms)).Msg("knowledge index loaded")
	return e, nil
}

func (e *Engine) addIndexed(t core.KnowledgeTerm) {
	key := Normalize(t.Term)
	if key == "" {
		return
	}
	for _, ex := range e.index[key] {
		if ex.code == t.ProductCode {
			return
		}
	}
	e.index[key] = append(e.index[key], entry{code: t.ProductCode, canonical: t.Canonical})
}

// Search resolves a user term into ranked product matches. Exactly one
// outcome row is recorded per call, whatever branch produced the answer.
func (e *Engine) Search(ctx context.Context, term string) (Result, error) {
	q := Normalize(term)
	if q == "" {
		return e.finish(ctx, term, Result{Quality: QualityNone, Source: core.SourceNoResults})
	}

	if res, ok := e.exactLookup(ctx, q); ok {
		return e.finish(ctx, term, res)
	}
	if res, ok := e.fuzzyLookup(ctx, q); ok {
		return e.finish(ctx, term, res)
	}
	res, ok, err := e.catalogLookup(ctx, q)
	if err != nil {
		// The failed lookup still leaves its outcome row behind.
		_, _ = e.finish(ctx, term, Result{Quality: QualityNone, Source: core.SourceNoResults})
		return Result{}, err
	}
	if ok {
		return e.finish(ctx, term, res)
	}

	res = Result{Quality: QualityNone, Source: core.SourceNoResults}
	res.Suggestions = e.suggestions(ctx, q)
	return e.finish(ctx, term, res)
}

func (e *Engine) exactLookup(ctx context.Context, q string) (Result, bool) {
	e.mu.RLock()
	entries := e.index[q]
	e.mu.RUnlock()
	if len(entries) == 0 {
		return Result{}, false
	}
	matches := e.resolveEntries(ctx, entries, q, 1.0)
	if len(matches) == 0 {
		return Result{}, false
	}
	e.rank(matches)
	if len(matches) > e.maxMatches {
		matches = matches[:e.maxMatches]
	}
	return Result{Matches: matches, Quality: QualityExcellent, Source: core.SourceKnowledgeBase}, true
}

func (e *Engine) fuzzyLookup(ctx context.Context, q string) (Result, bool) {
	type scored struct {
		key string
		sim float64
	}
	e.mu.RLock()
	candidates := make([]scored, 0, 8)
	for key := range e.index {
		sim := Similarity(q, key)
		if sim >= e.minSimilarity {
			candidates = append(candidates, scored{key: key, sim: sim})
		}
	}
	e.mu.RUnlock()
	if len(candidates) == 0 {
		return Result{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })

	var matches []Match
	seen := map[string]bool{}
	for _, c := range candidates {
		e.mu.RLock()
		entries := e.index[c.key]
		e.mu.RUnlock()
		for _, m := range e.resolveEntries(ctx, entries, c.key, c.sim) {
			if seen[m.Product.Code] {
				continue
			}
			seen[m.Product.Code] = true
			matches = append(matches, m)
		}
		if len(matches) >= e.maxMatches*2 {
			break
		}
	}
	if len(matches) == 0 {
		return Result{}, false
	}
	e.rank(matches)
	if len(matches) > e.maxMatches {
		matches = matches[:e.maxMatches]
	}
	return Result{
		Matches: matches,
		Quality: gradeQuality(matches[0].Similarity),
		Source:  core.SourceFuzzy,
	}, true
}

func (e *Engine) catalogLookup(ctx context.Context, q string) (Result, bool, error) {
	products, err := e.catalog.SearchProducts(ctx, q, e.maxMatches*3)
	if err != nil {
		return Result{}, false, err
	}
	var matches []Match
	for _, p := range products {
		sim := Similarity(q, Normalize(p.Description))
		if sim < e.catalogMinSim {
			continue
		}
		matches = append(matches, Match{Product: p, Similarity: sim, MatchedTerm: Normalize(p.Description)})
	}
	if len(matches) == 0 {
		return Result{}, false, nil
	}
	e.rank(matches)
	if len(matches) > e.maxMatches {
		matches = matches[:e.maxMatches]
	}
	return Result{
		Matches: matches,
		Quality: gradeQuality(matches[0].Similarity),
		Source:  core.SourceCatalogFallback,
	}, true, nil
}

// rank orders by similarity, then acceptance rate, then canonical description
// so equal scores come out in a stable, predictable order.
func (e *Engine) rank(matches []Match) {
	e.mu.RLock()
	rates := e.rates
	e.mu.RUnlock()
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		ri, rj := rates[matches[i].Product.Code], rates[matches[j].Product.Code]
		if ri != rj {
			return ri > rj
		}
		return matches[i].Product.Description < matches[j].Product.Description
	})
}

func (e *Engine) resolveEntries(ctx context.Context, entries []entry, matchedTerm string, sim float64) []Match {
	matches := make([]Match, 0, len(entries))
	for _, en := range entries {
		p, err := e.catalog.GetProduct(ctx, en.code)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("code", en.code).Msg("indexed term points at missing product")
			continue
		}
		matches = append(matches, Match{Product: *p, Similarity: sim, MatchedTerm: matchedTerm})
	}
	return matches
}

// suggestions proposes popular products when nothing matched at all.
func (e *Engine) suggestions(ctx context.Context, q string) []string {
	top, err := e.catalog.TopSelling(ctx, e.suggestionMatches)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("loading suggestions")
		return nil
	}
	out := make([]string, 0, len(top))
	for _, p := range top {
		out = append(out, p.Description)
	}
	return out
}

// finish records the outcome row and stamps its id onto the result. Recording
// failure degrades to an unresolvable outcome, not a failed search.
func (e *Engine) finish(ctx context.Context, term string, res Result) (Result, error) {
	o := core.SearchOutcome{
		Term:      Normalize(term),
		Source:    res.Source,
		Feedback:  core.FeedbackNone,
		CreatedAt: time.Now(),
	}
	if len(res.Matches) > 0 {
		o.TopProduct = res.Matches[0].Product.Code
	}
	id, err := e.repo.RecordOutcome(ctx, o)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("term", o.Term).Msg("recording search outcome")
		return res, nil
	}
	res.OutcomeID = id
	return res, nil
}

// Learn associates a user-typed term with the product they went on to accept.
func (e *Engine) Learn(ctx context.Context, term string, p core.Product) error {
	t := core.KnowledgeTerm{
		Term:        Normalize(term),
		ProductCode: p.Code,
		Canonical:   p.Description,
		Source:      "learned",
	}
	if t.Term == "" || t.Term == Normalize(p.Description) {
		return nil
	}
	if err := e.repo.SaveTerm(ctx, t); err != nil {
		return err
	}
	e.mu.Lock()
	e.addIndexed(t)
	e.mu.Unlock()
	return nil
}

// Feedback resolves an earlier search outcome and refreshes the acceptance
// rates that bias ranking.
func (e *Engine) Feedback(ctx context.Context, outcomeID int64, fb core.Feedback) error {
	if outcomeID == 0 {
		return nil
	}
	if err := e.repo.ResolveOutcome(ctx, outcomeID, fb); err != nil {
		return err
	}
	rates, err := e.repo.AcceptanceRates(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.rates = rates
	e.mu.Unlock()
	return nil
}

// Bootstrap seeds the index from the catalog: full descriptions, individual
// tokens, the leading token pair, and any curated synonyms.
func (e *Engine) Bootstrap(ctx context.Context, products []core.Product) error {
	count := 0
	for _, p := range products {
		for _, term := range seedTerms(p) {
			t := core.KnowledgeTerm{
				Term:        term,
				ProductCode: p.Code,
				Canonical:   p.Description,
				Source:      "seed",
			}
			if err := e.repo.SaveTerm(ctx, t); err != nil {
				return err
			}
			e.mu.Lock()
			e.addIndexed(t)
			e.mu.Unlock()
			count++
		}
	}
	log.FromCtx(ctx).Info().Int("products", len(products)).Int("terms", count).Msg("knowledge base seeded")
	return nil
}

func seedTerms(p core.Product) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		n := Normalize(s)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	add(p.Description)
	toks := tokens(Normalize(p.Description))
	for _, t := range toks {
		if len([]rune(t)) >= 3 && !isStopToken(t) {
			add(t)
		}
	}
	if len(toks) >= 2 {
		add(toks[0] + " " + toks[1])
	}
	for _, s := range p.Synonyms {
		add(s)
	}
	return out
}

func isStopToken(t string) bool {
	switch t {
	case "com", "sem", "para", "das", "dos", "unidade", "pacote":
		return true
	}
	return strings.ContainsAny(t, "0123456789") && len(t) <= 5
}
