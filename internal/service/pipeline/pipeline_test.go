package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/checkout"
	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/knowledge"
)

// --- in-memory fakes ---

type memSessions struct {
	mu sync.Mutex
	m  map[string]*core.Session
}

func newMemSessions() *memSessions {
	return &memSessions{m: make(map[string]*core.Session)}
}

func (r *memSessions) Load(_ context.Context, key string) (*core.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return s, nil
}

func (r *memSessions) Save(_ context.Context, s *core.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Version++
	r.m[s.Key] = s
	return nil
}

func (r *memSessions) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key)
	return nil
}

func (r *memSessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.m {
		if s.UpdatedAt.Before(before) {
			delete(r.m, k)
			n++
		}
	}
	return n, nil
}

type memCatalog struct {
	products map[string]core.Product
}

func (m *memCatalog) SearchProducts(_ context.Context, term string, limit int) ([]core.Product, error) {
	var out []core.Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Description), strings.ToLower(term)) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
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
	var out []core.Product
	for _, p := range m.products {
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memKnowledge struct {
	mu       sync.Mutex
	terms    []core.KnowledgeTerm
	outcomes map[int64]*core.SearchOutcome
	nextID   int64
}

func newMemKnowledge() *memKnowledge {
	return &memKnowledge{outcomes: make(map[int64]*core.SearchOutcome)}
}

func (m *memKnowledge) AllTerms(context.Context) ([]core.KnowledgeTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.KnowledgeTerm(nil), m.terms...), nil
}

func (m *memKnowledge) SaveTerm(_ context.Context, t core.KnowledgeTerm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = append(m.terms, t)
	return nil
}

func (m *memKnowledge) RecordOutcome(_ context.Context, o core.SearchOutcome) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	m.outcomes[o.ID] = &o
	return o.ID, nil
}

func (m *memKnowledge) ResolveOutcome(_ context.Context, id int64, fb core.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outcomes[id]
	if !ok {
		return core.ErrNotFound
	}
	o.Feedback = fb
	return nil
}

func (m *memKnowledge) AcceptanceRates(context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []core.Order
}

func (m *memOrders) CreateOrder(_ context.Context, o core.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	return nil
}

type memAudits struct {
	mu      sync.Mutex
	records []core.TurnAudit
}

func (m *memAudits) Record(_ context.Context, a core.TurnAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, a)
	return nil
}

// stubClassifier plays the language model: scripted answers, forced errors,
// or blocking to simulate slow calls.
type stubClassifier struct {
	result  core.Classified
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *stubClassifier) Classify(ctx context.Context, _ core.ClassifyRequest) (core.Classified, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return core.Classified{}, ctx.Err()
		}
	}
	if s.err != nil {
		return core.Classified{}, s.err
	}
	return s.result, nil
}

// --- fixture ---

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testProducts() map[string]core.Product {
	return map[string]core.Product{
		"P001": {
			Code: "P001", Description: "Cerveja Brahma Lata 350ml",
			RetailPrice: dec("4.50"), WholesalePrice: dec("3.80"), WholesaleMinQty: dec("12"),
		},
		"P002": {
			Code: "P002", Description: "Cerveja Skol Lata 350ml",
			RetailPrice: dec("4.20"), WholesalePrice: dec("3.50"), WholesaleMinQty: dec("12"),
		},
		"P003": {
			Code: "P003", Description: "Cerveja Heineken Long Neck 330ml",
			RetailPrice: dec("7.90"), WholesalePrice: dec("6.90"), WholesaleMinQty: dec("24"),
		},
	}
}

type fixture struct {
	pipe     *Pipeline
	sessions *memSessions
	kb       *memKnowledge
	orders   *memOrders
	audits   *memAudits
}

func newFixture(t *testing.T, classifier core.Classifier) *fixture {
	t.Helper()

	catalog := &memCatalog{products: testProducts()}
	kbRepo := newMemKnowledge()
	for code, p := range catalog.products {
		kbRepo.terms = append(kbRepo.terms,
			core.KnowledgeTerm{Term: knowledge.Normalize(p.Description), ProductCode: code, Canonical: p.Description, Source: "seed"},
			core.KnowledgeTerm{Term: "cerveja", ProductCode: code, Canonical: p.Description, Source: "seed"},
		)
	}

	engine, err := knowledge.NewEngine(context.Background(), catalog, kbRepo, knowledge.Config{
		MinSimilarity:        0.5,
		CatalogMinSimilarity: 0.4,
		MaxMatches:           3,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	sessions := newMemSessions()
	orders := &memOrders{}
	audits := &memAudits{}

	cfg := &config.PipelineConfig{
		ExecuteThreshold: 0.9, AuditThreshold: 0.7, ConfirmThreshold: 0.5,
		WeightContext: 0.30, WeightCompleteness: 0.25, WeightFlow: 0.20,
		WeightHistory: 0.10, WeightSelfReport: 0.15,
		MinSimilarity: 0.5, CatalogMinSimilarity: 0.4, PageSize: 3,
	}

	pipe := New(Deps{
		Sessions:   sessions,
		Catalog:    catalog,
		Audits:     audits,
		Engine:     engine,
		Checkout:   checkout.NewController(orders),
		Classifier: classifier,
	}, cfg)

	return &fixture{pipe: pipe, sessions: sessions, kb: kbRepo, orders: orders, audits: audits}
}

func unavailableClassifier() core.Classifier {
	return &stubClassifier{err: core.ErrClassifierUnavailable}
}

// --- tests ---

// Full buying conversation on the deterministic pipeline alone: search,
// numbered selection, quantity with wholesale pricing, checkout with a
// company identifier, confirmation.
func TestPipeline_FullPurchaseFlow(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()
	key := "wa:5511999990000"

	reply := f.pipe.HandleTurn(ctx, key, "oi")
	if !strings.Contains(reply, core.GavName) {
		t.Errorf("greeting reply = %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "cerveja")
	if !strings.Contains(reply, "*1.*") || !strings.Contains(reply, "Brahma") {
		t.Fatalf("search reply should list numbered options: %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "1")
	if !strings.Contains(reply, "Quantas unidades") {
		t.Fatalf("selection should ask for quantity: %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "12")
	if !strings.Contains(reply, "atacado") {
		t.Errorf("12 units should hit the wholesale tier: %q", reply)
	}
	if !strings.Contains(reply, "R$ 45,60") {
		t.Errorf("cart total should be R$ 45,60: %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "carrinho")
	if !strings.Contains(reply, "Brahma") || !strings.Contains(reply, "R$ 45,60") {
		t.Errorf("cart view = %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "finalizar")
	if !strings.Contains(reply, "CNPJ") {
		t.Fatalf("checkout should ask for the identifier: %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "11.222.333/0001-81")
	if !strings.Contains(reply, "Confirma") {
		t.Fatalf("valid identifier should ask for confirmation: %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "sim")
	if !strings.Contains(reply, "PED-") {
		t.Fatalf("confirmation should return the order number: %q", reply)
	}

	if len(f.orders.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(f.orders.orders))
	}
	o := f.orders.orders[0]
	if o.CustomerTaxID != "11222333000181" {
		t.Errorf("order tax id = %q", o.CustomerTaxID)
	}
	if !o.Total.Equal(dec("45.60")) {
		t.Errorf("order total = %s, want 45.60", o.Total)
	}

	s, err := f.sessions.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Cart.Empty() {
		t.Error("cart must be empty after the order")
	}
}

// "quero mais um" right after adding a product updates that product's line.
func TestPipeline_ContextualFollowUp(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()
	key := "wa:5511888880000"

	f.pipe.HandleTurn(ctx, key, "cerveja")
	f.pipe.HandleTurn(ctx, key, "1")
	f.pipe.HandleTurn(ctx, key, "12")

	reply := f.pipe.HandleTurn(ctx, key, "quero mais um")
	if !strings.Contains(reply, "13") {
		t.Fatalf("follow-up should bump the Brahma line to 13: %q", reply)
	}

	s, _ := f.sessions.Load(ctx, key)
	if len(s.Cart.Items) != 1 || s.Cart.Items[0].Quantity.String() != "13" {
		t.Errorf("cart = %+v", s.Cart.Items)
	}
}

// The same message without any conversational context becomes a clarifying
// question instead of a guess.
func TestPipeline_FollowUpWithoutContextClarifies(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	reply := f.pipe.HandleTurn(context.Background(), "wa:new", "quero mais um")
	if !strings.Contains(reply, "?") {
		t.Fatalf("reply should be a question: %q", reply)
	}
	if len(f.orders.orders) != 0 {
		t.Error("no order should exist")
	}
}

// A duplicate product add opens the replace/add/keep question and the answer
// is honored.
func TestPipeline_DuplicateLine(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()
	key := "wa:dup"

	f.pipe.HandleTurn(ctx, key, "cerveja")
	f.pipe.HandleTurn(ctx, key, "1")
	f.pipe.HandleTurn(ctx, key, "6")

	reply := f.pipe.HandleTurn(ctx, key, "quero 6 brahma")
	if !strings.Contains(reply, "já está no carrinho") {
		t.Fatalf("duplicate should be questioned, not merged: %q", reply)
	}

	reply = f.pipe.HandleTurn(ctx, key, "2")
	if !strings.Contains(reply, "12") {
		t.Fatalf("answer 2 should sum to 12 units: %q", reply)
	}

	s, _ := f.sessions.Load(ctx, key)
	if len(s.Cart.Items) != 1 {
		t.Fatalf("cart lines = %d, want 1", len(s.Cart.Items))
	}
	if s.Cart.Items[0].Tier != core.TierWholesale {
		t.Errorf("merged quantity crosses the wholesale minimum, tier = %v", s.Cart.Items[0].Tier)
	}
}

// An AI intent that ignores the question the bot has open scores in the
// middle band: it is parked behind a yes/no and executed only on yes.
func TestPipeline_ConfirmStrategy(t *testing.T) {
	classifier := &stubClassifier{result: core.Classified{
		Intent:     core.UpdateCartItem{ProductCode: "P001", Op: core.OpRemove, Quantity: dec("1")},
		Source:     core.IntentFromAI,
		Confidence: 0.4,
	}}
	f := newFixture(t, classifier)
	ctx := context.Background()
	key := "wa:confirm"

	// Cart holds 12 Brahma and the bot is waiting for a Skol quantity.
	s := core.NewSession(key, time.Now())
	s.Cart.Items = []core.CartItem{{
		ProductCode: "P001",
		Description: "Cerveja Brahma Lata 350ml",
		Quantity:    dec("12"),
		Tier:        core.TierWholesale,
		UnitPrice:   dec("3.80"),
		Position:    1,
	}}
	s.Pending = &core.PendingAction{
		Kind:        core.PendingQuantity,
		ProductCode: "P002",
		Term:        "Cerveja Skol Lata 350ml",
	}
	f.sessions.m[key] = s

	reply := f.pipe.HandleTurn(ctx, key, "tira uma brahma")
	if !strings.Contains(reply, "Só para confirmar") {
		t.Fatalf("mid confidence should ask first: %q", reply)
	}

	s, _ = f.sessions.Load(ctx, key)
	if got := s.Cart.Items[0].Quantity.String(); got != "12" {
		t.Fatalf("cart must be intact until the user confirms, qty = %s", got)
	}

	reply = f.pipe.HandleTurn(ctx, key, "sim")
	if !strings.Contains(reply, "11") {
		t.Fatalf("confirmed intent should execute: %q", reply)
	}
	s, _ = f.sessions.Load(ctx, key)
	if got := s.Cart.Items[0].Quantity.String(); got != "11" {
		t.Errorf("qty = %s, want 11 after confirmed removal", got)
	}
}

// An AI answer below the confirm band is never executed: the deterministic
// synthesizer takes over the turn. Here the model returns an empty search
// while the conversation clearly asks for one more of the last product.
func TestPipeline_FallbackBandRunsSynthesizer(t *testing.T) {
	classifier := &stubClassifier{result: core.Classified{
		Intent:     core.SearchProducts{},
		Source:     core.IntentFromAI,
		Confidence: 0,
	}}
	f := newFixture(t, classifier)
	ctx := context.Background()
	key := "wa:lowscore"

	s := core.NewSession(key, time.Now())
	s.Cart.Items = []core.CartItem{{
		ProductCode: "P001",
		Description: "Cerveja Brahma Lata 350ml",
		Quantity:    dec("12"),
		Tier:        core.TierWholesale,
		UnitPrice:   dec("3.80"),
		Position:    1,
	}}
	s.LastProducts = []core.ProductRef{{Code: "P001", Description: "Cerveja Brahma Lata 350ml", Price: dec("3.80")}}
	f.sessions.m[key] = s

	reply := f.pipe.HandleTurn(ctx, key, "quero mais um")
	if !strings.Contains(reply, "13") {
		t.Fatalf("contextual rule should bump the Brahma line to 13: %q", reply)
	}

	s, _ = f.sessions.Load(ctx, key)
	if got := s.Cart.Items[0].Quantity.String(); got != "13" {
		t.Errorf("qty = %s, want 13", got)
	}

	f.audits.mu.Lock()
	last := f.audits.records[len(f.audits.records)-1]
	f.audits.mu.Unlock()
	if last.Strategy != "fallback" {
		t.Errorf("strategy = %q, want fallback", last.Strategy)
	}
	if last.IntentName != "update_cart_item" {
		t.Errorf("executed intent = %q, want the synthesized cart update", last.IntentName)
	}
}

// A discarded low-confidence answer must not cost the conversation its open
// question. The bot asked for a quantity; the model misreads "meia dúzia" as
// an empty search, which the fallback band throws away. The quantity question
// has to survive so the synthesizer can answer it on the same turn.
func TestPipeline_DiscardedIntentKeepsPending(t *testing.T) {
	classifier := &stubClassifier{result: core.Classified{
		Intent:     core.SearchProducts{},
		Source:     core.IntentFromAI,
		Confidence: 0,
	}}
	f := newFixture(t, classifier)
	ctx := context.Background()
	key := "wa:halfdozen"

	s := core.NewSession(key, time.Now())
	s.Pending = &core.PendingAction{
		Kind:        core.PendingQuantity,
		ProductCode: "P001",
		Term:        "Cerveja Brahma Lata 350ml",
	}
	f.sessions.m[key] = s

	reply := f.pipe.HandleTurn(ctx, key, "meia dúzia")
	if !strings.Contains(reply, "Adicionei 6") {
		t.Fatalf("the quantity answer should land in the cart: %q", reply)
	}

	s, _ = f.sessions.Load(ctx, key)
	if len(s.Cart.Items) != 1 || s.Cart.Items[0].Quantity.String() != "6" {
		t.Fatalf("cart = %+v, want one Brahma line with 6 units", s.Cart.Items)
	}
	if s.Pending != nil {
		t.Errorf("answered question must be closed, pending = %+v", s.Pending)
	}
}

// The per-tool success tracker learns from real turns: a turn that lands in
// the fallback band counts against the tool, a clean execution counts for it.
func TestPipeline_TrackerLearnsFromTurns(t *testing.T) {
	t.Run("fallback lowers the rate", func(t *testing.T) {
		classifier := &stubClassifier{result: core.Classified{
			Intent:     core.SearchProducts{},
			Source:     core.IntentFromAI,
			Confidence: 0,
		}}
		f := newFixture(t, classifier)

		before := f.pipe.tracker.Rate("search_products")
		f.pipe.HandleTurn(context.Background(), "wa:trk1", "hmm sei la")
		after := f.pipe.tracker.Rate("search_products")
		if after >= before {
			t.Errorf("rate = %v, want below the prior %v", after, before)
		}
	})

	t.Run("clean execution raises the rate", func(t *testing.T) {
		classifier := &stubClassifier{result: core.Classified{
			Intent:     core.ViewCart{},
			Source:     core.IntentFromAI,
			Confidence: 0.95,
		}}
		f := newFixture(t, classifier)

		before := f.pipe.tracker.Rate("view_cart")
		f.pipe.HandleTurn(context.Background(), "wa:trk2", "me mostra tudo que eu pedi")
		after := f.pipe.tracker.Rate("view_cart")
		if after <= before {
			t.Errorf("rate = %v, want above the prior %v", after, before)
		}
	})
}

// An explicit wholesale request below the minimum quantity is served at the
// retail price and the reply says so.
func TestPipeline_WholesaleRequestBelowMinimum(t *testing.T) {
	classifier := &stubClassifier{result: core.Classified{
		Intent:     core.AddToCart{ProductCode: "P001", Quantity: dec("6"), Tier: core.TierWholesale},
		Source:     core.IntentFromAI,
		Confidence: 0.95,
	}}
	f := newFixture(t, classifier)
	ctx := context.Background()
	key := "wa:tier"

	reply := f.pipe.HandleTurn(ctx, key, "quero 6 brahma no atacado")
	if !strings.Contains(reply, "apliquei o preço de varejo") {
		t.Fatalf("tier substitution must be visible in the reply: %q", reply)
	}

	s, _ := f.sessions.Load(ctx, key)
	if len(s.Cart.Items) != 1 {
		t.Fatalf("cart lines = %d, want 1", len(s.Cart.Items))
	}
	it := s.Cart.Items[0]
	if it.Tier != core.TierRetail {
		t.Errorf("tier = %v, want retail below the wholesale minimum", it.Tier)
	}
	if !it.UnitPrice.Equal(dec("4.50")) {
		t.Errorf("unit price = %s, want the retail 4.50", it.UnitPrice)
	}
}

// Every inbound message gets a non-empty reply and an audit row, whatever
// the input looks like.
func TestPipeline_NoSilentDrop(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()

	messages := []string{
		"", "?", "!!!", "xyzabc qwerty",
		"quero", "não sei o que quero", "9999",
		strings.Repeat("a", 600),
	}
	for i, msg := range messages {
		reply := f.pipe.HandleTurn(ctx, "wa:drop", msg)
		if strings.TrimSpace(reply) == "" {
			t.Fatalf("message %d (%q) produced an empty reply", i, msg)
		}
	}

	f.audits.mu.Lock()
	defer f.audits.mu.Unlock()
	if len(f.audits.records) != len(messages) {
		t.Errorf("audit rows = %d, want %d", len(f.audits.records), len(messages))
	}
	for _, a := range f.audits.records {
		if strings.TrimSpace(a.Reply) == "" {
			t.Errorf("audit for %q has empty reply", a.Message)
		}
		if a.IntentName == "" || a.Strategy == "" {
			t.Errorf("audit for %q missing intent or strategy", a.Message)
		}
	}
}

// A second message for the same conversation while the first is in flight is
// answered with a busy notice, not queued and not interleaved.
func TestPipeline_SameKeyBusy(t *testing.T) {
	classifier := &stubClassifier{
		err:     core.ErrClassifierUnavailable,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	f := newFixture(t, classifier)
	ctx := context.Background()
	key := "wa:busy"

	done := make(chan string, 1)
	go func() {
		done <- f.pipe.HandleTurn(ctx, key, "mensagem demorada qualquer coisa")
	}()

	<-classifier.entered

	busy := f.pipe.HandleTurn(ctx, key, "oi de novo")
	if busy != replyBusy {
		t.Errorf("concurrent turn reply = %q, want busy notice", busy)
	}

	close(classifier.release)
	first := <-done
	if strings.TrimSpace(first) == "" {
		t.Error("first turn must still produce a reply")
	}

	// A different key is never blocked.
	other := f.pipe.HandleTurn(ctx, "wa:other", "oi")
	if other == replyBusy {
		t.Error("different conversation must not see the busy notice")
	}
}

// With the classifier down the whole conversation still works end to end.
func TestPipeline_ClassifierDownStillSells(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()
	key := "wa:offline"

	f.pipe.HandleTurn(ctx, key, "quero 12 skol")
	s, _ := f.sessions.Load(ctx, key)
	if s.Cart.Empty() {
		t.Fatal("fallback pipeline should have added skol to the cart")
	}
	if s.Cart.Items[0].ProductCode != "P002" {
		t.Errorf("cart item = %+v, want Skol", s.Cart.Items[0])
	}
	if s.Cart.Items[0].Tier != core.TierWholesale {
		t.Errorf("tier = %v, 12 units should be wholesale", s.Cart.Items[0].Tier)
	}
}

// Starting a new search while a numbered list is open abandons the list and
// records the dropped suggestion as rejected feedback.
func TestPipeline_SupersededSelectionRejectsOutcome(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()
	key := "wa:supersede"

	f.pipe.HandleTurn(ctx, key, "cerveja")
	s, _ := f.sessions.Load(ctx, key)
	firstOutcome := s.LastOutcomeID
	if firstOutcome == 0 {
		t.Fatal("search should leave an outcome id on the session")
	}

	f.pipe.HandleTurn(ctx, key, "detergente")

	f.kb.mu.Lock()
	fb := f.kb.outcomes[firstOutcome].Feedback
	f.kb.mu.Unlock()
	if fb != core.FeedbackRejected {
		t.Errorf("abandoned suggestion feedback = %v, want rejected", fb)
	}

	s, _ = f.sessions.Load(ctx, key)
	if s.Pending != nil && s.Pending.Kind == core.PendingSelection {
		t.Error("old selection must not stay open after a new search")
	}
}

// A typo in the product name still resolves through the fuzzy index.
func TestPipeline_TypoSearch(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	reply := f.pipe.HandleTurn(context.Background(), "wa:typo", "ceveja")
	if !strings.Contains(reply, "Brahma") && !strings.Contains(reply, "Skol") {
		t.Fatalf("typo search should still find beer: %q", reply)
	}
}

func TestPipeline_SessionSurvivesTurns(t *testing.T) {
	f := newFixture(t, unavailableClassifier())
	ctx := context.Background()
	key := "wa:history"

	for i := 0; i < 5; i++ {
		f.pipe.HandleTurn(ctx, key, "cerveja")
	}
	s, err := f.sessions.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.History) == 0 {
		t.Error("history should accumulate across turns")
	}
	if s.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}
}
