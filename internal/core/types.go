package core

import (
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	GavName    = "G.A.V."
	GavVersion = "0.1.0"
)

type PriceTier string

const (
	TierRetail    PriceTier = "retail"
	TierWholesale PriceTier = "wholesale"
	TierPromo     PriceTier = "promo"
)

// Product is the read-only catalog projection the core consumes.
type Product struct {
	Code            string          `json:"code"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Brand           string          `json:"brand"`
	Unit            string          `json:"unit"`
	RetailPrice     decimal.Decimal `json:"retail_price"`
	WholesalePrice  decimal.Decimal `json:"wholesale_price"`
	WholesaleMinQty decimal.Decimal `json:"wholesale_min_qty"`
	PromoPrice      decimal.Decimal `json:"promo_price"`
	PromoFrom       time.Time       `json:"promo_from"`
	PromoUntil      time.Time       `json:"promo_until"`
	Stock           decimal.Decimal `json:"stock"`
	SalesCount      int64           `json:"sales_count"`
	Synonyms        []string        `json:"synonyms,omitempty"`
}

// PromoActive reports whether the promotional price applies at the given time.
func (p Product) PromoActive(now time.Time) bool {
	if p.PromoPrice.IsZero() {
		return false
	}
	return !now.Before(p.PromoFrom) && now.Before(p.PromoUntil)
}

// CartItem captures the unit price at add time so historical totals stay
// stable even when the catalog price changes later.
type CartItem struct {
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Tier        PriceTier       `json:"tier"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Position    int             `json:"position"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

type Cart struct {
	Items    []CartItem      `json:"items"`
	Discount decimal.Decimal `json:"discount"`
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Total is always recomputed from the lines; there is no stored total to
// drift out of sync.
func (c Cart) Total() decimal.Decimal {
	return c.Subtotal().Sub(c.Discount)
}

// ProductRef is the lightweight reference kept on the session for
// "last products touched" and numeric selection lists.
type ProductRef struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

type Turn struct {
	Role    string    `json:"role"` // "user" or "bot"
	Content string    `json:"content"`
	Action  string    `json:"action,omitempty"`
	At      time.Time `json:"at"`
}

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

type CheckoutStage string

const (
	StageShopping        CheckoutStage = "shopping"
	StageCollectingTaxID CheckoutStage = "collecting-identifier"
	StageAwaitingConfirm CheckoutStage = "awaiting-confirmation"
)

type PendingKind string

const (
	// PendingQuantity: the bot asked "how many units?" for a product.
	PendingQuantity PendingKind = "quantity"
	// PendingSelection: the bot presented a numbered product list.
	PendingSelection PendingKind = "selection"
	// PendingDuplicate: the product is already in the cart; the bot asked
	// whether to replace, add on top, or keep as is.
	PendingDuplicate PendingKind = "duplicate-line"
	// PendingConfirmIntent: a mid-confidence intent awaiting a yes/no.
	PendingConfirmIntent PendingKind = "confirm-intent"
)

// PendingAction models the one question the bot may have open at a time.
type PendingAction struct {
	Kind        PendingKind     `json:"kind"`
	ProductCode string          `json:"product_code,omitempty"`
	Term        string          `json:"term,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Options     int             `json:"options,omitempty"`
	Intent      *IntentEnvelope `json:"intent,omitempty"`
}

// Session is the whole per-conversation state. It is an explicit value passed
// through the pipeline; no component reads conversation state from globals.
type Session struct {
	Key           string          `json:"key"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Cart          Cart            `json:"cart"`
	History       []Turn          `json:"history"`
	Summary       string          `json:"summary,omitempty"`
	LastProducts  []ProductRef    `json:"last_products,omitempty"`
	LastShown     []ProductRef    `json:"last_shown,omitempty"`
	LastOutcomeID int64           `json:"last_outcome_id,omitempty"`
	Pending       *PendingAction  `json:"pending,omitempty"`
	Stage         CheckoutStage   `json:"stage"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewSession(key string, now time.Time) *Session {
	return &Session{
		Key:       key,
		Stage:     StageShopping,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

const (
	historyMax     = 20
	historyKeep    = 10
	summaryMaxLen  = 1000
	turnMaxLen     = 500
	lastProductMax = 3
)

// AddTurn appends to the bounded history window, folding older turns into
// the running summary.
func (s *Session) AddTurn(role, content, action string, now time.Time) {
	content = truncateUTF8(content, turnMaxLen)
	s.History = append(s.History, Turn{Role: role, Content: content, Action: action, At: now})
	s.UpdatedAt = now

	if len(s.History) <= historyMax {
		return
	}

	old := s.History[:len(s.History)-historyKeep]
	lines := make([]string, 0, len(old))
	for _, t := range old {
		who := "Cliente"
		if t.Role == RoleBot {
			who = GavName
		}
		c := truncateUTF8(t.Content, 100)
		lines = append(lines, who+": "+c)
	}
	folded := joinSummary(lines)
	if s.Summary != "" {
		folded = s.Summary + " | " + folded
	}
	s.Summary = tailUTF8(folded, summaryMaxLen)
	s.History = append([]Turn(nil), s.History[len(s.History)-historyKeep:]...)
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// tailUTF8 keeps at most the trailing max bytes without splitting a rune.
func tailUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func joinSummary(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += " | "
		}
		out += l
	}
	return out
}

// TouchProduct records the product as the most recent referent, keeping at
// most the last three.
func (s *Session) TouchProduct(ref ProductRef) {
	kept := []ProductRef{ref}
	for _, p := range s.LastProducts {
		if p.Code == ref.Code {
			continue
		}
		kept = append(kept, p)
		if len(kept) == lastProductMax {
			break
		}
	}
	s.LastProducts = kept
}

// LastProduct returns the most recent referent. When the conversation has
// nothing to point back at, the reference is ambiguous and the caller must
// ask instead of guessing.
func (s *Session) LastProduct() (ProductRef, error) {
	if len(s.LastProducts) == 0 {
		return ProductRef{}, ErrAmbiguousReference
	}
	return s.LastProducts[0], nil
}

type Feedback string

const (
	FeedbackAccepted Feedback = "accepted"
	FeedbackRejected Feedback = "rejected"
	FeedbackNone     Feedback = "none"
)

type SearchSource string

const (
	SourceKnowledgeBase   SearchSource = "knowledge-base"
	SourceFuzzy           SearchSource = "fuzzy"
	SourceCatalogFallback SearchSource = "catalog"
	SourceNoResults       SearchSource = "no-results"
)

// SearchOutcome records one knowledge-base search so future ranking can be
// biased by what users actually accepted.
type SearchOutcome struct {
	ID         int64        `json:"id"`
	Term       string       `json:"term"`
	Source     SearchSource `json:"source"`
	TopProduct string       `json:"top_product,omitempty"`
	Feedback   Feedback     `json:"feedback"`
	CreatedAt  time.Time    `json:"created_at"`
}

// KnowledgeTerm is one learned association between a user term and a product.
type KnowledgeTerm struct {
	Term        string `json:"term"`
	ProductCode string `json:"product_code"`
	Canonical   string `json:"canonical"`
	Source      string `json:"source"` // "seed" or "learned"
}

type Order struct {
	Number          string          `json:"number"`
	ConversationKey string          `json:"conversation_key"`
	CustomerTaxID   string          `json:"customer_tax_id"`
	Items           []CartItem      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TurnAudit is the structured per-turn record that makes the "never a blank
// response" guarantee independently verifiable.
type TurnAudit struct {
	TurnID          string          `json:"turn_id"`
	ConversationKey string          `json:"conversation_key"`
	Message         string          `json:"message"`
	IntentName      string          `json:"intent_name"`
	IntentSource    string          `json:"intent_source"`
	Confidence      float64         `json:"confidence"`
	Strategy        string          `json:"strategy"`
	CartTotalBefore decimal.Decimal `json:"cart_total_before"`
	CartTotalAfter  decimal.Decimal `json:"cart_total_after"`
	Reply           string          `json:"reply"`
	CreatedAt       time.Time       `json:"created_at"`
}
