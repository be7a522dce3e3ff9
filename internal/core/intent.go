package core

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// IntentSource tags where in the pipeline an intent was produced.
type IntentSource string

const (
	IntentFromFastPath IntentSource = "fast-path"
	IntentFromAI       IntentSource = "ai"
	IntentFromFallback IntentSource = "fallback"
)

// Intent is a closed set of variants, one per tool. Dispatch sites switch
// over the concrete types so adding a tool is a compile-time extension.
type Intent interface {
	Name() string
	isIntent()
}

type CartOp string

const (
	OpAdd    CartOp = "add"
	OpRemove CartOp = "remove"
	OpSet    CartOp = "set"
)

type SearchProducts struct {
	Term string
}

type AddToCart struct {
	Term        string // free-text product reference, resolved via knowledge base
	ProductCode string // set when the product is already resolved
	Quantity    decimal.Decimal
	Tier        PriceTier // empty means "best tier for the quantity"
}

type SelectOption struct {
	Index int
}

type UpdateCartItem struct {
	Term        string
	ProductCode string
	Op          CartOp
	Quantity    decimal.Decimal
}

type ViewCart struct{}

type ClearCart struct{}

type StartCheckout struct{}

type ProvideTaxID struct {
	TaxID string
}

type Confirm struct {
	Yes bool
}

type ShowMenu struct{}

type Help struct{}

type Cancel struct{}

type Greet struct{}

type SmallTalk struct {
	Text string
}

// Clarify is the terminal fallback: ask the user instead of acting.
type Clarify struct {
	Question string
}

func (SearchProducts) Name() string { return "search_products" }
func (AddToCart) Name() string      { return "add_to_cart" }
func (SelectOption) Name() string   { return "select_option" }
func (UpdateCartItem) Name() string { return "update_cart_item" }
func (ViewCart) Name() string       { return "view_cart" }
func (ClearCart) Name() string      { return "clear_cart" }
func (StartCheckout) Name() string  { return "checkout" }
func (ProvideTaxID) Name() string   { return "provide_tax_id" }
func (Confirm) Name() string        { return "confirm" }
func (ShowMenu) Name() string       { return "show_menu" }
func (Help) Name() string           { return "help" }
func (Cancel) Name() string         { return "cancel" }
func (Greet) Name() string          { return "greet" }
func (SmallTalk) Name() string      { return "small_talk" }
func (Clarify) Name() string        { return "clarify" }

func (SearchProducts) isIntent() {}
func (AddToCart) isIntent()      {}
func (SelectOption) isIntent()   {}
func (UpdateCartItem) isIntent() {}
func (ViewCart) isIntent()       {}
func (ClearCart) isIntent()      {}
func (StartCheckout) isIntent()  {}
func (ProvideTaxID) isIntent()   {}
func (Confirm) isIntent()        {}
func (ShowMenu) isIntent()       {}
func (Help) isIntent()           {}
func (Cancel) isIntent()         {}
func (Greet) isIntent()          {}
func (SmallTalk) isIntent()      {}
func (Clarify) isIntent()        {}

// Classified is an intent plus how much the pipeline trusts it. Ephemeral:
// built per turn, persisted only inside a pending confirmation or the audit
// trail.
type Classified struct {
	Intent     Intent
	Source     IntentSource
	Confidence float64
}

// IntentEnvelope is the serialized form of an Intent, used for the session
// blob and for mapping classifier output. Both directions switch exhaustively
// over the variant set.
type IntentEnvelope struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

func EncodeIntent(it Intent) IntentEnvelope {
	switch v := it.(type) {
	case SearchProducts:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{"term": v.Term}}
	case AddToCart:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{
			"term": v.Term, "product_code": v.ProductCode,
			"quantity": v.Quantity.String(), "tier": string(v.Tier),
		}}
	case SelectOption:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{"index": v.Index}}
	case UpdateCartItem:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{
			"term": v.Term, "product_code": v.ProductCode,
			"op": string(v.Op), "quantity": v.Quantity.String(),
		}}
	case ViewCart:
		return IntentEnvelope{Tool: v.Name()}
	case ClearCart:
		return IntentEnvelope{Tool: v.Name()}
	case StartCheckout:
		return IntentEnvelope{Tool: v.Name()}
	case ProvideTaxID:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{"tax_id": v.TaxID}}
	case Confirm:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{"yes": v.Yes}}
	case ShowMenu:
		return IntentEnvelope{Tool: v.Name()}
	case Help:
		return IntentEnvelope{Tool: v.Name()}
	case Cancel:
		return IntentEnvelope{Tool: v.Name()}
	case Greet:
		return IntentEnvelope{Tool: v.Name()}
	case SmallTalk:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{"text": v.Text}}
	case Clarify:
		return IntentEnvelope{Tool: v.Name(), Params: map[string]any{"question": v.Question}}
	default:
		return IntentEnvelope{Tool: "clarify"}
	}
}

func (e IntentEnvelope) Decode() (Intent, error) {
	switch e.Tool {
	case "search_products":
		return SearchProducts{Term: e.str("term")}, nil
	case "add_to_cart":
		return AddToCart{
			Term:        e.str("term"),
			ProductCode: e.str("product_code"),
			Quantity:    e.dec("quantity"),
			Tier:        PriceTier(e.str("tier")),
		}, nil
	case "select_option":
		return SelectOption{Index: e.num("index")}, nil
	case "update_cart_item":
		return UpdateCartItem{
			Term:        e.str("term"),
			ProductCode: e.str("product_code"),
			Op:          CartOp(e.str("op")),
			Quantity:    e.dec("quantity"),
		}, nil
	case "view_cart":
		return ViewCart{}, nil
	case "clear_cart":
		return ClearCart{}, nil
	case "checkout":
		return StartCheckout{}, nil
	case "provide_tax_id":
		return ProvideTaxID{TaxID: e.str("tax_id")}, nil
	case "confirm":
		return Confirm{Yes: e.boolean("yes")}, nil
	case "show_menu":
		return ShowMenu{}, nil
	case "help":
		return Help{}, nil
	case "cancel":
		return Cancel{}, nil
	case "greet":
		return Greet{}, nil
	case "small_talk":
		return SmallTalk{Text: e.str("text")}, nil
	case "clarify":
		return Clarify{Question: e.str("question")}, nil
	default:
		return nil, fmt.Errorf("unknown intent tool %q", e.Tool)
	}
}

func (e IntentEnvelope) str(key string) string {
	if v, ok := e.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (e IntentEnvelope) num(key string) int {
	switch v := e.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (e IntentEnvelope) dec(key string) decimal.Decimal {
	switch v := e.Params[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

func (e IntentEnvelope) boolean(key string) bool {
	switch v := e.Params[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes" || v == "sim"
	}
	return false
}
