package intent

import (
	"sync"

	"github.com/sandevgo/gavbot/internal/core"
)

// Factors are the named sub-scores that make up a confidence score. Each is
// in [0,1] and independently computable.
type Factors struct {
	ContextAlignment  float64
	Completeness      float64
	FlowPlausibility  float64
	HistoricalSuccess float64
	SelfReported      float64
}

// Weights is the weighting table, kept as data rather than scattered
// conditionals.
type Weights struct {
	Context      float64
	Completeness float64
	Flow         float64
	History      float64
	SelfReport   float64
}

// Score combines factors into a single confidence value, a pure function of
// its inputs.
func (w Weights) Score(f Factors) float64 {
	s := f.ContextAlignment*w.Context +
		f.Completeness*w.Completeness +
		f.FlowPlausibility*w.Flow +
		f.HistoricalSuccess*w.History +
		f.SelfReported*w.SelfReport
	total := w.Context + w.Completeness + w.Flow + w.History + w.SelfReport
	if total > 0 {
		s /= total
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

type Strategy string

const (
	StrategyExecute      Strategy = "execute"
	StrategyExecuteAudit Strategy = "execute-audit"
	StrategyConfirm      Strategy = "confirm"
	StrategyFallback     Strategy = "fallback"
)

type Thresholds struct {
	Execute float64
	Audit   float64
	Confirm float64
}

// Decide is monotone: a higher score never yields a more cautious strategy.
func (t Thresholds) Decide(score float64) Strategy {
	switch {
	case score >= t.Execute:
		return StrategyExecute
	case score >= t.Audit:
		return StrategyExecuteAudit
	case score >= t.Confirm:
		return StrategyConfirm
	default:
		return StrategyFallback
	}
}

// ComputeFactors derives the session-dependent factors for an AI-classified
// intent. historical is the tool's historical success rate.
func ComputeFactors(s *core.Session, c core.Classified, historical float64) Factors {
	return Factors{
		ContextAlignment:  contextAlignment(s, c.Intent),
		Completeness:      completeness(c.Intent),
		FlowPlausibility:  flowPlausibility(s, c.Intent),
		HistoricalSuccess: historical,
		SelfReported:      clamp01(c.Confidence),
	}
}

func contextAlignment(s *core.Session, it core.Intent) float64 {
	if s.Pending == nil {
		switch it.(type) {
		case core.Greet, core.SmallTalk, core.Help, core.ShowMenu:
			return 0.8
		default:
			return 0.7
		}
	}
	if answersPending(s.Pending.Kind, it) {
		return 1.0
	}
	// Commands that legitimately supersede an open question.
	switch it.(type) {
	case core.Cancel, core.ClearCart, core.StartCheckout, core.ViewCart:
		return 0.8
	}
	return 0.3
}

func answersPending(kind core.PendingKind, it core.Intent) bool {
	switch kind {
	case core.PendingQuantity:
		switch it.(type) {
		case core.SelectOption, core.AddToCart:
			return true
		}
	case core.PendingSelection:
		_, ok := it.(core.SelectOption)
		return ok
	case core.PendingDuplicate:
		switch it.(type) {
		case core.SelectOption, core.Confirm:
			return true
		}
	case core.PendingConfirmIntent:
		_, ok := it.(core.Confirm)
		return ok
	}
	return false
}

func completeness(it core.Intent) float64 {
	switch v := it.(type) {
	case core.SearchProducts:
		if v.Term == "" {
			return 0.0
		}
		return 1.0
	case core.AddToCart:
		if v.Term == "" && v.ProductCode == "" {
			return 0.0
		}
		if v.Quantity.IsZero() {
			return 0.6
		}
		return 1.0
	case core.UpdateCartItem:
		if v.Term == "" && v.ProductCode == "" {
			return 0.4
		}
		return 1.0
	case core.SelectOption:
		if v.Index <= 0 {
			return 0.0
		}
		return 1.0
	case core.ProvideTaxID:
		if v.TaxID == "" {
			return 0.0
		}
		return 1.0
	default:
		return 1.0
	}
}

func flowPlausibility(s *core.Session, it core.Intent) float64 {
	switch v := it.(type) {
	case core.SelectOption:
		if v.Index >= 1 && v.Index <= len(s.LastShown) {
			return 1.0
		}
		if len(s.LastShown) > 0 {
			return 0.4
		}
		return 0.2
	case core.UpdateCartItem:
		if s.Cart.Empty() && v.Op != core.OpAdd {
			return 0.2
		}
		return 0.9
	case core.StartCheckout:
		if s.Cart.Empty() {
			return 0.4
		}
		return 1.0
	case core.Confirm:
		if s.Pending != nil || s.Stage == core.StageAwaitingConfirm {
			return 1.0
		}
		return 0.3
	case core.ProvideTaxID:
		if s.Stage == core.StageCollectingTaxID {
			return 1.0
		}
		return 0.7
	default:
		return 0.8
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Tracker keeps the per-tool historical success rate used as a confidence
// factor. Seeded with conservative priors so cold starts are stable.
type Tracker struct {
	mu      sync.Mutex
	success map[string]int
	total   map[string]int
}

func NewTracker() *Tracker {
	t := &Tracker{
		success: make(map[string]int),
		total:   make(map[string]int),
	}
	// Priors: simple commands almost always succeed, free-text cart edits
	// less often.
	for tool, rate := range map[string]float64{
		"view_cart": 0.95, "clear_cart": 0.95, "show_menu": 0.95, "help": 0.95,
		"checkout": 0.9, "select_option": 0.9, "search_products": 0.85,
		"add_to_cart": 0.8, "update_cart_item": 0.7, "provide_tax_id": 0.85,
		"greet": 0.95, "small_talk": 0.75, "confirm": 0.9,
	} {
		t.success[tool] = int(rate * 20)
		t.total[tool] = 20
	}
	return t
}

func (t *Tracker) Rate(tool string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.total[tool]
	if total == 0 {
		return 0.5
	}
	return float64(t.success[tool]) / float64(total)
}

func (t *Tracker) Observe(tool string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total[tool]++
	if ok {
		t.success[tool]++
	}
}
