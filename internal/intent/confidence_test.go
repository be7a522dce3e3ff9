package intent

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/core"
)

func TestWeights_Score(t *testing.T) {
	w := Weights{Context: 0.30, Completeness: 0.25, Flow: 0.20, History: 0.10, SelfReport: 0.15}

	tests := []struct {
		name    string
		factors Factors
		want    float64
	}{
		{
			name:    "all_perfect",
			factors: Factors{1, 1, 1, 1, 1},
			want:    1.0,
		},
		{
			name:    "all_zero",
			factors: Factors{0, 0, 0, 0, 0},
			want:    0.0,
		},
		{
			name:    "weighted_mix",
			factors: Factors{ContextAlignment: 1.0, Completeness: 1.0, FlowPlausibility: 0, HistoricalSuccess: 0, SelfReported: 0},
			want:    0.55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.Score(tt.factors)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeights_Score_Clamped(t *testing.T) {
	w := Weights{Context: 0.30, Completeness: 0.25, Flow: 0.20, History: 0.10, SelfReport: 0.15}
	if got := w.Score(Factors{5, 5, 5, 5, 5}); got != 1.0 {
		t.Errorf("Score with out-of-range factors = %v, want clamped to 1.0", got)
	}
	if got := w.Score(Factors{-5, -5, -5, -5, -5}); got != 0.0 {
		t.Errorf("Score with negative factors = %v, want clamped to 0.0", got)
	}
}

func TestThresholds_Decide(t *testing.T) {
	th := Thresholds{Execute: 0.9, Audit: 0.7, Confirm: 0.5}

	tests := []struct {
		score float64
		want  Strategy
	}{
		{0.95, StrategyExecute},
		{0.9, StrategyExecute},
		{0.89, StrategyExecuteAudit},
		{0.7, StrategyExecuteAudit},
		{0.69, StrategyConfirm},
		{0.5, StrategyConfirm},
		{0.49, StrategyFallback},
		{0.0, StrategyFallback},
	}

	for _, tt := range tests {
		if got := th.Decide(tt.score); got != tt.want {
			t.Errorf("Decide(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

// Decide must be monotone: raising the score never yields a more cautious
// strategy.
func TestThresholds_Decide_Monotone(t *testing.T) {
	th := Thresholds{Execute: 0.9, Audit: 0.7, Confirm: 0.5}
	rank := map[Strategy]int{
		StrategyFallback:     0,
		StrategyConfirm:      1,
		StrategyExecuteAudit: 2,
		StrategyExecute:      3,
	}
	prev := StrategyFallback
	for score := 0.0; score <= 1.0; score += 0.01 {
		got := th.Decide(score)
		if rank[got] < rank[prev] {
			t.Fatalf("Decide(%v) = %v after %v, strategies regressed", score, got, prev)
		}
		prev = got
	}
}

func TestComputeFactors_PendingAlignment(t *testing.T) {
	now := time.Now()
	s := core.NewSession("k", now)
	s.Pending = &core.PendingAction{Kind: core.PendingSelection, Options: 3}
	s.LastShown = []core.ProductRef{{Code: "P1"}, {Code: "P2"}, {Code: "P3"}}

	answer := core.Classified{Intent: core.SelectOption{Index: 2}, Confidence: 0.9}
	offTopic := core.Classified{Intent: core.SmallTalk{Text: "oi"}, Confidence: 0.9}

	fAnswer := ComputeFactors(s, answer, 0.9)
	fOff := ComputeFactors(s, offTopic, 0.9)

	if fAnswer.ContextAlignment <= fOff.ContextAlignment {
		t.Errorf("answering the pending question should align better: %v vs %v",
			fAnswer.ContextAlignment, fOff.ContextAlignment)
	}
	if fAnswer.FlowPlausibility != 1.0 {
		t.Errorf("in-range selection flow = %v, want 1.0", fAnswer.FlowPlausibility)
	}
}

func TestComputeFactors_Completeness(t *testing.T) {
	now := time.Now()
	s := core.NewSession("k", now)

	empty := ComputeFactors(s, core.Classified{Intent: core.SearchProducts{}}, 0.5)
	full := ComputeFactors(s, core.Classified{Intent: core.SearchProducts{Term: "cerveja"}}, 0.5)
	if empty.Completeness >= full.Completeness {
		t.Errorf("empty search term should lower completeness: %v vs %v",
			empty.Completeness, full.Completeness)
	}

	noQty := ComputeFactors(s, core.Classified{Intent: core.AddToCart{Term: "skol"}}, 0.5)
	withQty := ComputeFactors(s, core.Classified{Intent: core.AddToCart{Term: "skol", Quantity: decimal.NewFromInt(2)}}, 0.5)
	if noQty.Completeness >= withQty.Completeness {
		t.Errorf("missing quantity should lower completeness: %v vs %v",
			noQty.Completeness, withQty.Completeness)
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()

	if r := tr.Rate("unknown_tool"); r != 0.5 {
		t.Errorf("rate for unknown tool = %v, want neutral 0.5", r)
	}

	before := tr.Rate("add_to_cart")
	for i := 0; i < 30; i++ {
		tr.Observe("add_to_cart", false)
	}
	after := tr.Rate("add_to_cart")
	if after >= before {
		t.Errorf("repeated failures should lower the rate: %v -> %v", before, after)
	}
}
