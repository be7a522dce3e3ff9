package intent

import (
	"testing"

	"github.com/sandevgo/gavbot/internal/core"
)

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		name         string
		msg          string
		wantQty      string
		wantOp       core.CartOp
		wantExplicit bool
	}{
		{name: "digits", msg: "quero 6 cervejas", wantQty: "6", wantExplicit: true},
		{name: "decimal_comma", msg: "1,5 kg de arroz", wantQty: "1.5", wantExplicit: true},
		{name: "number_word", msg: "duas coca cola", wantQty: "2", wantExplicit: true},
		{name: "dozen", msg: "uma dúzia de ovos", wantQty: "12", wantExplicit: true},
		{name: "half_dozen", msg: "meia dúzia de brahma", wantQty: "6", wantExplicit: true},
		{name: "add_word_with_qty", msg: "adicionar 2 skol", wantQty: "2", wantOp: core.OpAdd, wantExplicit: true},
		{name: "bare_more_one", msg: "quero mais um", wantQty: "1", wantOp: core.OpAdd, wantExplicit: true},
		{name: "another", msg: "outra", wantQty: "1", wantOp: core.OpAdd, wantExplicit: true},
		{name: "remove_no_qty", msg: "tirar cerveja", wantQty: "0", wantOp: core.OpRemove, wantExplicit: false},
		{name: "remove_with_qty", msg: "tira 3 skol", wantQty: "3", wantOp: core.OpRemove, wantExplicit: true},
		{name: "set_marker", msg: "trocar para 5", wantQty: "5", wantOp: core.OpSet, wantExplicit: true},
		{name: "plain_term", msg: "cerveja", wantQty: "0", wantExplicit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractQuantity(tt.msg)
			if got.Quantity.String() != tt.wantQty {
				t.Errorf("ExtractQuantity(%q) qty = %s, want %s", tt.msg, got.Quantity, tt.wantQty)
			}
			if got.Op != tt.wantOp {
				t.Errorf("ExtractQuantity(%q) op = %q, want %q", tt.msg, got.Op, tt.wantOp)
			}
			if got.Explicit != tt.wantExplicit {
				t.Errorf("ExtractQuantity(%q) explicit = %v, want %v", tt.msg, got.Explicit, tt.wantExplicit)
			}
		})
	}
}
