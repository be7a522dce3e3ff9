package intent

import (
	"regexp"
	"strings"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/shopspring/decimal"
)

// QuantitySpec is the quantity a message talks about, plus the cart operation
// it implies ("mais um" adds, "tira" removes, "troca para" sets).
type QuantitySpec struct {
	Quantity decimal.Decimal
	Op       core.CartOp
	Explicit bool
}

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

var numberWords = map[string]int64{
	"um": 1, "uma": 1,
	"dois": 2, "duas": 2,
	"tres": 3, "três": 3,
	"quatro": 4, "cinco": 5, "seis": 6, "sete": 7,
	"oito": 8, "nove": 9, "dez": 10, "onze": 11, "doze": 12,
}

var (
	removeWords = []string{"tirar", "tira", "remover", "remove", "retirar", "retira", "menos"}
	setMarkers  = []string{"trocar para", "troca para", "mudar para", "muda para", "alterar para", "deixa com"}
	addWords    = []string{"mais", "adicionar", "adiciona", "colocar", "coloca", "acrescentar", "acrescenta", "outro", "outra"}
)

// ExtractQuantity parses quantities written as digits ("6", "1,5"), number
// words ("duas", "uma dúzia", "meia dúzia") and detects the implied cart
// operation.
func ExtractQuantity(msg string) QuantitySpec {
	lower := strings.ToLower(strings.TrimSpace(msg))
	spec := QuantitySpec{Quantity: decimal.Zero}

	for _, m := range setMarkers {
		if strings.Contains(lower, m) {
			spec.Op = core.OpSet
			break
		}
	}
	if spec.Op == "" {
		for _, w := range removeWords {
			if containsWord(lower, w) {
				spec.Op = core.OpRemove
				break
			}
		}
	}
	if spec.Op == "" {
		for _, w := range addWords {
			if containsWord(lower, w) {
				spec.Op = core.OpAdd
				break
			}
		}
	}

	if m := numberRe.FindString(lower); m != "" {
		m = strings.ReplaceAll(m, ",", ".")
		if d, err := decimal.NewFromString(m); err == nil && d.IsPositive() {
			spec.Quantity = d
			spec.Explicit = true
			return spec
		}
	}

	if strings.Contains(lower, "meia duzia") || strings.Contains(lower, "meia dúzia") {
		spec.Quantity = decimal.NewFromInt(6)
		spec.Explicit = true
		return spec
	}
	if strings.Contains(lower, "duzia") || strings.Contains(lower, "dúzia") {
		spec.Quantity = decimal.NewFromInt(12)
		spec.Explicit = true
		return spec
	}

	for _, tok := range strings.Fields(lower) {
		if n, ok := numberWords[strings.Trim(tok, ".,!?")]; ok {
			spec.Quantity = decimal.NewFromInt(n)
			spec.Explicit = true
			return spec
		}
	}

	// "mais"/"outra" with no amount means one more unit.
	if spec.Op == core.OpAdd {
		spec.Quantity = decimal.NewFromInt(1)
		spec.Explicit = true
	}
	return spec
}

func containsWord(s, w string) bool {
	for _, tok := range strings.Fields(s) {
		if strings.Trim(tok, ".,!?") == w {
			return true
		}
	}
	return false
}
