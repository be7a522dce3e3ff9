package intent

import (
	"strings"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/shopspring/decimal"
)

// Synthesizer produces a deterministic intent when the classifier is
// unavailable or untrusted. It always produces something: the worst case is a
// clarifying question, never silence.
type Synthesizer struct {
	rules []rule
}

type rule func(msg string, s *core.Session) (core.Intent, float64, bool)

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		rules: []rule{
			pendingRule,
			contextRule,
			commandRule,
			searchRule,
			clarifyRule,
		},
	}
}

// Synthesize walks the rule chain in order and returns the first match. The
// last rule matches unconditionally.
func (sy *Synthesizer) Synthesize(msg string, s *core.Session) core.Classified {
	lower := strings.ToLower(strings.TrimSpace(msg))
	for _, r := range sy.rules {
		if it, conf, ok := r(lower, s); ok {
			return core.Classified{Intent: it, Source: core.IntentFromFallback, Confidence: conf}
		}
	}
	// Unreachable while clarifyRule stays last.
	return core.Classified{
		Intent:     core.Clarify{Question: "Desculpe, não entendi. Pode reformular?"},
		Source:     core.IntentFromFallback,
		Confidence: 0.3,
	}
}

// pendingRule interprets the message as an answer to the open question.
func pendingRule(msg string, s *core.Session) (core.Intent, float64, bool) {
	if s == nil || s.Pending == nil {
		return nil, 0, false
	}
	switch s.Pending.Kind {
	case core.PendingQuantity:
		spec := ExtractQuantity(msg)
		if spec.Explicit {
			return core.AddToCart{
				ProductCode: s.Pending.ProductCode,
				Term:        s.Pending.Term,
				Quantity:    spec.Quantity,
			}, 0.85, true
		}
	case core.PendingSelection:
		spec := ExtractQuantity(msg)
		if spec.Explicit && spec.Quantity.IsInteger() {
			n := int(spec.Quantity.IntPart())
			if n >= 1 && n <= s.Pending.Options {
				return core.SelectOption{Index: n}, 0.85, true
			}
		}
	case core.PendingDuplicate, core.PendingConfirmIntent:
		if yes, ok := parseYesNo(msg); ok {
			return core.Confirm{Yes: yes}, 0.85, true
		}
	}
	return nil, 0, false
}

// contextRule resolves elliptical follow-ups ("quero mais um", "tira esse")
// against the last referenced product.
func contextRule(msg string, s *core.Session) (core.Intent, float64, bool) {
	if s == nil {
		return nil, 0, false
	}
	spec := ExtractQuantity(msg)
	if spec.Op == "" {
		return nil, 0, false
	}
	if !mentionsAnaphor(msg) && !bareQuantityEdit(msg) {
		return nil, 0, false
	}
	ref, err := s.LastProduct()
	if err != nil {
		return core.Clarify{Question: "Mais um de qual produto? Me diz o nome que eu adiciono."}, 0.75, true
	}
	qty := spec.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return core.UpdateCartItem{
		ProductCode: ref.Code,
		Op:          spec.Op,
		Quantity:    qty,
	}, 0.75, true
}

// mentionsAnaphor reports whether the message points back at something
// previously shown rather than naming a product.
func mentionsAnaphor(msg string) bool {
	for _, w := range []string{"esse", "essa", "isso", "ele", "ela", "este", "esta", "mesmo", "mesma", "dele", "dela"} {
		if containsWord(msg, w) {
			return true
		}
	}
	return false
}

// bareQuantityEdit: an operation plus a number and nothing that looks like a
// product name ("mais 2", "tira um").
func bareQuantityEdit(msg string) bool {
	fields := strings.Fields(msg)
	if len(fields) == 0 || len(fields) > 4 {
		return false
	}
	filler := map[string]bool{"quero": true, "pode": true, "por": true, "favor": true, "ai": true, "aí": true}
	for _, f := range fields {
		f = strings.Trim(f, ".,!?")
		if _, isNum := numberWords[f]; isNum {
			continue
		}
		if numberRe.MatchString(f) {
			continue
		}
		if wordIn(f, removeWords) || wordIn(f, addWords) || filler[f] {
			continue
		}
		return false
	}
	return true
}

// commandRule covers command-like phrasings the fast path's literal tables
// miss.
func commandRule(msg string, s *core.Session) (core.Intent, float64, bool) {
	switch {
	case containsAny(msg, "finalizar", "fechar pedido", "fechar a conta", "concluir", "pagar"):
		return core.StartCheckout{}, 0.8, true
	case containsAny(msg, "carrinho", "meu pedido", "o que eu pedi"):
		if containsAny(msg, "limpa", "esvazia", "zera", "apaga") {
			return core.ClearCart{}, 0.8, true
		}
		return core.ViewCart{}, 0.8, true
	case containsAny(msg, "cancelar", "deixa pra la", "deixa pra lá", "esquece"):
		return core.Cancel{}, 0.8, true
	case containsAny(msg, "menu", "cardapio", "cardápio", "o que voce tem", "o que você tem", "o que vocês vendem", "o que voces vendem"):
		return core.ShowMenu{}, 0.8, true
	case containsAny(msg, "ajuda", "como funciona", "nao sei usar", "não sei usar"):
		return core.Help{}, 0.8, true
	case isGreetingish(msg):
		return core.Greet{}, 0.8, true
	}

	// "tem X?" / "vocês têm X" is a search for X.
	for _, prefix := range []string{"tem ", "voce tem ", "você tem ", "voces tem ", "vocês têm ", "teria "} {
		if strings.HasPrefix(msg, prefix) {
			term := strings.TrimSuffix(strings.TrimSpace(msg[len(prefix):]), "?")
			if term != "" {
				return core.SearchProducts{Term: term}, 0.8, true
			}
		}
	}

	// Explicit purchase verbs with a product-ish remainder.
	for _, verb := range []string{"quero comprar", "quero", "me ve", "me vê", "vou querer", "adiciona", "adicionar", "coloca", "colocar", "compra", "comprar"} {
		if strings.HasPrefix(msg, verb+" ") {
			rest := stripQuantityWords(strings.TrimSpace(msg[len(verb)+1:]))
			if rest == "" {
				continue
			}
			spec := ExtractQuantity(msg)
			qty := spec.Quantity
			if qty.IsZero() {
				qty = decimal.NewFromInt(1)
			}
			return core.AddToCart{Term: rest, Quantity: qty}, 0.8, true
		}
	}

	return nil, 0, false
}

// searchRule treats any remaining short noun-like message as a product search.
func searchRule(msg string, s *core.Session) (core.Intent, float64, bool) {
	term := stripQuantityWords(msg)
	fields := strings.Fields(term)
	if len(fields) == 0 || len(fields) > 5 {
		return nil, 0, false
	}
	// Pure punctuation or a lone yes/no is not a search.
	if _, ok := parseYesNo(term); ok {
		return nil, 0, false
	}
	if !hasLetter(term) {
		return nil, 0, false
	}
	return core.SearchProducts{Term: term}, 0.6, true
}

func clarifyRule(msg string, s *core.Session) (core.Intent, float64, bool) {
	return core.Clarify{
		Question: "Não consegui entender. Você pode dizer o nome de um produto, ver o *carrinho* ou pedir o *menu*.",
	}, 0.3, true
}

func parseYesNo(msg string) (bool, bool) {
	t := strings.Trim(msg, " .,!?")
	switch t {
	case "sim", "s", "ok", "pode", "pode ser", "claro", "isso", "quero", "confirmo", "confirmar":
		return true, true
	case "nao", "não", "n", "negativo", "nunca", "cancela":
		return false, true
	}
	return false, false
}

func containsAny(msg string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

func isGreetingish(msg string) bool {
	for _, g := range greetings {
		if msg == g || strings.HasPrefix(msg, g+" ") || strings.HasPrefix(msg, g+",") {
			return true
		}
	}
	return false
}

// stripQuantityWords removes digits, number words and operation verbs so the
// remainder can be used as a search term.
func stripQuantityWords(msg string) string {
	kept := make([]string, 0, 4)
	drop := map[string]bool{
		"de": true, "do": true, "da": true, "um": true, "uma": true,
		"quero": true, "por": true, "favor": true,
	}
	for _, f := range strings.Fields(msg) {
		t := strings.Trim(f, ".,!?")
		if t == "" || drop[t] {
			continue
		}
		if numberRe.MatchString(t) {
			continue
		}
		if _, ok := numberWords[t]; ok {
			continue
		}
		if wordIn(t, removeWords) || wordIn(t, addWords) {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

func wordIn(w string, list []string) bool {
	for _, l := range list {
		if w == l {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127 {
			return true
		}
	}
	return false
}
