package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sandevgo/gavbot/internal/core"
)

// FastPath recognizes common literal commands without invoking the language
// model. It must run before any network call so the cheap turns stay cheap.
type FastPath struct{}

func NewFastPath() *FastPath {
	return &FastPath{}
}

var (
	numericRe = regexp.MustCompile(`^\s*(\d{1,2})\s*$`)
	cnpjRe    = regexp.MustCompile(`\b(\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}|\d{14})\b`)

	clearCartRe = []*regexp.Regexp{
		regexp.MustCompile(`\b(esvaziar|limpar|zerar|apagar|deletar|remover)\s+(o\s+)?carrinho\b`),
		regexp.MustCompile(`\b(carrinho|tudo)\s+(vazio|limpo|zerado)\b`),
		regexp.MustCompile(`\bcome[cç]a\w*\s+de\s+novo\b`),
		regexp.MustCompile(`\bdo\s+zero\b`),
		regexp.MustCompile(`\b(esvazia|limpa|zera)\s+(carrinho|tudo)\b`),
	}
)

var literalCommands = map[string]core.Intent{
	"menu":      core.ShowMenu{},
	"cardapio":  core.ShowMenu{},
	"cardápio":  core.ShowMenu{},
	"produtos":  core.ShowMenu{},
	"ajuda":     core.Help{},
	"help":      core.Help{},
	"opcoes":    core.Help{},
	"opções":    core.Help{},
	"cancelar":  core.Cancel{},
	"cancela":   core.Cancel{},
	"voltar":    core.Cancel{},
	"carrinho":  core.ViewCart{},
	"finalizar": core.StartCheckout{},
	"checkout":  core.StartCheckout{},
	"concluir":  core.StartCheckout{},
	"comprar":   core.StartCheckout{},
	"sim":       core.Confirm{Yes: true},
	"ok":        core.Confirm{Yes: true},
	"claro":     core.Confirm{Yes: true},
	"isso":      core.Confirm{Yes: true},
	"pode ser":  core.Confirm{Yes: true},
	"nao":       core.Confirm{Yes: false},
	"não":       core.Confirm{Yes: false},
}

var literalPhrases = map[string]core.Intent{
	"ver carrinho":     core.ViewCart{},
	"mostrar carrinho": core.ViewCart{},
	"meu carrinho":     core.ViewCart{},
	"fechar pedido":    core.StartCheckout{},
	"finalizar pedido": core.StartCheckout{},
	"limpar carrinho":  core.ClearCart{},
	"esvaziar carrinho": core.ClearCart{},
	"zerar carrinho":   core.ClearCart{},
	"novo pedido":      core.ClearCart{},
	"nova compra":      core.ClearCart{},
	"cancelar pedido":  core.Cancel{},
	"cancelar compra":  core.Cancel{},
}

var greetings = []string{
	"oi", "ola", "olá", "bom dia", "boa tarde", "boa noite", "e ai", "e aí", "eai",
}

// Match returns a fully formed intent with confidence 1.0, or no match.
func (f *FastPath) Match(msg string) (core.Classified, bool) {
	lower := strings.ToLower(strings.TrimSpace(msg))
	if lower == "" {
		return core.Classified{}, false
	}

	if m := numericRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return fastMatch(core.SelectOption{Index: n}), true
	}

	if m := cnpjRe.FindString(lower); m != "" {
		return fastMatch(core.ProvideTaxID{TaxID: m}), true
	}

	if it, ok := literalCommands[lower]; ok {
		return fastMatch(it), true
	}
	if it, ok := literalPhrases[lower]; ok {
		return fastMatch(it), true
	}

	for _, re := range clearCartRe {
		if re.MatchString(lower) {
			return fastMatch(core.ClearCart{}), true
		}
	}

	for _, g := range greetings {
		if lower == g {
			return fastMatch(core.Greet{}), true
		}
	}

	return core.Classified{}, false
}

func fastMatch(it core.Intent) core.Classified {
	return core.Classified{Intent: it, Source: core.IntentFromFastPath, Confidence: 1.0}
}
