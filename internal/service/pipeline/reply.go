package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/knowledge"
)

const (
	replyBusy = "Só um instante, ainda estou processando sua mensagem anterior. 😉"

	replyGreeting = "Olá! Eu sou o " + core.GavName + ", seu vendedor virtual. 👋\n" +
		"Me diga o que você procura (por exemplo, *cerveja* ou *sabão em pó*) que eu encontro para você."

	replyHelp = "Funciona assim:\n" +
		"• Diga o nome de um produto que eu busco no catálogo\n" +
		"• Responda com o *número* da lista para escolher um item\n" +
		"• *carrinho* mostra o que você já pediu\n" +
		"• *finalizar* fecha o pedido\n" +
		"• *cancelar* desiste da ação atual"

	replyMenuHeader = "Esses são os produtos mais pedidos:"
)

// FormatPrice renders a decimal in Brazilian currency style: R$ 12,34.
func FormatPrice(d decimal.Decimal) string {
	return "R$ " + strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatQty drops the decimal part when the quantity is whole.
func FormatQty(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.StringFixed(0)
	}
	return strings.Replace(d.String(), ".", ",", 1)
}

func formatProductList(header string, refs []core.ProductRef) string {
	var b strings.Builder
	b.WriteString(header)
	for i, r := range refs {
		fmt.Fprintf(&b, "\n*%d.* %s — %s", i+1, r.Description, FormatPrice(r.Price))
	}
	b.WriteString("\n\nResponda com o *número* do produto que você quer.")
	return b.String()
}

func formatCart(c core.Cart) string {
	if c.Empty() {
		return "Seu carrinho está vazio. Me diga o que você procura!"
	}
	var b strings.Builder
	b.WriteString("🛒 *Seu carrinho:*")
	for _, it := range c.Items {
		fmt.Fprintf(&b, "\n%d. %s — %s x %s = %s",
			it.Position, it.Description, FormatQty(it.Quantity),
			FormatPrice(it.UnitPrice), FormatPrice(it.LineTotal()))
		if it.Tier == core.TierWholesale {
			b.WriteString(" (atacado)")
		}
		if it.Tier == core.TierPromo {
			b.WriteString(" (promoção)")
		}
	}
	if !c.Discount.IsZero() {
		fmt.Fprintf(&b, "\nDesconto: -%s", FormatPrice(c.Discount))
	}
	fmt.Fprintf(&b, "\n*Total: %s*", FormatPrice(c.Total()))
	return b.String()
}

// cartSummary is the compact single-line rendering handed to the classifier.
func cartSummary(c core.Cart) string {
	if c.Empty() {
		return ""
	}
	parts := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		parts = append(parts, fmt.Sprintf("%sx %s", FormatQty(it.Quantity), it.Description))
	}
	return strings.Join(parts, ", ") + " (total " + FormatPrice(c.Total()) + ")"
}

func searchPreamble(q knowledge.Quality, term string) string {
	switch q {
	case knowledge.QualityExcellent:
		return "Encontrei:"
	case knowledge.QualityGood:
		return fmt.Sprintf("Acho que você quis dizer algo assim para %q:", term)
	case knowledge.QualityFair:
		return fmt.Sprintf("Não tenho certeza, mas para %q encontrei:", term)
	default:
		return fmt.Sprintf("Olha, para %q o mais parecido que tenho é:", term)
	}
}

func formatSuggestions(term string, suggestions []string) string {
	if len(suggestions) == 0 {
		return fmt.Sprintf("Não encontrei nada parecido com %q. 😕 Pode tentar outro nome? Digite *menu* para ver os produtos disponíveis.", term)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Não encontrei %q, mas esses aqui são campeões de venda:", term)
	for _, s := range suggestions {
		b.WriteString("\n• " + s)
	}
	b.WriteString("\n\nQuer algum deles?")
	return b.String()
}
