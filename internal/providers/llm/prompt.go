package llm

import (
	"fmt"
	"strings"

	"github.com/sandevgo/gavbot/internal/core"
)

const systemPrompt = `Você é o G.A.V., o vendedor virtual de um atacarejo brasileiro no WhatsApp.
Sua única saída é um objeto JSON que classifica a mensagem do cliente em uma ferramenta:

{"tool": "<nome>", "params": {...}, "confidence": <0.0-1.0>}

Ferramentas disponíveis:
- search_products {"term": string} — o cliente procura ou pergunta por um produto
- add_to_cart {"term": string, "quantity": number, "tier": "retail"|"wholesale"|""} — o cliente quer comprar algo; preencha tier somente quando ele pedir explicitamente preço de atacado ou de varejo
- select_option {"index": number} — o cliente escolheu um item de uma lista numerada
- update_cart_item {"term": string, "op": "add"|"remove"|"set", "quantity": number} — mudar quantidade ou tirar item
- view_cart — ver o carrinho
- clear_cart — esvaziar o carrinho
- checkout — finalizar o pedido
- provide_tax_id {"tax_id": string} — o cliente enviou um CNPJ
- confirm {"yes": boolean} — resposta sim/não a uma pergunta sua
- show_menu — ver os produtos disponíveis
- help — como usar o serviço
- cancel — desistir da ação em andamento
- greet — cumprimento
- small_talk {"text": string} — conversa fora de compras
- clarify {"question": string} — quando realmente não dá para entender

Regras:
1. Responda SOMENTE o JSON, sem texto antes ou depois.
2. Se houver uma pergunta pendente (no contexto), interprete a mensagem primeiro como resposta a ela.
3. "mais um", "outra", "tira esse" referem-se ao último produto mencionado.
4. Quantidades por extenso contam: "duas" = 2, "uma dúzia" = 12, "meia dúzia" = 6.
5. confidence reflete sua certeza real; use valores baixos quando estiver em dúvida.`

// buildContext renders the session state block the model needs to resolve
// pronouns, pending questions, and checkout stage.
func buildContext(req core.ClassifyRequest) string {
	var b strings.Builder

	if req.Summary != "" {
		fmt.Fprintf(&b, "Resumo da conversa até aqui: %s\n", req.Summary)
	}
	if req.CartSummary != "" {
		fmt.Fprintf(&b, "Carrinho atual: %s\n", req.CartSummary)
	}
	if len(req.LastProducts) > 0 {
		names := make([]string, 0, len(req.LastProducts))
		for _, p := range req.LastProducts {
			names = append(names, p.Description)
		}
		fmt.Fprintf(&b, "Últimos produtos mencionados (mais recente primeiro): %s\n", strings.Join(names, "; "))
	}
	if req.Pending != nil {
		switch req.Pending.Kind {
		case core.PendingQuantity:
			fmt.Fprintf(&b, "Pergunta pendente: quantas unidades de %q o cliente quer.\n", req.Pending.Term)
		case core.PendingSelection:
			fmt.Fprintf(&b, "Pergunta pendente: o cliente deve escolher um número de 1 a %d da lista mostrada.\n", req.Pending.Options)
		case core.PendingDuplicate:
			fmt.Fprintf(&b, "Pergunta pendente: o produto %q já está no carrinho; o cliente deve escolher substituir, somar ou manter.\n", req.Pending.Term)
		case core.PendingConfirmIntent:
			b.WriteString("Pergunta pendente: o cliente deve confirmar com sim ou não a ação proposta.\n")
		}
	}

	if b.Len() == 0 {
		return ""
	}
	return "Contexto da sessão:\n" + b.String()
}
