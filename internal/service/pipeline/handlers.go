package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/cart"
	"github.com/sandevgo/gavbot/internal/checkout"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/knowledge"
	"github.com/sandevgo/gavbot/pkg/log"
)

func (p *Pipeline) dispatch(ctx context.Context, s *core.Session, c core.Classified) string {
	switch v := c.Intent.(type) {
	case core.SearchProducts:
		return p.handleSearch(ctx, s, v.Term)
	case core.AddToCart:
		return p.handleAdd(ctx, s, v)
	case core.SelectOption:
		return p.handleSelect(ctx, s, v)
	case core.UpdateCartItem:
		return p.handleUpdate(ctx, s, v)
	case core.ViewCart:
		return formatCart(s.Cart)
	case core.ClearCart:
		cart.Clear(&s.Cart)
		s.Pending = nil
		s.Stage = core.StageShopping
		return "Prontinho, carrinho esvaziado. O que você quer pedir agora?"
	case core.StartCheckout:
		s.Pending = nil
		return p.checkout.Start(s, formatCart(s.Cart))
	case core.ProvideTaxID:
		return p.handleTaxID(s, v)
	case core.Confirm:
		return p.handleConfirm(ctx, s, v)
	case core.ShowMenu:
		return p.handleMenu(ctx, s)
	case core.Help:
		return replyHelp
	case core.Cancel:
		return p.handleCancel(ctx, s)
	case core.Greet:
		return replyGreeting
	case core.SmallTalk:
		return "Eu sou melhor com pedidos do que com papo. 😄 Me diga o que você procura que eu encontro!"
	case core.Clarify:
		return v.Question
	default:
		log.FromCtx(ctx).Error().Str("intent", c.Intent.Name()).Msg("unhandled intent variant")
		return "Desculpe, não entendi. Pode reformular?"
	}
}

func (p *Pipeline) handleSearch(ctx context.Context, s *core.Session, term string) string {
	res, err := p.engine.Search(ctx, term)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("term", term).Msg("knowledge search failed")
		return "Tive um problema na busca agora. Pode tentar de novo?"
	}
	if len(res.Matches) == 0 {
		s.LastShown = nil
		s.LastOutcomeID = res.OutcomeID
		return formatSuggestions(term, res.Suggestions)
	}

	refs := p.asRefs(res.Matches)
	s.LastShown = refs
	s.LastOutcomeID = res.OutcomeID
	s.Pending = &core.PendingAction{
		Kind:    core.PendingSelection,
		Term:    term,
		Options: len(refs),
	}
	return formatProductList(searchPreamble(res.Quality, term), refs)
}

func (p *Pipeline) handleAdd(ctx context.Context, s *core.Session, v core.AddToCart) string {
	product, reply := p.resolveProduct(ctx, s, v)
	if product == nil {
		return reply
	}

	if !v.Quantity.IsPositive() {
		s.Pending = &core.PendingAction{
			Kind:        core.PendingQuantity,
			ProductCode: product.Code,
			Term:        product.Description,
		}
		msg := fmt.Sprintf("%s sai por %s a unidade.", product.Description, FormatPrice(product.RetailPrice))
		if !product.WholesalePrice.IsZero() && !product.WholesaleMinQty.IsZero() {
			msg += fmt.Sprintf(" A partir de %s unidades, %s no atacado.",
				FormatQty(product.WholesaleMinQty), FormatPrice(product.WholesalePrice))
		}
		return msg + "\nQuantas unidades você quer?"
	}

	now := p.now()
	quote := cart.PriceQuote(*product, v.Quantity, v.Tier, now)
	err := cart.Add(&s.Cart, *product, v.Quantity, quote)
	if errors.Is(err, cart.ErrDuplicateLine) {
		idx, _ := cart.FindByCode(&s.Cart, product.Code)
		current := s.Cart.Items[idx].Quantity
		s.Pending = &core.PendingAction{
			Kind:        core.PendingDuplicate,
			ProductCode: product.Code,
			Term:        product.Description,
			Quantity:    v.Quantity,
		}
		return fmt.Sprintf("%s já está no carrinho com %s unidade(s). O que você prefere?\n"+
			"*1.* Substituir pela nova quantidade (%s)\n"+
			"*2.* Somar à quantidade atual\n"+
			"*3.* Deixar como está",
			product.Description, FormatQty(current), FormatQty(v.Quantity))
	}
	if err != nil {
		return "Essa quantidade não funcionou. Me diga um número maior que zero."
	}

	p.acceptSearch(ctx, s, v.Term, *product)
	s.TouchProduct(p.asRef(*product))
	s.Pending = nil

	msg := fmt.Sprintf("Adicionei %s x %s (%s cada).",
		FormatQty(v.Quantity), product.Description, FormatPrice(quote.UnitPrice))
	if quote.Substituted {
		msg += fmt.Sprintf("\nPara o preço de atacado são necessárias %s unidades, então apliquei o preço de varejo.",
			FormatQty(product.WholesaleMinQty))
	} else if quote.Tier == core.TierWholesale {
		msg += " Preço de atacado aplicado. 👍"
	} else if quote.Tier == core.TierPromo {
		msg += " Preço promocional aplicado. 🎉"
	}
	return msg + fmt.Sprintf("\nTotal do carrinho: %s", FormatPrice(s.Cart.Total()))
}

// resolveProduct turns the intent's code or free-text term into a catalog
// product, or returns the reply to send instead (a list, a clarification).
func (p *Pipeline) resolveProduct(ctx context.Context, s *core.Session, v core.AddToCart) (*core.Product, string) {
	if v.ProductCode != "" {
		product, err := p.catalog.GetProduct(ctx, v.ProductCode)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("code", v.ProductCode).Msg("resolving product code")
			return nil, "Não achei esse produto no catálogo. Pode me dizer o nome dele?"
		}
		return product, ""
	}

	res, err := p.engine.Search(ctx, v.Term)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("term", v.Term).Msg("knowledge search failed")
		return nil, "Tive um problema na busca agora. Pode tentar de novo?"
	}
	if len(res.Matches) == 0 {
		s.LastShown = nil
		s.LastOutcomeID = res.OutcomeID
		return nil, formatSuggestions(v.Term, res.Suggestions)
	}

	// A single confident match resolves directly; anything murkier becomes a
	// numbered choice.
	if len(res.Matches) == 1 || res.Quality == knowledge.QualityExcellent {
		s.LastOutcomeID = res.OutcomeID
		return &res.Matches[0].Product, ""
	}

	refs := p.asRefs(res.Matches)
	s.LastShown = refs
	s.LastOutcomeID = res.OutcomeID
	s.Pending = &core.PendingAction{
		Kind:     core.PendingSelection,
		Term:     v.Term,
		Options:  len(refs),
		Quantity: v.Quantity,
	}
	return nil, formatProductList(searchPreamble(res.Quality, v.Term), refs)
}

func (p *Pipeline) handleSelect(ctx context.Context, s *core.Session, v core.SelectOption) string {
	if s.Pending != nil && s.Pending.Kind == core.PendingDuplicate {
		return p.resolveDuplicate(ctx, s, v.Index)
	}

	if len(s.LastShown) == 0 {
		return "Não tenho uma lista aberta agora. Me diga o nome do produto que você procura."
	}
	if v.Index < 1 || v.Index > len(s.LastShown) {
		return fmt.Sprintf("Escolha um número entre 1 e %d, por favor.", len(s.LastShown))
	}

	ref := s.LastShown[v.Index-1]
	product, err := p.catalog.GetProduct(ctx, ref.Code)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("code", ref.Code).Msg("resolving selected product")
		return "Não consegui carregar esse produto agora. Pode tentar de novo?"
	}

	var term string
	var carried decimal.Decimal
	if s.Pending != nil && s.Pending.Kind == core.PendingSelection {
		term = s.Pending.Term
		carried = s.Pending.Quantity
	}
	s.Pending = nil
	p.acceptSearch(ctx, s, term, *product)
	s.TouchProduct(p.asRef(*product))

	if carried.IsPositive() {
		return p.handleAdd(ctx, s, core.AddToCart{ProductCode: product.Code, Quantity: carried})
	}

	s.Pending = &core.PendingAction{
		Kind:        core.PendingQuantity,
		ProductCode: product.Code,
		Term:        product.Description,
	}
	msg := fmt.Sprintf("Boa escolha! %s por %s.", product.Description, FormatPrice(product.RetailPrice))
	if !product.WholesalePrice.IsZero() && !product.WholesaleMinQty.IsZero() {
		msg += fmt.Sprintf(" No atacado (%s+ unidades) sai por %s.",
			FormatQty(product.WholesaleMinQty), FormatPrice(product.WholesalePrice))
	}
	return msg + "\nQuantas unidades você quer?"
}

func (p *Pipeline) resolveDuplicate(ctx context.Context, s *core.Session, index int) string {
	pending := s.Pending
	s.Pending = nil

	var mode cart.MergeMode
	switch index {
	case 1:
		mode = cart.MergeReplace
	case 2:
		mode = cart.MergeAdd
	case 3:
		mode = cart.MergeIgnore
	default:
		s.Pending = pending
		return "Responda *1* para substituir, *2* para somar ou *3* para deixar como está."
	}

	if mode == cart.MergeIgnore {
		return "Combinado, deixei como estava.\n" + formatCart(s.Cart)
	}

	product, err := p.catalog.GetProduct(ctx, pending.ProductCode)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("code", pending.ProductCode).Msg("resolving duplicate product")
		return "Não consegui atualizar esse item agora. Pode tentar de novo?"
	}
	if err := cart.Merge(&s.Cart, *product, pending.Quantity, mode, p.now()); err != nil {
		return "Essa quantidade não funcionou. Me diga um número maior que zero."
	}
	s.TouchProduct(p.asRef(*product))
	return "Feito!\n" + formatCart(s.Cart)
}

func (p *Pipeline) handleUpdate(ctx context.Context, s *core.Session, v core.UpdateCartItem) string {
	var product *core.Product
	if v.ProductCode != "" {
		var err error
		product, err = p.catalog.GetProduct(ctx, v.ProductCode)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("code", v.ProductCode).Msg("resolving product code")
			return "Não achei esse produto. De qual item do carrinho você está falando?"
		}
	} else {
		res, err := p.engine.Search(ctx, v.Term)
		if err != nil || len(res.Matches) == 0 {
			return fmt.Sprintf("Não achei %q no carrinho. Digite *carrinho* para ver seus itens.", v.Term)
		}
		product = &res.Matches[0].Product
	}

	op := v.Op
	if op == "" {
		op = core.OpSet
	}
	qty := v.Quantity
	if !qty.IsPositive() && op != core.OpSet {
		qty = decimal.NewFromInt(1)
	}

	next, err := cart.Update(&s.Cart, *product, op, qty, p.now())
	switch {
	case errors.Is(err, cart.ErrNoSuchLine):
		return fmt.Sprintf("%s não está no carrinho. Quer que eu adicione?", product.Description)
	case err != nil:
		return "Essa quantidade não funcionou. Me diga um número maior que zero."
	}

	s.TouchProduct(p.asRef(*product))
	if next.IsZero() {
		return fmt.Sprintf("Tirei %s do carrinho.\n%s", product.Description, formatCart(s.Cart))
	}
	return fmt.Sprintf("%s agora está com %s unidade(s).\n%s",
		product.Description, FormatQty(next), formatCart(s.Cart))
}

func (p *Pipeline) handleTaxID(s *core.Session, v core.ProvideTaxID) string {
	if s.Stage == core.StageCollectingTaxID {
		return p.checkout.SubmitTaxID(s, v.TaxID)
	}
	// Identifier sent outside checkout: keep it for later, stay shopping.
	digits, err := checkout.ValidateCNPJ(v.TaxID)
	if err != nil {
		return "Esse CNPJ não parece válido. Confere o número e me envia de novo, por favor."
	}
	s.CustomerTaxID = digits
	return "CNPJ " + checkout.FormatCNPJ(digits) + " registrado! Quando quiser, digite *finalizar* para fechar o pedido."
}

func (p *Pipeline) handleConfirm(ctx context.Context, s *core.Session, v core.Confirm) string {
	if s.Pending != nil {
		switch s.Pending.Kind {
		case core.PendingDuplicate:
			if v.Yes {
				return p.resolveDuplicate(ctx, s, 2)
			}
			s.Pending = nil
			return "Combinado, deixei como estava.\n" + formatCart(s.Cart)
		case core.PendingConfirmIntent:
			// The yes case was resolved before dispatch; reaching here means no.
			s.Pending = nil
			return "Sem problema, deixei pra lá. O que mais você precisa?"
		case core.PendingQuantity:
			if !v.Yes {
				s.Pending = nil
				return "Tudo bem. Me diga o que mais você procura."
			}
			return "Quantas unidades você quer?"
		case core.PendingSelection:
			if !v.Yes {
				p.abandonPending(ctx, s)
				return "Sem problema. Me diga o que você procura que eu busco de novo."
			}
			return fmt.Sprintf("Qual das opções? Responda com um número de 1 a %d.", len(s.LastShown))
		}
	}

	if s.Stage == core.StageAwaitingConfirm {
		reply, err := p.checkout.Confirm(ctx, s, v.Yes, p.now())
		switch {
		case errors.Is(err, core.ErrEmptyCart):
			return "Seu carrinho ficou vazio, então não há pedido para confirmar. Me diga o que você procura!"
		case err != nil:
			log.FromCtx(ctx).Error().Err(err).Str("key", s.Key).Msg("creating order")
			return "Tive um problema ao registrar o pedido. 😥 Pode confirmar de novo em instantes?"
		}
		return reply
	}

	if v.Yes {
		return "Não tenho nada pendente para confirmar. Me diga o que você procura!"
	}
	return "Tudo bem! Me diga o que você procura."
}

func (p *Pipeline) handleMenu(ctx context.Context, s *core.Session) string {
	top, err := p.catalog.TopSelling(ctx, p.pageSize)
	if err != nil || len(top) == 0 {
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("loading menu")
		}
		return "Não consegui carregar o catálogo agora. Pode tentar de novo?"
	}
	refs := make([]core.ProductRef, 0, len(top))
	for _, prod := range top {
		refs = append(refs, p.asRef(prod))
	}
	s.LastShown = refs
	s.Pending = &core.PendingAction{Kind: core.PendingSelection, Options: len(refs)}
	return formatProductList(replyMenuHeader, refs)
}

func (p *Pipeline) handleCancel(ctx context.Context, s *core.Session) string {
	if s.Stage != core.StageShopping {
		return p.checkout.Cancel(s)
	}
	if s.Pending != nil {
		p.abandonPending(ctx, s)
		return "Cancelado. O que mais você precisa?"
	}
	return "Não há nada em andamento para cancelar. Me diga o que você procura!"
}

// acceptSearch records positive feedback for the last search outcome and
// teaches the knowledge base the term the user actually typed.
func (p *Pipeline) acceptSearch(ctx context.Context, s *core.Session, term string, product core.Product) {
	if s.LastOutcomeID != 0 {
		if err := p.engine.Feedback(ctx, s.LastOutcomeID, core.FeedbackAccepted); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("recording accepted feedback")
		}
		s.LastOutcomeID = 0
	}
	if term != "" {
		if err := p.engine.Learn(ctx, term, product); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("term", term).Msg("learning term")
		}
	}
}

func (p *Pipeline) asRef(product core.Product) core.ProductRef {
	quote := cart.PriceQuote(product, decimal.NewFromInt(1), "", p.now())
	return core.ProductRef{Code: product.Code, Description: product.Description, Price: quote.UnitPrice}
}

func (p *Pipeline) asRefs(matches []knowledge.Match) []core.ProductRef {
	refs := make([]core.ProductRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, p.asRef(m.Product))
		if len(refs) == p.pageSize {
			break
		}
	}
	return refs
}
