package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/pkg/log"
)

// pendingResolution says what should happen to the open question once the
// turn commits to an intent.
type pendingResolution int

const (
	pendingKeep pendingResolution = iota
	pendingConsume
	pendingSupersede
)

// resolveAgainstPending reinterprets the classified intent in light of the
// question the bot has open, and repairs references the classifier left
// dangling. A bare number after "how many?" is a quantity, not a list pick.
// The pass is pure with respect to the session: consuming or abandoning the
// open question is deferred to commitPending, so an intent the strategy
// decision discards leaves no trace on the session.
func (p *Pipeline) resolveAgainstPending(s *core.Session, c core.Classified) (core.Classified, pendingResolution) {
	res := pendingKeep
	if s.Pending != nil {
		switch s.Pending.Kind {
		case core.PendingQuantity:
			if sel, ok := c.Intent.(core.SelectOption); ok {
				c.Intent = core.AddToCart{
					ProductCode: s.Pending.ProductCode,
					Term:        s.Pending.Term,
					Quantity:    decimal.NewFromInt(int64(sel.Index)),
				}
				return p.repairReferences(s, c), pendingConsume
			}
			if add, ok := c.Intent.(core.AddToCart); ok {
				if add.Term == "" && add.ProductCode == "" {
					add.ProductCode = s.Pending.ProductCode
					add.Term = s.Pending.Term
					c.Intent = add
					return p.repairReferences(s, c), pendingConsume
				}
				if add.ProductCode == s.Pending.ProductCode {
					return p.repairReferences(s, c), pendingConsume
				}
			}

		case core.PendingConfirmIntent:
			if yes, ok := c.Intent.(core.Confirm); ok && yes.Yes {
				if s.Pending.Intent != nil {
					if it, err := s.Pending.Intent.Decode(); err == nil {
						c.Intent = it
						c.Confidence = 1.0
						return p.repairReferences(s, c), pendingConsume
					}
				}
			}
		}

		// A new topic supersedes the open question.
		if supersedes(c.Intent) {
			res = pendingSupersede
		}
	}

	return p.repairReferences(s, c), res
}

// commitPending applies the pending-action resolution for the intent the
// turn actually acts on.
func (p *Pipeline) commitPending(ctx context.Context, s *core.Session, res pendingResolution) {
	switch res {
	case pendingConsume:
		s.Pending = nil
	case pendingSupersede:
		p.abandonPending(ctx, s)
	}
}

// supersedes: intents that clearly start something new rather than answer the
// open question.
func supersedes(it core.Intent) bool {
	switch v := it.(type) {
	case core.SearchProducts, core.ShowMenu, core.ClearCart, core.StartCheckout, core.Cancel, core.Greet:
		return true
	case core.AddToCart:
		return v.Term != "" || v.ProductCode != ""
	}
	return false
}

// abandonPending drops the open question. A dropped product suggestion counts
// as rejected feedback for the knowledge base.
func (p *Pipeline) abandonPending(ctx context.Context, s *core.Session) {
	if s.Pending == nil {
		return
	}
	if s.Pending.Kind == core.PendingSelection && s.LastOutcomeID != 0 {
		if err := p.engine.Feedback(ctx, s.LastOutcomeID, core.FeedbackRejected); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("recording rejected feedback")
		}
		s.LastOutcomeID = 0
	}
	s.Pending = nil
}

// repairReferences fills product references from conversational context. An
// unresolvable reference becomes a clarifying question, never a guess.
func (p *Pipeline) repairReferences(s *core.Session, c core.Classified) core.Classified {
	switch v := c.Intent.(type) {
	case core.AddToCart:
		if v.Term == "" && v.ProductCode == "" {
			ref, err := s.LastProduct()
			if errors.Is(err, core.ErrAmbiguousReference) {
				c.Intent = core.Clarify{Question: "Qual produto você quer adicionar? Me diz o nome que eu busco."}
				return c
			}
			v.ProductCode = ref.Code
			c.Intent = v
		}
	case core.UpdateCartItem:
		if v.Term == "" && v.ProductCode == "" {
			ref, err := s.LastProduct()
			if errors.Is(err, core.ErrAmbiguousReference) {
				if len(s.Cart.Items) == 1 {
					v.ProductCode = s.Cart.Items[0].ProductCode
					c.Intent = v
					return c
				}
				c.Intent = core.Clarify{Question: "De qual item do carrinho você está falando?"}
				return c
			}
			v.ProductCode = ref.Code
			c.Intent = v
		}
	case core.SelectOption:
		if s.Pending == nil && len(s.LastShown) == 0 {
			c.Intent = core.Clarify{Question: "Não tenho uma lista aberta agora. Me diga o nome do produto que você procura."}
		}
	}
	return c
}

// describeIntent renders an intent as the thing the bot is about to do, for
// confirmation questions.
func describeIntent(it core.Intent) string {
	switch v := it.(type) {
	case core.SearchProducts:
		return fmt.Sprintf("você quer que eu busque %q.", v.Term)
	case core.AddToCart:
		name := v.Term
		if name == "" {
			name = v.ProductCode
		}
		if v.Quantity.IsPositive() {
			return fmt.Sprintf("você quer adicionar %s unidade(s) de %q ao carrinho.", FormatQty(v.Quantity), name)
		}
		return fmt.Sprintf("você quer adicionar %q ao carrinho.", name)
	case core.UpdateCartItem:
		switch v.Op {
		case core.OpRemove:
			return "você quer tirar esse item do carrinho."
		case core.OpSet:
			return fmt.Sprintf("você quer deixar esse item com %s unidade(s).", FormatQty(v.Quantity))
		default:
			return fmt.Sprintf("você quer somar %s unidade(s) a esse item.", FormatQty(v.Quantity))
		}
	case core.ClearCart:
		return "você quer esvaziar o carrinho."
	case core.StartCheckout:
		return "você quer finalizar o pedido."
	default:
		return "você quer " + it.Name() + "."
	}
}
