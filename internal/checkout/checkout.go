package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/pkg/log"
)

// Controller drives the checkout flow. All methods mutate the session stage
// and return the reply text; persistence stays with the caller.
type Controller struct {
	orders core.OrderRepository
}

func NewController(orders core.OrderRepository) *Controller {
	return &Controller{orders: orders}
}

// Start moves the session into checkout. With a known customer it goes
// straight to confirmation, otherwise it asks for the company tax id first.
func (c *Controller) Start(s *core.Session, summary string) string {
	if s.Cart.Empty() {
		return "Seu carrinho está vazio. Me diga o que você procura e eu monto o pedido."
	}
	if s.CustomerTaxID != "" {
		s.Stage = core.StageAwaitingConfirm
		return summary + "\n\nCNPJ: " + FormatCNPJ(s.CustomerTaxID) + "\nConfirma o pedido? (*sim* / *não*)"
	}
	s.Stage = core.StageCollectingTaxID
	return summary + "\n\nPara finalizar, me informe o CNPJ da sua empresa."
}

// SubmitTaxID validates the identifier. Invalid input keeps the session in
// the collecting stage with a reason-specific correction request.
func (c *Controller) SubmitTaxID(s *core.Session, raw string) string {
	digits, err := ValidateCNPJ(raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrTaxIDLength):
			return "Esse CNPJ não tem 14 dígitos. Confere o número e me envia de novo, por favor."
		case errors.Is(err, ErrTaxIDRepeated):
			return "Esse CNPJ não parece válido (dígitos repetidos). Pode verificar e enviar novamente?"
		default:
			return "Os dígitos verificadores desse CNPJ não conferem. Pode revisar e me enviar de novo?"
		}
	}
	s.CustomerTaxID = digits
	s.Stage = core.StageAwaitingConfirm
	return "CNPJ " + FormatCNPJ(digits) + " registrado. Confirma o pedido? (*sim* / *não*)"
}

// Confirm finalizes or cancels the order depending on the answer.
func (c *Controller) Confirm(ctx context.Context, s *core.Session, yes bool, now time.Time) (string, error) {
	if !yes {
		s.Stage = core.StageShopping
		return "Sem problema, pedido não confirmado. Seu carrinho continua como estava.", nil
	}
	if s.Cart.Empty() {
		s.Stage = core.StageShopping
		return "", core.ErrEmptyCart
	}

	order := core.Order{
		Number:          orderNumber(),
		ConversationKey: s.Key,
		CustomerTaxID:   s.CustomerTaxID,
		Items:           append([]core.CartItem(nil), s.Cart.Items...),
		Total:           s.Cart.Total(),
		CreatedAt:       now,
	}
	if err := c.orders.CreateOrder(ctx, order); err != nil {
		return "", err
	}
	log.FromCtx(ctx).Info().
		Str("order", order.Number).
		Str("key", s.Key).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created")

	s.Cart = core.Cart{}
	s.Stage = core.StageShopping
	return "Pedido *" + order.Number + "* confirmado! 🎉\nTotal: R$ " +
		strings.Replace(order.Total.StringFixed(2), ".", ",", 1) +
		"\nObrigado pela preferência!", nil
}

// Cancel aborts the flow and returns to shopping without touching the cart.
func (c *Controller) Cancel(s *core.Session) string {
	s.Stage = core.StageShopping
	return "Finalização cancelada. Seu carrinho foi mantido, é só continuar comprando."
}

func orderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "PED-" + id[:8]
}
