package cart

import (
	"errors"
	"time"

	"github.com/sandevgo/gavbot/internal/core"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateLine: the product is already in the cart. Callers turn this
	// into a replace/add/ignore question instead of guessing.
	ErrDuplicateLine = errors.New("product already in cart")

	ErrInvalidQuantity = errors.New("quantity must be positive")

	ErrNoSuchLine = errors.New("no such cart line")
)

// MergeMode picks what happens when a duplicate line is resolved.
type MergeMode string

const (
	MergeReplace MergeMode = "replace"
	MergeAdd     MergeMode = "add"
	MergeIgnore  MergeMode = "ignore"
)

// Quote is the price decision for a given product and quantity. The tier
// actually applied may differ from the requested one; Substituted makes that
// visible so the reply can say so.
type Quote struct {
	Tier        core.PriceTier
	UnitPrice   decimal.Decimal
	Substituted bool
	Requested   core.PriceTier
}

// PriceQuote resolves the unit price: promo wins while active, wholesale
// requires the minimum quantity, everything else is retail. A wholesale
// request below the minimum is served at retail with Substituted set.
func PriceQuote(p core.Product, qty decimal.Decimal, requested core.PriceTier, now time.Time) Quote {
	if p.PromoActive(now) {
		return Quote{Tier: core.TierPromo, UnitPrice: p.PromoPrice, Requested: requested}
	}

	wholesaleEligible := !p.WholesalePrice.IsZero() &&
		!p.WholesaleMinQty.IsZero() &&
		qty.GreaterThanOrEqual(p.WholesaleMinQty)

	switch requested {
	case core.TierWholesale:
		if wholesaleEligible {
			return Quote{Tier: core.TierWholesale, UnitPrice: p.WholesalePrice, Requested: requested}
		}
		return Quote{Tier: core.TierRetail, UnitPrice: p.RetailPrice, Substituted: true, Requested: requested}
	case core.TierRetail:
		return Quote{Tier: core.TierRetail, UnitPrice: p.RetailPrice, Requested: requested}
	default:
		// No preference: best tier for the quantity.
		if wholesaleEligible {
			return Quote{Tier: core.TierWholesale, UnitPrice: p.WholesalePrice, Requested: requested}
		}
		return Quote{Tier: core.TierRetail, UnitPrice: p.RetailPrice, Requested: requested}
	}
}

// Add appends a new line. A line for the same product already present is a
// duplicate, reported rather than silently merged.
func Add(c *core.Cart, p core.Product, qty decimal.Decimal, q Quote) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if _, ok := FindByCode(c, p.Code); ok {
		return ErrDuplicateLine
	}
	c.Items = append(c.Items, core.CartItem{
		ProductCode: p.Code,
		Description: p.Description,
		Quantity:    qty,
		Tier:        q.Tier,
		UnitPrice:   q.UnitPrice,
	})
	renumber(c)
	return nil
}

// Merge resolves a duplicate line per the chosen mode. The unit price is
// requoted for the resulting quantity so tier boundaries are honored.
func Merge(c *core.Cart, p core.Product, qty decimal.Decimal, mode MergeMode, now time.Time) error {
	idx, ok := FindByCode(c, p.Code)
	if !ok {
		return ErrNoSuchLine
	}
	switch mode {
	case MergeIgnore:
		return nil
	case MergeReplace:
		// keep qty as given
	case MergeAdd:
		qty = c.Items[idx].Quantity.Add(qty)
	default:
		return ErrNoSuchLine
	}
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	q := PriceQuote(p, qty, "", now)
	c.Items[idx].Quantity = qty
	c.Items[idx].Tier = q.Tier
	c.Items[idx].UnitPrice = q.UnitPrice
	return nil
}

// Update changes a line's quantity. Zero or below removes the line.
func Update(c *core.Cart, p core.Product, op core.CartOp, qty decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	idx, ok := FindByCode(c, p.Code)
	if !ok {
		if op == core.OpAdd {
			if !qty.IsPositive() {
				return decimal.Zero, ErrInvalidQuantity
			}
			q := PriceQuote(p, qty, "", now)
			if err := Add(c, p, qty, q); err != nil {
				return decimal.Zero, err
			}
			return qty, nil
		}
		return decimal.Zero, ErrNoSuchLine
	}

	current := c.Items[idx].Quantity
	var next decimal.Decimal
	switch op {
	case core.OpAdd:
		next = current.Add(qty)
	case core.OpRemove:
		next = current.Sub(qty)
	case core.OpSet:
		next = qty
	default:
		return decimal.Zero, ErrNoSuchLine
	}

	if !next.IsPositive() {
		Remove(c, p.Code)
		return decimal.Zero, nil
	}
	q := PriceQuote(p, next, "", now)
	c.Items[idx].Quantity = next
	c.Items[idx].Tier = q.Tier
	c.Items[idx].UnitPrice = q.UnitPrice
	return next, nil
}

func Remove(c *core.Cart, code string) bool {
	idx, ok := FindByCode(c, code)
	if !ok {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	renumber(c)
	return true
}

func Clear(c *core.Cart) {
	c.Items = nil
	c.Discount = decimal.Zero
}

func FindByCode(c *core.Cart, code string) (int, bool) {
	for i, it := range c.Items {
		if it.ProductCode == code {
			return i, true
		}
	}
	return 0, false
}

func renumber(c *core.Cart) {
	for i := range c.Items {
		c.Items[i].Position = i + 1
	}
}
