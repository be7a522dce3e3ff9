package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/gavbot/internal/core"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrder writes the order and its lines in one transaction and bumps the
// sales counters that drive suggestion ranking.
func (r *OrderRepo) CreateOrder(ctx context.Context, o core.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (number, conversation_key, customer_tax_id, total, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.Number, o.ConversationKey, o.CustomerTaxID, o.Total.String(), o.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_number, position, product_code, description, quantity, tier, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.Number, it.Position, it.ProductCode, it.Description,
			it.Quantity.String(), string(it.Tier), it.UnitPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE products SET sales_count = sales_count + 1 WHERE code = ?`,
			it.ProductCode,
		)
		if err != nil {
			return fmt.Errorf("failed to bump sales count: %w", err)
		}
	}

	return tx.Commit()
}
