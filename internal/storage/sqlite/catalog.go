package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/core"
)

// CatalogRepo reads the product catalog. Prices are stored as decimal strings
// so no float rounding ever reaches a total.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

const productColumns = `code, description, category, brand, unit,
	retail_price, wholesale_price, wholesale_min_qty,
	promo_price, promo_from, promo_until, stock, sales_count`

func (r *CatalogRepo) SearchProducts(ctx context.Context, term string, limit int) ([]core.Product, error) {
	words := strings.Fields(term)
	if len(words) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	for _, w := range words {
		conds = append(conds, `description LIKE ? COLLATE NOCASE`)
		args = append(args, "%"+w+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT %s FROM products WHERE %s ORDER BY sales_count DESC LIMIT ?`,
		productColumns, strings.Join(conds, " AND "),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (r *CatalogRepo) GetProduct(ctx context.Context, code string) (*core.Product, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE code = ?`, productColumns), code,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", code, err)
	}
	return p, nil
}

func (r *CatalogRepo) TopSelling(ctx context.Context, limit int) ([]core.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM products ORDER BY sales_count DESC, description ASC LIMIT ?`, productColumns),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load top sellers: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// Seed upserts catalog rows, used by the seed command and tests.
func (r *CatalogRepo) Seed(ctx context.Context, products []core.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (code, description, category, brand, unit,
				retail_price, wholesale_price, wholesale_min_qty,
				promo_price, promo_from, promo_until, stock, sales_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				description = excluded.description,
				category = excluded.category,
				brand = excluded.brand,
				unit = excluded.unit,
				retail_price = excluded.retail_price,
				wholesale_price = excluded.wholesale_price,
				wholesale_min_qty = excluded.wholesale_min_qty,
				promo_price = excluded.promo_price,
				promo_from = excluded.promo_from,
				promo_until = excluded.promo_until,
				stock = excluded.stock,
				sales_count = excluded.sales_count`,
			p.Code, p.Description, p.Category, p.Brand, p.Unit,
			p.RetailPrice.String(), p.WholesalePrice.String(), p.WholesaleMinQty.String(),
			p.PromoPrice.String(), unixOrZero(p.PromoFrom), unixOrZero(p.PromoUntil),
			p.Stock.String(), p.SalesCount,
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.Code, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*core.Product, error) {
	var p core.Product
	var retail, wholesale, minQty, promo, stock string
	var promoFrom, promoUntil int64

	err := row.Scan(&p.Code, &p.Description, &p.Category, &p.Brand, &p.Unit,
		&retail, &wholesale, &minQty, &promo, &promoFrom, &promoUntil, &stock, &p.SalesCount)
	if err != nil {
		return nil, err
	}

	if p.RetailPrice, err = decimal.NewFromString(retail); err != nil {
		return nil, fmt.Errorf("bad retail price for %s: %w", p.Code, err)
	}
	if p.WholesalePrice, err = decimal.NewFromString(wholesale); err != nil {
		return nil, fmt.Errorf("bad wholesale price for %s: %w", p.Code, err)
	}
	if p.WholesaleMinQty, err = decimal.NewFromString(minQty); err != nil {
		return nil, fmt.Errorf("bad wholesale min qty for %s: %w", p.Code, err)
	}
	if p.PromoPrice, err = decimal.NewFromString(promo); err != nil {
		return nil, fmt.Errorf("bad promo price for %s: %w", p.Code, err)
	}
	if p.Stock, err = decimal.NewFromString(stock); err != nil {
		return nil, fmt.Errorf("bad stock for %s: %w", p.Code, err)
	}
	if promoFrom > 0 {
		p.PromoFrom = time.Unix(promoFrom, 0)
	}
	if promoUntil > 0 {
		p.PromoUntil = time.Unix(promoUntil, 0)
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]core.Product, error) {
	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
