package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/gavbot/internal/core"
)

// KnowledgeRepo persists the term index and the search outcome log behind the
// in-memory knowledge engine.
type KnowledgeRepo struct {
	db *sql.DB
}

func NewKnowledgeRepo(db *sql.DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

func (r *KnowledgeRepo) AllTerms(ctx context.Context) ([]core.KnowledgeTerm, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT term, product_code, canonical, source FROM kb_terms`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge terms: %w", err)
	}
	defer rows.Close()

	var out []core.KnowledgeTerm
	for rows.Next() {
		var t core.KnowledgeTerm
		if err := rows.Scan(&t.Term, &t.ProductCode, &t.Canonical, &t.Source); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *KnowledgeRepo) SaveTerm(ctx context.Context, t core.KnowledgeTerm) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kb_terms (term, product_code, canonical, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(term, product_code) DO UPDATE SET
			canonical = excluded.canonical`,
		t.Term, t.ProductCode, t.Canonical, t.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to save knowledge term: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) RecordOutcome(ctx context.Context, o core.SearchOutcome) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO search_outcomes (term, source, top_product, feedback, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.Term, string(o.Source), o.TopProduct, string(o.Feedback), o.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record search outcome: %w", err)
	}
	return res.LastInsertId()
}

func (r *KnowledgeRepo) ResolveOutcome(ctx context.Context, id int64, fb core.Feedback) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE search_outcomes SET feedback = ? WHERE id = ?`,
		string(fb), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve search outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *KnowledgeRepo) AcceptanceRates(ctx context.Context) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT top_product,
		       AVG(CASE WHEN feedback = 'accepted' THEN 1.0 ELSE 0.0 END)
		FROM search_outcomes
		WHERE top_product != '' AND feedback != 'none'
		GROUP BY top_product`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load acceptance rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]float64)
	for rows.Next() {
		var code string
		var rate sql.NullFloat64
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, err
		}
		if rate.Valid {
			rates[code] = rate.Float64
		}
	}
	return rates, rows.Err()
}
