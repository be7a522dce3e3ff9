package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/gavbot/internal/core"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Record(ctx context.Context, a core.TurnAudit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO turn_audits (turn_id, conversation_key, message, intent_name,
			intent_source, confidence, strategy, cart_total_before, cart_total_after,
			reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TurnID, a.ConversationKey, a.Message, a.IntentName,
		a.IntentSource, a.Confidence, a.Strategy,
		a.CartTotalBefore.String(), a.CartTotalAfter.String(),
		a.Reply, a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record turn audit: %w", err)
	}
	return nil
}
