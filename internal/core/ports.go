package core

import (
	"context"
	"time"
)

type SessionRepository interface {
	// Load returns ErrNotFound for an unknown conversation key.
	Load(ctx context.Context, key string) (*Session, error)
	// Save persists the session. It must return ErrConcurrentMutation when
	// the stored version advanced since Load.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, key string) error
	// DeleteExpired removes sessions idle since before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type CatalogRepository interface {
	SearchProducts(ctx context.Context, term string, limit int) ([]Product, error)
	GetProduct(ctx context.Context, code string) (*Product, error)
	TopSelling(ctx context.Context, limit int) ([]Product, error)
}

type KnowledgeRepository interface {
	AllTerms(ctx context.Context) ([]KnowledgeTerm, error)
	SaveTerm(ctx context.Context, t KnowledgeTerm) error
	RecordOutcome(ctx context.Context, o SearchOutcome) (int64, error)
	ResolveOutcome(ctx context.Context, id int64, fb Feedback) error
	// AcceptanceRates returns, per product code, the share of outcomes that
	// ended with the suggestion accepted.
	AcceptanceRates(ctx context.Context) (map[string]float64, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, o Order) error
}

type AuditRepository interface {
	Record(ctx context.Context, a TurnAudit) error
}

// ClassifyRequest hands the classifier everything it needs to recognize an
// answer to a question the bot previously posed, pending action included.
type ClassifyRequest struct {
	Message      string
	History      []Turn
	Summary      string
	CartSummary  string
	LastProducts []ProductRef
	Pending      *PendingAction
}

type Classifier interface {
	// Classify returns ErrClassifierUnavailable (possibly wrapped) on
	// timeout, transport error, or malformed response.
	Classify(ctx context.Context, req ClassifyRequest) (Classified, error)
}
