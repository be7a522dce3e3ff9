package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sandevgo/gavbot/internal/checkout"
	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/intent"
	"github.com/sandevgo/gavbot/internal/knowledge"
	"github.com/sandevgo/gavbot/pkg/log"
)

// Pipeline turns one inbound message into exactly one reply. Every turn ends
// with text for the user; there is no path that drops a message silently.
type Pipeline struct {
	sessions core.SessionRepository
	catalog  core.CatalogRepository
	audits   core.AuditRepository

	engine     *knowledge.Engine
	checkout   *checkout.Controller
	classifier core.Classifier

	fastPath   *intent.FastPath
	synth      *intent.Synthesizer
	tracker    *intent.Tracker
	weights    intent.Weights
	thresholds intent.Thresholds

	pageSize int
	locks    *keyLock
	now      func() time.Time
}

type Deps struct {
	Sessions   core.SessionRepository
	Catalog    core.CatalogRepository
	Audits     core.AuditRepository
	Engine     *knowledge.Engine
	Checkout   *checkout.Controller
	Classifier core.Classifier
}

func New(deps Deps, cfg *config.PipelineConfig) *Pipeline {
	return &Pipeline{
		sessions:   deps.Sessions,
		catalog:    deps.Catalog,
		audits:     deps.Audits,
		engine:     deps.Engine,
		checkout:   deps.Checkout,
		classifier: deps.Classifier,
		fastPath:   intent.NewFastPath(),
		synth:      intent.NewSynthesizer(),
		tracker:    intent.NewTracker(),
		weights: intent.Weights{
			Context:      cfg.WeightContext,
			Completeness: cfg.WeightCompleteness,
			Flow:         cfg.WeightFlow,
			History:      cfg.WeightHistory,
			SelfReport:   cfg.WeightSelfReport,
		},
		thresholds: intent.Thresholds{
			Execute: cfg.ExecuteThreshold,
			Audit:   cfg.AuditThreshold,
			Confirm: cfg.ConfirmThreshold,
		},
		pageSize: cfg.PageSize,
		locks:    newKeyLock(),
		now:      time.Now,
	}
}

// HandleTurn processes one user message for one conversation key and returns
// the reply. Concurrent messages for the same key are rejected with a busy
// reply instead of queueing.
func (p *Pipeline) HandleTurn(ctx context.Context, key, message string) string {
	release, ok := p.locks.TryAcquire(key)
	if !ok {
		return replyBusy
	}
	defer release()

	logger := log.FromCtx(ctx)
	now := p.now()

	s, err := p.sessions.Load(ctx, key)
	switch {
	case errors.Is(err, core.ErrNotFound):
		s = core.NewSession(key, now)
	case err != nil:
		logger.Error().Err(err).Str("key", key).Msg("loading session")
		return "Tive um problema aqui do meu lado. 😅 Pode mandar sua mensagem de novo?"
	}

	cartBefore := s.Cart.Total()
	s.AddTurn(core.RoleUser, message, "", now)

	classified := p.classify(ctx, s, message)
	aiTool := ""
	if classified.Source == core.IntentFromAI {
		aiTool = classified.Intent.Name()
	}
	classified, resolution := p.resolveAgainstPending(s, classified)
	strategy := p.decide(s, &classified)

	if strategy == intent.StrategyFallback {
		// The model's answer is not trusted enough to act on; it is
		// dropped without touching the open question and the
		// deterministic synthesizer takes over for this turn.
		classified = p.synth.Synthesize(message, s)
		classified, resolution = p.resolveAgainstPending(s, classified)
	}
	p.commitPending(ctx, s, resolution)

	logger.Debug().
		Str("key", key).
		Str("intent", classified.Intent.Name()).
		Str("source", string(classified.Source)).
		Float64("confidence", classified.Confidence).
		Str("strategy", string(strategy)).
		Msg("turn classified")

	var reply string
	if strategy == intent.StrategyConfirm {
		reply = p.askConfirmation(s, classified)
	} else {
		reply = p.dispatch(ctx, s, classified)
	}
	if reply == "" {
		// Last line of defense for the no-blank-reply guarantee.
		logger.Error().Str("intent", classified.Intent.Name()).Msg("handler produced empty reply")
		reply = "Desculpe, não consegui processar isso. Pode tentar de novo?"
	}

	s.AddTurn(core.RoleBot, reply, classified.Intent.Name(), now)
	p.observeOutcome(aiTool, strategy, classified)

	if err := p.sessions.Save(ctx, s); err != nil {
		if errors.Is(err, core.ErrConcurrentMutation) {
			// The per-key lock should make this impossible.
			logger.Error().Err(err).Str("key", key).Msg("session version conflict under key lock")
		} else {
			logger.Error().Err(err).Str("key", key).Msg("saving session")
		}
	}

	p.audit(ctx, s, message, classified, strategy, cartBefore, reply, now)
	return reply
}

// classify runs fast path, then the language model, then the deterministic
// synthesizer. Something always comes out.
func (p *Pipeline) classify(ctx context.Context, s *core.Session, message string) core.Classified {
	if c, ok := p.fastPath.Match(message); ok {
		return c
	}

	req := core.ClassifyRequest{
		Message:      message,
		History:      s.History,
		Summary:      s.Summary,
		CartSummary:  cartSummary(s.Cart),
		LastProducts: s.LastProducts,
		Pending:      s.Pending,
	}
	c, err := p.classifier.Classify(ctx, req)
	if err != nil {
		if !errors.Is(err, core.ErrClassifierUnavailable) {
			log.FromCtx(ctx).Warn().Err(err).Msg("classifier failed")
		}
		return p.synth.Synthesize(message, s)
	}
	return c
}

// decide rescores AI intents against session context and picks the execution
// strategy. Fast-path and fallback intents are deterministic and execute
// directly, the latter with an audit mark.
func (p *Pipeline) decide(s *core.Session, c *core.Classified) intent.Strategy {
	switch c.Source {
	case core.IntentFromFastPath:
		return intent.StrategyExecute
	case core.IntentFromFallback:
		return intent.StrategyExecuteAudit
	}
	rate := p.tracker.Rate(c.Intent.Name())
	factors := intent.ComputeFactors(s, *c, rate)
	c.Confidence = p.weights.Score(factors)
	return p.thresholds.Decide(c.Confidence)
}

// observeOutcome feeds the per-tool success tracker for model-classified
// intents. Executing without degrading into a clarifying question counts as
// success; landing in the fallback band counts against the tool. Confirmation
// turns resolve on the follow-up and are not scored here.
func (p *Pipeline) observeOutcome(aiTool string, strategy intent.Strategy, c core.Classified) {
	if aiTool == "" {
		return
	}
	switch strategy {
	case intent.StrategyConfirm:
		return
	case intent.StrategyFallback:
		p.tracker.Observe(aiTool, false)
	default:
		_, clarified := c.Intent.(core.Clarify)
		p.tracker.Observe(aiTool, !clarified)
	}
}

// askConfirmation parks a mid-confidence intent as a pending question.
func (p *Pipeline) askConfirmation(s *core.Session, c core.Classified) string {
	env := core.EncodeIntent(c.Intent)
	s.Pending = &core.PendingAction{
		Kind:   core.PendingConfirmIntent,
		Intent: &env,
	}
	return "Só para confirmar: " + describeIntent(c.Intent) + " É isso? (*sim* / *não*)"
}

func (p *Pipeline) audit(ctx context.Context, s *core.Session, message string, c core.Classified, strategy intent.Strategy, cartBefore decimal.Decimal, reply string, now time.Time) {
	a := core.TurnAudit{
		TurnID:          uuid.NewString(),
		ConversationKey: s.Key,
		Message:         message,
		IntentName:      c.Intent.Name(),
		IntentSource:    string(c.Source),
		Confidence:      c.Confidence,
		Strategy:        string(strategy),
		CartTotalBefore: cartBefore,
		CartTotalAfter:  s.Cart.Total(),
		Reply:           reply,
		CreatedAt:       now,
	}
	if err := p.audits.Record(ctx, a); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("recording turn audit")
	}
}
