package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/gavbot/internal/checkout"
	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/knowledge"
	"github.com/sandevgo/gavbot/internal/providers/llm"
	"github.com/sandevgo/gavbot/internal/service/pipeline"
	"github.com/sandevgo/gavbot/internal/storage/sqlite"
	"github.com/sandevgo/gavbot/internal/transport/cli"
	"github.com/sandevgo/gavbot/internal/transport/telegram"
	"github.com/sandevgo/gavbot/internal/transport/webhook"
	"github.com/sandevgo/gavbot/pkg/log"
	"github.com/sandevgo/gavbot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	pipeCfg := config.NewPipelineConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	sessionRepo := sqlite.NewSessionRepo(db)
	catalogRepo := sqlite.NewCatalogRepo(db)
	knowledgeRepo := sqlite.NewKnowledgeRepo(db)
	orderRepo := sqlite.NewOrderRepo(db)
	auditRepo := sqlite.NewAuditRepo(db)

	// 3. Knowledge engine
	engine, err := knowledge.NewEngine(ctx, catalogRepo, knowledgeRepo, knowledge.Config{
		MinSimilarity:        pipeCfg.MinSimilarity,
		CatalogMinSimilarity: pipeCfg.CatalogMinSimilarity,
		MaxMatches:           pipeCfg.PageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize knowledge engine")
	}

	// 4. Classifier
	classifier := initClassifier(ctx)

	// 5. Pipeline
	pipe := pipeline.New(pipeline.Deps{
		Sessions:   sessionRepo,
		Catalog:    catalogRepo,
		Audits:     auditRepo,
		Engine:     engine,
		Checkout:   checkout.NewController(orderRepo),
		Classifier: classifier,
	}, pipeCfg)

	// 6. Background workers
	services = append(services, pipeline.NewSweeper(sessionRepo, appCfg.SessionTTL, appCfg.SweepInterval))

	// 7. Transports
	transports, err := initTransports(ctx, appCfg, pipe)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

// initClassifier picks the language-model classifier when a key is present
// and the always-unavailable one otherwise, leaving the deterministic
// pipeline in charge.
func initClassifier(ctx context.Context) core.Classifier {
	logger := log.FromCtx(ctx)
	openaiCfg := config.NewOpenAIConfig(ctx)
	if openaiCfg.APIKey == "" {
		logger.Warn().Msg("no OpenAI API key configured, running with fallback pipeline only")
		return llm.NewDisabled()
	}
	classifier, err := llm.NewOpenAI(openaiCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize classifier")
	}
	return classifier
}

func initTransports(ctx context.Context, cfg *config.AppConfig, pipe *pipeline.Pipeline) ([]srv.Service, error) {
	var services []srv.Service

	if cfg.EnableWebhook {
		whCfg := config.NewWebhookConfig(ctx)
		services = append(services, webhook.NewServer(whCfg, pipe))
	}

	if cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, pipe)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	if cfg.EnableCLI {
		rl, err := cli.NewReadLine(pipe, cfg)
		if err != nil {
			return nil, err
		}
		services = append(services, rl)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
