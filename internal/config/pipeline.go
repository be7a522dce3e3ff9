package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/gavbot/pkg/log"
)

// PipelineConfig carries the decision thresholds and confidence factor
// weights. The cut points are tunable, not law; defaults follow the values
// the system was calibrated with.
type PipelineConfig struct {
	ExecuteThreshold float64 `env:"CONFIDENCE_EXECUTE" envDefault:"0.9"`
	AuditThreshold   float64 `env:"CONFIDENCE_AUDIT" envDefault:"0.7"`
	ConfirmThreshold float64 `env:"CONFIDENCE_CONFIRM" envDefault:"0.5"`

	WeightContext      float64 `env:"WEIGHT_CONTEXT" envDefault:"0.30"`
	WeightCompleteness float64 `env:"WEIGHT_COMPLETENESS" envDefault:"0.25"`
	WeightFlow         float64 `env:"WEIGHT_FLOW" envDefault:"0.20"`
	WeightHistory      float64 `env:"WEIGHT_HISTORY" envDefault:"0.10"`
	WeightSelfReport   float64 `env:"WEIGHT_SELF_REPORT" envDefault:"0.15"`

	// Minimum similarity accepted by the knowledge-base fuzzy pass and by
	// the catalog fallback pass.
	MinSimilarity        float64 `env:"KB_MIN_SIMILARITY" envDefault:"0.5"`
	CatalogMinSimilarity float64 `env:"CATALOG_MIN_SIMILARITY" envDefault:"0.4"`

	// How many products one reply presents for numeric selection.
	PageSize int `env:"PRODUCT_PAGE_SIZE" envDefault:"3"`
}

func NewPipelineConfig(ctx context.Context) *PipelineConfig {
	c := &PipelineConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Pipeline config")
	}
	return c
}
