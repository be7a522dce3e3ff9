package llm

import (
	"context"

	"github.com/sandevgo/gavbot/internal/core"
)

// Disabled is the classifier used when no API key is configured. Every call
// reports unavailability so the pipeline runs purely on the fast path and the
// fallback synthesizer.
type Disabled struct{}

func NewDisabled() *Disabled {
	return &Disabled{}
}

func (*Disabled) Classify(context.Context, core.ClassifyRequest) (core.Classified, error) {
	return core.Classified{}, core.ErrClassifierUnavailable
}
