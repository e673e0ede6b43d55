// Package enrich implements the four-stage alert enrichment chain:
// verification, classification, severity scoring, and summarization. Each
// stage attempts the injected model provider and substitutes a deterministic
// heuristic on any call or parse failure, so the chain produces identical
// shapes whether or not a model is available. Stage results carry an Outcome
// tag so callers can observe which path produced them.
package enrich

import (
	"context"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/beacon/internal/llm"
	"github.com/linnemanlabs/beacon/internal/news"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/enrich")

// Outcome records which path produced a stage result.
type Outcome string

const (
	// OutcomeModel means the remote model answered and parsed cleanly.
	OutcomeModel Outcome = "model"

	// OutcomeHeuristic means the deterministic fallback ran.
	OutcomeHeuristic Outcome = "heuristic"
)

// Category is the fixed alert taxonomy.
type Category string

const (
	CategoryNaturalDisaster Category = "natural_disaster"
	CategoryPolitical       Category = "political"
	CategoryCrime           Category = "crime"
	CategoryHealth          Category = "health"
	CategoryTerrorism       Category = "terrorism"
	CategoryCivilUnrest     Category = "civil_unrest"
)

// Categories lists the taxonomy in declaration order. Heuristic
// classification resolves ties by this order.
var Categories = []Category{
	CategoryNaturalDisaster,
	CategoryPolitical,
	CategoryCrime,
	CategoryHealth,
	CategoryTerrorism,
	CategoryCivilUnrest,
}

// DefaultSummaryMaxChars caps generated summaries.
const DefaultSummaryMaxChars = 450

// Result is the combined output of the four stages for one item.
type Result struct {
	Verification   Verification
	Classification Classification
	Severity       Severity
	Summary        Summary
}

// Chain runs the enrichment stages in order, feeding each stage the outputs
// of the previous ones. A Chain is safe to reuse across items and runs.
type Chain struct {
	provider        llm.Provider
	logger          log.Logger
	summaryMaxChars int
}

// NewChain creates an enrichment chain using the given provider. Pass
// llm.Disabled{} to make every stage a pure function of its inputs.
func NewChain(provider llm.Provider, logger log.Logger, summaryMaxChars int) *Chain {
	if provider == nil {
		provider = llm.Disabled{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	if summaryMaxChars <= 0 {
		summaryMaxChars = DefaultSummaryMaxChars
	}
	return &Chain{
		provider:        provider,
		logger:          logger,
		summaryMaxChars: summaryMaxChars,
	}
}

// Run executes verification, classification, severity scoring, and
// summarization for one item. A stage falling back never blocks the stages
// after it.
func (c *Chain) Run(ctx context.Context, item *news.Item) Result {
	ctx, span := tracer.Start(ctx, "enrich.run", trace.WithAttributes(
		attribute.String("news.source", item.Source),
	))
	defer span.End()

	verification := c.Verify(ctx, item)
	classification := c.Classify(ctx, item)
	severity := c.Score(ctx, item, classification, verification)
	summary := c.Summarize(ctx, item, classification, severity, verification)

	span.SetAttributes(
		attribute.String("enrich.category", string(classification.Category)),
		attribute.Int("enrich.severity", severity.Level),
		attribute.Bool("enrich.verified", verification.Verified),
	)

	return Result{
		Verification:   verification,
		Classification: classification,
		Severity:       severity,
		Summary:        summary,
	}
}

// invoke calls the provider and logs the failure that triggers a heuristic
// fallback. Disabled providers fail silently; that is the expected path.
func (c *Chain) invoke(ctx context.Context, stage, prompt string) (string, bool) {
	ctx, span := tracer.Start(ctx, "llm.call", trace.WithAttributes(
		attribute.String("enrich.stage", stage),
	))
	defer span.End()

	text, err := c.provider.Invoke(ctx, prompt)
	if err != nil {
		if err != llm.ErrDisabled {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model call failed")
			c.logger.Warn(ctx, "model call failed, using heuristic", "stage", stage, "error", err.Error())
		}
		span.SetAttributes(attribute.String("enrich.outcome", string(OutcomeHeuristic)))
		return "", false
	}
	span.SetAttributes(attribute.String("enrich.outcome", string(OutcomeModel)))
	return text, true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
