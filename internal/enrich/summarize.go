package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/beacon/internal/news"
)

// Summary is the alert-facing digest of one item.
type Summary struct {
	Text    string
	Outcome Outcome
}

// Summarize produces a factual summary capped at the configured character
// limit. Model output is truncated as-is; the heuristic composes one from
// the classification, severity, and leading item text.
func (c *Chain) Summarize(ctx context.Context, item *news.Item, classification Classification, severity Severity, verification Verification) Summary {
	prompt := fmt.Sprintf(
		"Write a concise factual summary for a traveler risk alert.\n"+
			"Keep it under %d characters, no speculation.\n\n"+
			"Title: %s\nDescription: %s\nContent: %s\nCategory: %s\nCountry: %s\nRegion: %s\nSeverity: %d\nVerified: %t\nVerification score: %.2f\n",
		c.summaryMaxChars,
		item.Title, item.Description, item.Content, classification.Category,
		orDefault(classification.Country, orDefault(item.Country, "Unknown")),
		orDefault(classification.Region, orDefault(item.Region, "Unknown")),
		severity.Level, verification.Verified, verification.Score,
	)

	if text, ok := c.invoke(ctx, "summarization", prompt); ok {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return Summary{Text: truncate(trimmed, c.summaryMaxChars), Outcome: OutcomeModel}
		}
	}
	return c.heuristicSummarize(item, classification, severity)
}

func (c *Chain) heuristicSummarize(item *news.Item, classification Classification, severity Severity) Summary {
	location := firstNonEmpty(classification.Region, classification.Country, item.Region, item.Country)
	locationText := ""
	if location != "" {
		locationText = " in " + location
	}

	detail := item.Description
	if detail == "" {
		detail = item.Content
	}
	detail = strings.Join(strings.Fields(detail), " ")

	base := fmt.Sprintf("%s. Classified as %s%s with severity %d/5.",
		item.Title, classification.Category.Humanize(), locationText, severity.Level)
	if detail != "" {
		base = base + " " + detail
	}

	return Summary{Text: truncate(base, c.summaryMaxChars), Outcome: OutcomeHeuristic}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
