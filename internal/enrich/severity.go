package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/beacon/internal/news"
)

// Severity is an integer risk level from 1 (low) to 5 (critical).
type Severity struct {
	Level     int
	Rationale string
	Outcome   Outcome
}

// baseSeverity is the per-category starting point for the heuristic scorer.
var baseSeverity = map[Category]int{
	CategoryNaturalDisaster: 3,
	CategoryPolitical:       3,
	CategoryCrime:           2,
	CategoryHealth:          3,
	CategoryTerrorism:       4,
	CategoryCivilUnrest:     3,
}

var highRiskTerms = []string{"emergency", "evacuate", "critical", "massive", "major", "fatal"}

var escalationTerms = []string{"airport", "border", "tourist", "embassy", "nationwide", "capital"}

// lowConfidenceScore is the verification score below which the heuristic
// discounts severity by one.
const lowConfidenceScore = 0.45

// Score assigns the item a severity level given its classification and
// verification.
func (c *Chain) Score(ctx context.Context, item *news.Item, classification Classification, verification Verification) Severity {
	prompt := fmt.Sprintf(
		"You score travel risk severity from 1 (low) to 5 (critical).\n"+
			"Return strict JSON with keys: severity (int 1-5), rationale (string).\n\n"+
			"Title: %s\nDescription: %s\nContent: %s\nCategory: %s\nVerified: %t\nVerification score: %.2f\n",
		item.Title, item.Description, item.Content,
		classification.Category, verification.Verified, verification.Score,
	)

	text, ok := c.invoke(ctx, "severity", prompt)
	if !ok {
		return c.heuristicScore(item, classification, verification)
	}
	parsed := parseJSONObject(text)
	if parsed == nil {
		return c.heuristicScore(item, classification, verification)
	}

	raw, found := jsonFloat(parsed, "severity")
	if !found {
		raw = 3
	}
	rationale := jsonString(parsed, "rationale")
	if rationale == "" {
		rationale = "Model severity score."
	}

	return Severity{
		Level:     clampInt(int(raw), 1, 5),
		Rationale: truncate(rationale, rationaleMaxChars),
		Outcome:   OutcomeModel,
	}
}

// heuristicScore starts from the category baseline, bumps for urgency and
// sensitive-location terms, and discounts unverified items.
func (c *Chain) heuristicScore(item *news.Item, classification Classification, verification Verification) Severity {
	level, ok := baseSeverity[classification.Category]
	if !ok {
		level = 3
	}

	var parts []string
	for _, p := range []string{item.Title, item.Description, item.Content} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	text := strings.ToLower(strings.Join(parts, " "))

	if containsAny(text, highRiskTerms) {
		level++
	}
	if containsAny(text, escalationTerms) {
		level++
	}
	if verification.Score < lowConfidenceScore {
		level--
	}

	return Severity{
		Level:     clampInt(level, 1, 5),
		Rationale: "Heuristic severity score from category, urgency indicators, and confidence.",
		Outcome:   OutcomeHeuristic,
	}
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
