package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/news"
)

// Verification is the credibility assessment for one item.
type Verification struct {
	Verified  bool
	Score     float64 // 0..1 (heuristic path stays within 0..0.95)
	Rationale string
	Outcome   Outcome
}

const rationaleMaxChars = 500

// verifiedScoreFloor is the score at or above which an item counts as
// verified when the model omits an explicit verdict, and always on the
// heuristic path.
const verifiedScoreFloor = 0.55

// genericSources carry no credibility signal on their own.
var genericSources = map[string]struct{}{
	"unknown": {},
	"rss":     {},
}

// Verify assesses whether the item looks credible enough for operational
// alerting.
func (c *Chain) Verify(ctx context.Context, item *news.Item) Verification {
	prompt := fmt.Sprintf(
		"You are a travel-risk verification analyst.\n"+
			"Assess if this report appears credible for operational alerting.\n"+
			"Return strict JSON with keys: verified (bool), verification_score (0 to 1), rationale (string).\n\n"+
			"Source: %s\nTitle: %s\nURL: %s\nPublished: %s\nDescription: %s\nContent: %s\n",
		item.Source, item.Title, item.URL, formatTime(item.PublishedAt), item.Description, item.Content,
	)

	text, ok := c.invoke(ctx, "verification", prompt)
	if !ok {
		return c.heuristicVerify(item)
	}
	parsed := parseJSONObject(text)
	if parsed == nil {
		return c.heuristicVerify(item)
	}

	score, _ := jsonFloat(parsed, "verification_score")
	score = clampFloat(score, 0, 1)
	verified, hasVerdict := jsonBool(parsed, "verified")
	if !hasVerdict {
		verified = score >= verifiedScoreFloor
	}
	rationale := jsonString(parsed, "rationale")
	if rationale == "" {
		rationale = "Model verification output."
	}

	return Verification{
		Verified:  verified,
		Score:     score,
		Rationale: truncate(rationale, rationaleMaxChars),
		Outcome:   OutcomeModel,
	}
}

// heuristicVerify scores credibility from metadata completeness: HTTPS,
// a publish timestamp, a non-generic source name, and body length.
func (c *Chain) heuristicVerify(item *news.Item) Verification {
	score := 0.30
	if strings.HasPrefix(strings.ToLower(item.URL), "https://") {
		score += 0.20
	}
	if item.PublishedAt != nil {
		score += 0.20
	}
	src := strings.ToLower(strings.TrimSpace(item.Source))
	if src != "" {
		if _, generic := genericSources[src]; !generic {
			score += 0.15
		}
	}
	if len(item.Content)+1+len(item.Description) >= 120 {
		score += 0.15
	}

	score = clampFloat(score, 0, 0.95)
	return Verification{
		Verified:  score >= verifiedScoreFloor,
		Score:     score,
		Rationale: "Heuristic verification based on source metadata completeness.",
		Outcome:   OutcomeHeuristic,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
