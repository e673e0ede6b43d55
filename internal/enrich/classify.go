package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/linnemanlabs/beacon/internal/news"
)

// Classification assigns the item a category and refines its geography.
type Classification struct {
	Category  Category
	Country   string
	Region    string
	Rationale string
	Outcome   Outcome
}

// categoryKeywords drive the heuristic classifier. Declaration order matters:
// ties resolve to the earlier category.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryNaturalDisaster, []string{"earthquake", "flood", "storm", "hurricane", "wildfire", "volcano", "tsunami", "landslide"}},
	{CategoryPolitical, []string{"election", "government", "diplomatic", "embassy", "sanction", "policy"}},
	{CategoryCrime, []string{"robbery", "kidnap", "theft", "crime", "gang", "assault"}},
	{CategoryHealth, []string{"outbreak", "disease", "health", "virus", "epidemic", "pandemic", "cholera"}},
	{CategoryTerrorism, []string{"terror", "bomb", "explosion", "extremist", "militant", "hostage"}},
	{CategoryCivilUnrest, []string{"protest", "riot", "clash", "curfew", "civil unrest", "demonstration", "strike"}},
}

// countryHints map text mentions to canonical country names, checked in
// order with word-boundary matching.
var countryHints = []struct {
	hint    string
	country string
	re      *regexp.Regexp
}{
	{hint: "usa", country: "United States"},
	{hint: "u.s.", country: "United States"},
	{hint: "united states", country: "United States"},
	{hint: "uk", country: "United Kingdom"},
	{hint: "u.k.", country: "United Kingdom"},
	{hint: "myanmar", country: "Myanmar"},
	{hint: "thailand", country: "Thailand"},
	{hint: "malaysia", country: "Malaysia"},
	{hint: "singapore", country: "Singapore"},
	{hint: "indonesia", country: "Indonesia"},
	{hint: "philippines", country: "Philippines"},
	{hint: "japan", country: "Japan"},
	{hint: "china", country: "China"},
	{hint: "india", country: "India"},
}

func init() {
	for i := range countryHints {
		countryHints[i].re = regexp.MustCompile(`\b` + regexp.QuoteMeta(countryHints[i].hint) + `\b`)
	}
}

// Classify determines the item's category and fills in country/region where
// the source left them blank.
func (c *Chain) Classify(ctx context.Context, item *news.Item) Classification {
	prompt := fmt.Sprintf(
		"Classify this travel-risk event.\n"+
			"Allowed categories: natural_disaster, political, crime, health, terrorism, civil_unrest.\n"+
			"Return strict JSON with keys: category, country, region, rationale.\n\n"+
			"Title: %s\nDescription: %s\nContent: %s\nExisting country hint: %s\nExisting region hint: %s\n",
		item.Title, item.Description, item.Content, item.Country, item.Region,
	)

	text, ok := c.invoke(ctx, "classification", prompt)
	if !ok {
		return c.heuristicClassify(item)
	}
	parsed := parseJSONObject(text)
	if parsed == nil {
		return c.heuristicClassify(item)
	}

	country := jsonString(parsed, "country")
	if country == "" {
		country = item.Country
	}
	region := jsonString(parsed, "region")
	if region == "" {
		region = item.Region
	}
	rationale := jsonString(parsed, "rationale")
	if rationale == "" {
		rationale = "Model category classification."
	}

	return Classification{
		Category:  ParseCategory(jsonString(parsed, "category")),
		Country:   country,
		Region:    region,
		Rationale: truncate(rationale, rationaleMaxChars),
		Outcome:   OutcomeModel,
	}
}

// heuristicClassify counts keyword occurrences per category over the item's
// text; the highest count wins, declaration order breaks ties, and all-zero
// counts default to natural_disaster.
func (c *Chain) heuristicClassify(item *news.Item) Classification {
	var parts []string
	for _, p := range []string{item.Title, item.Description, item.Content, item.Region} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	text := strings.ToLower(strings.Join(parts, " "))

	top := CategoryNaturalDisaster
	topScore := -1
	for _, ck := range categoryKeywords {
		score := 0
		for _, kw := range ck.keywords {
			score += strings.Count(text, kw)
		}
		if score > topScore {
			topScore = score
			top = ck.category
		}
	}

	country := item.Country
	if country == "" {
		country = countryFromText(text)
	}

	return Classification{
		Category:  top,
		Country:   country,
		Region:    item.Region,
		Rationale: "Heuristic keyword-based category and geography classification.",
		Outcome:   OutcomeHeuristic,
	}
}

// ParseCategory normalizes a model-supplied category string (trim, lowercase,
// spaces to underscores) against the fixed set. Unmatched values default to
// natural_disaster.
func ParseCategory(value string) Category {
	candidate := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), " ", "_")
	if candidate == "" {
		return CategoryNaturalDisaster
	}
	for _, cat := range Categories {
		if string(cat) == candidate {
			return cat
		}
	}
	return CategoryNaturalDisaster
}

// Humanize renders a category for display: underscores to spaces.
func (c Category) Humanize() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

func countryFromText(text string) string {
	for _, h := range countryHints {
		if h.re.MatchString(text) {
			return h.country
		}
	}
	return ""
}
