package ingest

import (
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/enrich"
	"github.com/linnemanlabs/beacon/internal/news"
)

func TestAlertText(t *testing.T) {
	t.Parallel()

	al := &Alert{
		Title:       "Massive earthquake strikes Osaka region",
		Summary:     "Strong quake near Osaka, residents evacuating.",
		FullContent: "A massive earthquake struck the Osaka region.",
		Source:      "usgs",
		Country:     "Japan",
		Region:      "Osaka",
	}

	want := "Massive earthquake strikes Osaka region " +
		"Strong quake near Osaka, residents evacuating. " +
		"A massive earthquake struck the Osaka region."
	if got := al.Text(); got != want {
		t.Errorf("Text() = %q, want title, summary, and full content only", got)
	}
}

func TestAlertText_SkipsEmptyFields(t *testing.T) {
	t.Parallel()

	al := &Alert{Title: "Flood warning", FullContent: "Rivers rising."}
	if got := al.Text(); got != "Flood warning Rivers rising." {
		t.Errorf("Text() = %q, want empty fields skipped without extra spaces", got)
	}
}

func TestNewAlertFallbacks(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	it := &news.Item{
		Source:      "rss",
		Title:       "Storm approaching",
		URL:         "https://ex.com/storm",
		Description: "A severe storm is approaching the coast.",
		PublishedAt: &now,
	}
	res := enrich.Result{
		Classification: enrich.Classification{Category: enrich.CategoryNaturalDisaster},
		Severity:       enrich.Severity{Level: 3},
		Verification:   enrich.Verification{Verified: true, Score: 0.64999},
		Summary:        enrich.Summary{Text: "Severe storm nearing the coast."},
	}

	al := newAlert("01ARZ", it, res, now)

	if al.Country != "Unknown" {
		t.Errorf("country = %q, want Unknown when neither item nor classification has one", al.Country)
	}
	if al.FullContent != it.Description {
		t.Errorf("full content = %q, want the description when content is empty", al.FullContent)
	}
	if al.VerificationScore != 0.65 {
		t.Errorf("verification score = %v, want rounded to 4 decimals", al.VerificationScore)
	}
	if al.PublishedAt == nil || !al.PublishedAt.Equal(now) {
		t.Errorf("published at = %v, want the item's timestamp", al.PublishedAt)
	}
}
