package ingest

import (
	"math"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/enrich"
	"github.com/linnemanlabs/beacon/internal/news"
)

// Column caps enforced before persistence. Longer values are truncated, not
// rejected.
const (
	maxTitleLen   = 500
	maxURLLen     = 1024
	maxCountryLen = 100
	maxRegionLen  = 255
)

// RawNewsItem is the persisted form of a fetched item, archived verbatim
// alongside its normalized fields. The (source, url) pair is the upsert key.
type RawNewsItem struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Country     string         `json:"country,omitempty"`
	Region      string         `json:"region,omitempty"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Alert is a synthesized risk alert derived from one accepted item. Source,
// URL, and PublishedAt form the alert's single provenance entry.
type Alert struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Summary           string          `json:"summary"`
	Category          enrich.Category `json:"category"`
	Severity          int             `json:"severity"`
	Country           string          `json:"country"`
	Region            string          `json:"region,omitempty"`
	Source            string          `json:"source"`
	URL               string          `json:"url"`
	PublishedAt       *time.Time      `json:"published_at,omitempty"`
	Latitude          *float64        `json:"latitude,omitempty"`
	Longitude         *float64        `json:"longitude,omitempty"`
	Verified          bool            `json:"verified"`
	VerificationScore float64         `json:"verification_score"`
	FullContent       string          `json:"full_content,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Text returns the alert's comparison text for near-duplicate seeding:
// title, summary, and full content, skipping empty fields.
func (a *Alert) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Title, a.Summary, a.FullContent} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// RunStats summarizes one ingestion run.
type RunStats struct {
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	ItemsFetched      int               `json:"items_fetched"`
	ItemsStored       int               `json:"items_stored"`
	AlertsCreated     int               `json:"alerts_created"`
	DuplicatesSkipped int               `json:"duplicates_skipped"`
	SourceCounts      map[string]int    `json:"source_counts"`
	SourceErrors      map[string]string `json:"source_errors,omitempty"`
}

// newRawItem freezes a fetched item into its persisted form. The ID is
// assigned by the store on first insert.
func newRawItem(it *news.Item, fetchedAt time.Time) *RawNewsItem {
	return &RawNewsItem{
		Source:      it.Source,
		Title:       truncate(it.Title, maxTitleLen),
		URL:         truncate(it.URL, maxURLLen),
		Description: it.Description,
		Content:     it.Content,
		PublishedAt: it.PublishedAt,
		Country:     truncate(it.Country, maxCountryLen),
		Region:      truncate(it.Region, maxRegionLen),
		Latitude:    it.Latitude,
		Longitude:   it.Longitude,
		Payload:     it.Payload,
		FetchedAt:   fetchedAt,
	}
}

// newAlert assembles an alert from an accepted item and its enrichment
// result.
func newAlert(id string, it *news.Item, res enrich.Result, createdAt time.Time) *Alert {
	country := res.Classification.Country
	if country == "" {
		country = it.Country
	}
	if country == "" {
		country = "Unknown"
	}
	region := res.Classification.Region
	if region == "" {
		region = it.Region
	}

	fullContent := it.Content
	if fullContent == "" {
		fullContent = it.Description
	}
	if fullContent == "" {
		fullContent = it.Title
	}

	return &Alert{
		ID:                id,
		Title:             truncate(it.Title, maxTitleLen),
		Summary:           res.Summary.Text,
		Category:          res.Classification.Category,
		Severity:          res.Severity.Level,
		Country:           truncate(country, maxCountryLen),
		Region:            truncate(region, maxRegionLen),
		Source:            it.Source,
		URL:               truncate(it.URL, maxURLLen),
		PublishedAt:       it.PublishedAt,
		Latitude:          it.Latitude,
		Longitude:         it.Longitude,
		Verified:          res.Verification.Verified,
		VerificationScore: round4(res.Verification.Score),
		FullContent:       fullContent,
		CreatedAt:         createdAt,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
