// Package news defines the normalized in-memory representation of a fetched
// news record and the shared helpers adapters use to produce one.
package news

import (
	"strings"
	"time"
)

// Item is the uniform in-memory form of one provider record. Adapters emit
// Items; everything downstream (dedup, enrichment, storage) consumes them.
type Item struct {
	Source      string
	Title       string
	URL         string
	Description string
	Content     string
	PublishedAt *time.Time
	Country     string
	Region      string
	Latitude    *float64
	Longitude   *float64

	// Payload is the raw provider record, converted to JSON-safe values
	// for archival alongside the normalized fields.
	Payload map[string]any
}

// Valid reports whether the item carries the required fields. Items failing
// this check are dropped at adapter output and never persisted.
func (it *Item) Valid() bool {
	return it.Title != "" && it.URL != ""
}

// Text concatenates the item's searchable fields into one string for
// near-duplicate comparison.
func (it *Item) Text() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{it.Title, it.Description, it.Content, it.Country, it.Region, it.Source} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Key returns the exact-dedup key: the case-insensitive (source, url) pair.
func (it *Item) Key() string {
	return strings.ToLower(strings.TrimSpace(it.Source)) + "\x00" + strings.ToLower(strings.TrimSpace(it.URL))
}
