// Package dedup flags near-duplicate coverage of the same event using hashed
// bag-of-words vectors and cosine similarity. The index is owned by a single
// ingestion run: seeded from recent alert texts at run start, grown as items
// are accepted, and discarded when the run ends. It is not safe for
// concurrent use and is never shared across runs.
package dedup

import (
	"crypto/sha1" //nolint:gosec // G505: stable token hashing, not a security boundary
	"encoding/binary"
	"math"
	"regexp"
	"strings"

	"github.com/linnemanlabs/beacon/internal/news"
)

const (
	// DefaultThreshold is the cosine similarity at or above which two texts
	// count as the same event.
	DefaultThreshold = 0.90

	// DefaultDimensions is the hashed vector width.
	DefaultDimensions = 256

	// minDimensions is the floor applied to configured widths.
	minDimensions = 64
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]{3,}`)

// stopWords are discarded before hashing. High-frequency words that carry no
// event identity would otherwise dominate the vectors.
var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "were": {},
	"will": {}, "would": {}, "into": {}, "about": {}, "after": {}, "before": {},
	"under": {}, "over": {}, "their": {}, "there": {}, "where": {},
	"report": {}, "reports": {}, "said": {},
}

// Similarity is the outcome of one duplicate check.
type Similarity struct {
	Duplicate bool
	Score     float64
}

// Index holds the vectors already accepted in this run plus the seeded
// historical alert texts.
type Index struct {
	threshold  float64
	dimensions int
	vectors    [][]float64
}

// NewIndex creates a run-scoped index. A threshold outside (0,1] falls back
// to DefaultThreshold; dimensions below the floor are raised to it.
func NewIndex(threshold float64, dimensions int) *Index {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if dimensions < minDimensions {
		dimensions = minDimensions
	}
	return &Index{threshold: threshold, dimensions: dimensions}
}

// Seed vectorizes historical alert texts into the index so the run is
// compared against recently created alerts, not only against itself.
func (ix *Index) Seed(texts []string) {
	for _, text := range texts {
		if v := ix.vectorize(text); v != nil {
			ix.vectors = append(ix.vectors, v)
		}
	}
}

// CheckItem reports whether the item's text near-duplicates anything already
// indexed.
func (ix *Index) CheckItem(item *news.Item) Similarity {
	return ix.CheckText(item.Text())
}

// CheckText compares text against the maximum similarity over all indexed
// vectors. Text that yields no tokens is incomparable and never a duplicate.
func (ix *Index) CheckText(text string) Similarity {
	query := ix.vectorize(text)
	if query == nil || len(ix.vectors) == 0 {
		return Similarity{}
	}

	var top float64
	for _, existing := range ix.vectors {
		if s := dot(query, existing); s > top {
			top = s
		}
	}
	return Similarity{Duplicate: top >= ix.threshold, Score: top}
}

// Register adds an accepted item's text, plus its generated summary, to the
// index. Must be called before the next item is checked so that two sources
// covering the same event within one run collapse to one alert.
func (ix *Index) Register(item *news.Item, summary string) {
	text := item.Text()
	if summary != "" {
		text = text + "\n" + summary
	}
	if v := ix.vectorize(text); v != nil {
		ix.vectors = append(ix.vectors, v)
	}
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// vectorize lowercases, tokenizes, hashes each surviving token into a fixed
// width slot, accumulates term frequency, and L2-normalizes. Returns nil for
// text with no qualifying tokens.
func (ix *Index) vectorize(text string) []float64 {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	vector := make([]float64, ix.dimensions)
	var any bool
	for _, token := range tokens {
		if _, skip := stopWords[token]; skip {
			continue
		}
		any = true
		vector[slot(token, ix.dimensions)]++
	}
	if !any {
		return nil
	}

	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	magnitude := math.Sqrt(sum)
	if magnitude == 0 {
		return nil
	}
	for i := range vector {
		vector[i] /= magnitude
	}
	return vector
}

// slot maps a token to a vector index via the first 4 bytes of its SHA-1.
func slot(token string, dimensions int) int {
	digest := sha1.Sum([]byte(token)) //nolint:gosec // G401: see package comment
	return int(binary.BigEndian.Uint32(digest[:4]) % uint32(dimensions))
}

// dot is cosine similarity for two already-normalized vectors.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
